package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/ssargent/refreshwal/pkg/xlog"
)

// OpRefreshMessage is the only op code of the refresh message record kind.
const OpRefreshMessage uint8 = 0x00

// RefreshMessageHeaderSize is the fixed header size; the payload starts here.
// Header: [dbId(4)][pad(4)][prefix_size(8)][role_size(8)][search_path_size(8)][message_size(8)]
const RefreshMessageHeaderSize = 40

var refreshMessageLayout = NewLayout(
	Segment{Name: "prefix", Kind: Terminated},
	Segment{Name: "role", Kind: Terminated},
	Segment{Name: "search_path", Kind: Terminated},
	Segment{Name: "message", Kind: Raw},
)

// RefreshMessage carries a refresh statement with the role and search path
// it must be replayed under.
type RefreshMessage struct {
	DatabaseID     xlog.Oid
	PrefixSize     uint64 // sizes of the terminated segments include the NUL
	RoleSize       uint64
	SearchPathSize uint64
	MessageSize    uint64
	Prefix         string
	Role           string
	SearchPath     string
	Message        []byte
}

// NewRefreshMessage fills in the sizes for the given values.
func NewRefreshMessage(dbID xlog.Oid, prefix, role, searchPath string, message []byte) *RefreshMessage {
	return &RefreshMessage{
		DatabaseID:     dbID,
		PrefixSize:     uint64(len(prefix)) + 1,
		RoleSize:       uint64(len(role)) + 1,
		SearchPathSize: uint64(len(searchPath)) + 1,
		MessageSize:    uint64(len(message)),
		Prefix:         prefix,
		Role:           role,
		SearchPath:     searchPath,
		Message:        message,
	}
}

// Segments returns the header followed by the prefix, role, search path and
// message segments.
func (m *RefreshMessage) Segments() ([][]byte, error) {
	parts, sizes, err := refreshMessageLayout.Pack([][]byte{
		[]byte(m.Prefix), []byte(m.Role), []byte(m.SearchPath), m.Message,
	})
	if err != nil {
		return nil, err
	}
	m.PrefixSize, m.RoleSize, m.SearchPathSize, m.MessageSize = sizes[0], sizes[1], sizes[2], sizes[3]

	header := make([]byte, RefreshMessageHeaderSize)
	binary.LittleEndian.PutUint32(header[0:], uint32(m.DatabaseID))
	binary.LittleEndian.PutUint64(header[8:], m.PrefixSize)
	binary.LittleEndian.PutUint64(header[16:], m.RoleSize)
	binary.LittleEndian.PutUint64(header[24:], m.SearchPathSize)
	binary.LittleEndian.PutUint64(header[32:], m.MessageSize)

	return append([][]byte{header}, parts...), nil
}

// MarshalBinary returns the record bytes as the log stores them.
func (m *RefreshMessage) MarshalBinary() ([]byte, error) {
	segs, err := m.Segments()
	if err != nil {
		return nil, err
	}
	return join(segs), nil
}

// Size returns the encoded length.
func (m *RefreshMessage) Size() int {
	return RefreshMessageHeaderSize + len(m.Prefix) + 1 + len(m.Role) + 1 + len(m.SearchPath) + 1 + len(m.Message)
}

// DecodeRefreshMessage parses a refresh message record. Message aliases data.
func DecodeRefreshMessage(data []byte) (*RefreshMessage, error) {
	if len(data) < RefreshMessageHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, header needs %d", ErrTruncated, len(data), RefreshMessageHeaderSize)
	}

	m := &RefreshMessage{}
	m.DatabaseID = xlog.Oid(binary.LittleEndian.Uint32(data[0:4]))
	m.PrefixSize = binary.LittleEndian.Uint64(data[8:16])
	m.RoleSize = binary.LittleEndian.Uint64(data[16:24])
	m.SearchPathSize = binary.LittleEndian.Uint64(data[24:32])
	m.MessageSize = binary.LittleEndian.Uint64(data[32:40])

	values, err := refreshMessageLayout.Unpack(data[RefreshMessageHeaderSize:],
		[]uint64{m.PrefixSize, m.RoleSize, m.SearchPathSize, m.MessageSize})
	if err != nil {
		return nil, err
	}
	m.Prefix = string(values[0])
	m.Role = string(values[1])
	m.SearchPath = string(values[2])
	m.Message = values[3]
	return m, nil
}
