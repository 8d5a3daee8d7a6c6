// Package codec packs and unpacks the refresh records announced to logical
// decoding consumers.
//
// Both record kinds are a fixed header followed by a payload of contiguous
// segments. A Layout describes the payload as an ordered list of segments,
// each either NUL-terminated (its size includes the terminator) or raw (its
// size is the exact value length). The header stores one size per segment,
// so a reader recovers every boundary from the header alone.
//
// # Record Format
//
// All integers are little-endian. Header fields are naturally aligned and the
// padding is written as zero.
//
// Refresh data, 32-byte header:
//
//	[dbId(4)][matviewId(4)][flags(1)][pad(7)][prefix_size(8)][message_size(8)]
//	[prefix ... NUL][message]
//
// Refresh message, 40-byte header:
//
//	[dbId(4)][pad(4)][prefix_size(8)][role_size(8)][search_path_size(8)][message_size(8)]
//	[prefix ... NUL][role ... NUL][search_path ... NUL][message]
//
// The flags byte holds FlagConcurrent, FlagSkipData and FlagCompleteQuery.
// Any other bit is treated as corruption.
//
// # Usage
//
//	rec := codec.NewRefreshData(dbID, matviewID, codec.FlagConcurrent, "demo", []byte("AB"))
//	segs, err := rec.Segments() // register each with the log
//
//	decoded, err := codec.DecodeRefreshData(data)
//
// # Error Handling
//
// Decoding never guesses a boundary. Short buffers yield ErrTruncated; a
// terminated segment whose last byte is not NUL, unknown flag bits, or bytes
// past the declared payload yield a *CorruptionError that matches ErrCorrupt.
// Encoding rejects terminated values that contain NUL with ErrEmbeddedNUL.
//
// # Thread Safety
//
// Decoding is a pure function of the input buffer and may run concurrently
// on the same buffer.
package codec
