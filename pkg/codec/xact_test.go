package codec

import (
	"errors"
	"testing"
	"time"
)

func TestXactFinishRoundTrip(t *testing.T) {
	at := time.Date(2026, 10, 14, 9, 30, 0, 123456789, time.UTC)
	data, err := NewXactFinish(at).MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if len(data) != XactFinishSize {
		t.Fatalf("expected %d bytes, got %d", XactFinishSize, len(data))
	}

	got, err := DecodeXactFinish(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// stored with microsecond precision
	if want := at.Truncate(time.Microsecond); !got.Time.Equal(want) {
		t.Errorf("expected %v, got %v", want, got.Time)
	}
}

func TestDecodeXactFinishErrors(t *testing.T) {
	if _, err := DecodeXactFinish(make([]byte, 7)); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
	if _, err := DecodeXactFinish(make([]byte, 9)); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}
