package sharedmem

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// jsonHeaderSize is the length prefix in front of a JSON payload. The
// prefix makes the payload recoverable from a fixed-size, zero-padded
// region.
const jsonHeaderSize = 4

// WriteJSON marshals v and commits it to the full region as one write:
// a 4-byte big-endian length followed by the payload. The region
// version increments exactly once per call.
func (b *Bridge) WriteJSON(ctx context.Context, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sharedmem: marshal %s: %w", key, err)
	}

	r, err := b.region(key)
	if err != nil {
		return err
	}
	if jsonHeaderSize+len(payload) > r.size {
		return NewOutOfRangeError(key, 0, jsonHeaderSize+len(payload), r.size)
	}

	buf := make([]byte, jsonHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:jsonHeaderSize], uint32(len(payload)))
	copy(buf[jsonHeaderSize:], payload)
	return b.WriteAtomic(ctx, key, 0, buf)
}

// ReadJSON decodes the region's JSON payload into v. Like ReadAtomic
// it takes no lock; a torn read surfaces as a decode error, which the
// caller may retry against a newer version.
func (b *Bridge) ReadJSON(key string, v interface{}) error {
	header, err := b.ReadAtomic(key, 0, jsonHeaderSize)
	if err != nil {
		return err
	}
	length := int(binary.BigEndian.Uint32(header))

	r, err := b.region(key)
	if err != nil {
		return err
	}
	if length == 0 {
		return NewEmptyRegionError(key)
	}
	if jsonHeaderSize+length > r.size {
		return NewOutOfRangeError(key, jsonHeaderSize, length, r.size)
	}

	payload, err := b.ReadAtomic(key, jsonHeaderSize, length)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("sharedmem: unmarshal %s: %w", key, err)
	}
	return nil
}
