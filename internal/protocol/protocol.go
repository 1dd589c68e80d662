package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	headerSize     = 4
	maxPayloadSize = 10 * 1024 * 1024 // 10MB max payload size
)

var (
	ErrFrameTooShort   = errors.New("frame shorter than command header")
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
)

// MaxPayloadSize is the largest payload a frame may carry.
func MaxPayloadSize() int { return maxPayloadSize }

// Encode writes commandID as the first 4 bytes (big-endian) followed by the payload.
func Encode(commandID uint32, payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(payload), maxPayloadSize)
	}

	out := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(out[:headerSize], commandID)
	copy(out[headerSize:], payload)
	return out, nil
}

// Decode splits a frame into its command id and payload.
// The payload slice references data - do not modify it.
func Decode(data []byte) (uint32, []byte, error) {
	if len(data) < headerSize {
		return 0, nil, ErrFrameTooShort
	}

	payloadSize := len(data) - headerSize
	if payloadSize > maxPayloadSize {
		return 0, nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, payloadSize, maxPayloadSize)
	}

	return binary.BigEndian.Uint32(data[:headerSize]), data[headerSize:], nil
}

// EncodeJSON marshals v and frames it under commandID.
func EncodeJSON(commandID uint32, v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Encode(commandID, payload)
}

// DecodeJSON unmarshals a frame payload into v.
func DecodeJSON(payload []byte, v any) error {
	if len(payload) == 0 {
		return errors.New("empty payload")
	}
	return json.Unmarshal(payload, v)
}
