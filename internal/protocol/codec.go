package protocol

import (
	"encoding/json"
	"fmt"
)

func Encode(msg ServerMessage) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("encode: empty message type")
	}
	return json.Marshal(msg)
}

// DecodeClient parses an inbound frame. Unknown types decode fine; the
// session decides what to do with them. Only structurally broken JSON errors.
func DecodeClient(data []byte) (ClientMessage, error) {
	if len(data) == 0 {
		return ClientMessage{}, fmt.Errorf("decode: empty frame")
	}
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decode: %w", err)
	}
	if msg.Type == "" {
		return ClientMessage{}, fmt.Errorf("decode: missing type")
	}
	return msg, nil
}
