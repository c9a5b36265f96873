package codec

import (
	"encoding/json"
	"fmt"

	"github.com/objcache/cachemgr/protocol"
)

// NewJSONCodec creates a codec using encoding/json. Useful for manual
// testing with nc/socat and for capturing requests in logs.
func NewJSONCodec() Codec {
	return jsonCodec{}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(kind protocol.Kind, msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("json encode %s: %w", kind, err)
	}
	return data, nil
}

func (jsonCodec) Decode(kind protocol.Kind, data []byte) (any, error) {
	target, ok := newByKind(kind)
	if !ok {
		return nil, fmt.Errorf("json decode: unknown message kind %s", kind)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("json decode %s: %w", kind, err)
	}
	return target, nil
}
