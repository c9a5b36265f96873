package codec

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/objcache/cachemgr/protocol"
)

// NewGOBCodec creates a codec using Go's binary gob format. Useful for
// talking to other Go processes without a shared schema compiler.
func NewGOBCodec() Codec {
	return gobCodec{}
}

type gobCodec struct{}

func (gobCodec) Name() string { return "gob" }

func (gobCodec) Encode(kind protocol.Kind, msg any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, fmt.Errorf("gob encode %s: %w", kind, err)
	}
	return buf.Bytes(), nil
}

func (gobCodec) Decode(kind protocol.Kind, data []byte) (any, error) {
	target, ok := newByKind(kind)
	if !ok {
		return nil, fmt.Errorf("gob decode: unknown message kind %s", kind)
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(target); err != nil {
		return nil, fmt.Errorf("gob decode %s: %w", kind, err)
	}
	return target, nil
}
