// Package codec implements pluggable wire encodings for the typed-message
// portion of a cache-manager frame. The frame envelope and its optional
// attachment are handled by the transport package; a Codec only ever
// sees the struct fields defined in package protocol, and never the
// attachment bytes (those travel in a separate segment of the frame).
package codec

import "github.com/objcache/cachemgr/protocol"

// Codec encodes and decodes one typed message for a given Kind.
type Codec interface {
	// Name identifies the codec, used by the --codec flag and logging.
	Name() string
	// Encode serializes msg (one of the protocol.*Req/*Reply structs) to bytes.
	Encode(kind protocol.Kind, msg any) ([]byte, error)
	// Decode deserializes bytes into a new value of the struct matching kind.
	Decode(kind protocol.Kind, data []byte) (any, error)
}

// ByName returns the codec matching name ("binary", "gob", "json").
func ByName(name string) (Codec, bool) {
	switch name {
	case "binary", "":
		return NewBinaryCodec(), true
	case "gob":
		return NewGOBCodec(), true
	case "json":
		return NewJSONCodec(), true
	default:
		return nil, false
	}
}
