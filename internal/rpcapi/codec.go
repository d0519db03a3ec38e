package rpcapi

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// gobCodec lets the hand-written structs in this package travel over grpc
// without machine-generated protobuf bindings: the wire contract this
// control plane cares about is the bidirectional RPC semantics, not a fixed
// .proto schema.
type gobCodec struct{}

const Name = "gob"

func (gobCodec) Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(gobCodec{})
}

// Codec returns the gob codec for callers forcing it per-call or per-stream.
func Codec() encoding.Codec { return gobCodec{} }
