package rpcapi

import "google.golang.org/grpc"

// DialOption forces every call on the resulting connection through the gob
// codec in this package, so callers never need to hand-register protobuf
// message types.
func DialOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.ForceCodec(gobCodec{}))
}

// ServerOption is the server-side counterpart of DialOption.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(gobCodec{})
}
