package grpcraft

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodecName is registered as a grpc.CallContentSubtype so the client
// and server agree to exchange JSON frames instead of protobuf wire
// format. There is no protoc toolchain available to generate real
// protobuf message types for this service, so the RPC plumbing below is
// hand-written in the shape protoc-gen-go-grpc would have produced, and
// wired to this codec instead of the default proto codec.
const jsonCodecName = "json"

type jsonCodec struct{}

func (jsonCodec) Name() string { return jsonCodecName }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
