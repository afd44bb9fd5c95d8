package producers

import "encoding/json"

// jsonCodec implements grpc/encoding.Codec so grpcGeyserClient can stream
// TransactionUpdate values without a protobuf code-generation step.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v interface{}) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string { return "json" }
