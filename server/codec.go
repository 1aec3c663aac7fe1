package server

import "encoding/json"

// jsonCodec lets connect handlers carry plain Go structs instead of
// generated protobuf messages. Registering it under the "json" name
// replaces the default codec for application/json requests.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}
