package codec

import (
	msgpack "gopkg.in/vmihailenco/msgpack.v2"
)

type msgpackCodec struct{}

// Msgpack returns a MessagePack codec. Content-Type: application/msgpack
func Msgpack() Codec { return msgpackCodec{} }

func (msgpackCodec) ContentType() string                { return "application/msgpack" }
func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
