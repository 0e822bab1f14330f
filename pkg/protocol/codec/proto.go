package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type protoCodec struct {
	mo proto.MarshalOptions
	uo proto.UnmarshalOptions
}

// Proto returns a deterministic Protocol Buffers codec. Values that are not
// proto messages are converted to google.protobuf.Struct from their
// map[string]any form.
func Proto() Codec {
	return protoCodec{
		mo: proto.MarshalOptions{Deterministic: true},
		uo: proto.UnmarshalOptions{},
	}
}

func (p protoCodec) ContentType() string { return ContentProto }

func (p protoCodec) Marshal(v any) ([]byte, error) {
	switch msg := v.(type) {
	case proto.Message:
		return p.mo.Marshal(msg)
	case map[string]any:
		s, err := structpb.NewStruct(msg)
		if err != nil {
			return nil, fmt.Errorf("protobuf: convert map: %w", err)
		}
		return p.mo.Marshal(s)
	default:
		return nil, fmt.Errorf("protobuf: value is neither proto.Message nor map[string]any: %T", v)
	}
}

func (p protoCodec) Unmarshal(data []byte, v any) error {
	switch out := v.(type) {
	case proto.Message:
		return p.uo.Unmarshal(data, out)
	case *map[string]any:
		var s structpb.Struct
		if err := p.uo.Unmarshal(data, &s); err != nil {
			return err
		}
		*out = s.AsMap()
		return nil
	default:
		return fmt.Errorf("protobuf: target is neither proto.Message nor *map[string]any: %T", v)
	}
}
