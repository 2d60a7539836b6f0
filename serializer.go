package jumpbridge

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// MsgpackSerializer is the default encoding.
type MsgpackSerializer struct{}

func (MsgpackSerializer) Name() string { return "msgpack" }

func (MsgpackSerializer) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackSerializer) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// JSONSerializer encodes messages as JSON text. Integral numbers arrive as
// float64 arguments; non-finite floats in results are sent as strings.
type JSONSerializer struct{}

func (JSONSerializer) Name() string { return "json" }

func (JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// ProtoSerializer carries each message as a binary google.protobuf.Struct.
// Messages take the JSON shape first, so numbers are limited to float64
// precision.
type ProtoSerializer struct{}

func (ProtoSerializer) Name() string { return "protobuf" }

func (ProtoSerializer) Marshal(v any) ([]byte, error) {
	text, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var s structpb.Struct
	if err := protojson.Unmarshal(text, &s); err != nil {
		return nil, fmt.Errorf("message is not a JSON object: %w", err)
	}
	return proto.Marshal(&s)
}

func (ProtoSerializer) Unmarshal(data []byte, v any) error {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return err
	}
	text, err := protojson.Marshal(&s)
	if err != nil {
		return err
	}
	return json.Unmarshal(text, v)
}

// NewSerializer returns the serializer registered under name.
func NewSerializer(name string) (Serializer, error) {
	switch name {
	case "", "msgpack":
		return MsgpackSerializer{}, nil
	case "json":
		return JSONSerializer{}, nil
	case "protobuf", "proto":
		return ProtoSerializer{}, nil
	}
	return nil, fmt.Errorf("unknown serializer %q", name)
}
