package historyv1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// docField values are opaque documents. Inside a Struct they travel as JSON
// text in a string value, since Struct numbers are float64.
const docField = "doc"

// ToStruct encodes a wire message as a protobuf Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	val, err := toValue(bytes.TrimSpace(buf.Bytes()), false)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	s := val.GetStructValue()
	if s == nil {
		return nil, fmt.Errorf("encode %T: not an object", v)
	}
	return s, nil
}

func toValue(raw json.RawMessage, asText bool) (*structpb.Value, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty value")
	}
	if string(raw) == "null" {
		return structpb.NewNullValue(), nil
	}
	if asText {
		return structpb.NewStringValue(string(raw)), nil
	}
	switch raw[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
		s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(fields))}
		for k, f := range fields {
			fv, err := toValue(f, k == docField)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			s.Fields[k] = fv
		}
		return structpb.NewStructValue(s), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		l := &structpb.ListValue{Values: make([]*structpb.Value, 0, len(items))}
		for _, it := range items {
			iv, err := toValue(it, false)
			if err != nil {
				return nil, err
			}
			l.Values = append(l.Values, iv)
		}
		return structpb.NewListValue(l), nil
	}
	var scalar any
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return nil, err
	}
	return structpb.NewValue(scalar)
}

// FromStruct decodes a protobuf Struct into a wire message.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	var buf bytes.Buffer
	if err := writeValue(&buf, structpb.NewStructValue(s), false); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	if err := json.Unmarshal(buf.Bytes(), v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

func writeValue(buf *bytes.Buffer, val *structpb.Value, isDoc bool) error {
	switch k := val.GetKind().(type) {
	case *structpb.Value_StringValue:
		if isDoc {
			if !json.Valid([]byte(k.StringValue)) {
				return fmt.Errorf("%s is not valid JSON", docField)
			}
			buf.WriteString(k.StringValue)
			return nil
		}
	case *structpb.Value_StructValue:
		keys := make([]string, 0, len(k.StructValue.GetFields()))
		for key := range k.StructValue.GetFields() {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, key := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, _ := json.Marshal(key)
			buf.Write(name)
			buf.WriteByte(':')
			if err := writeValue(buf, k.StructValue.Fields[key], key == docField); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case *structpb.Value_ListValue:
		buf.WriteByte('[')
		for i, item := range k.ListValue.GetValues() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, item, false); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case nil:
		buf.WriteString("null")
		return nil
	}
	b, err := protojson.Marshal(val)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
