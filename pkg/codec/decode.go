package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DecodeItem parses a JSON object of typed attribute values, for example
// {":val": {"N": "10"}} or {"pk": {"S": "42"}}.
func DecodeItem(data []byte) (map[string]types.AttributeValue, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return decodeMap(raw)
}

// DecodeValue parses one typed attribute value such as {"S": "a"}.
func DecodeValue(data []byte) (types.AttributeValue, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one type descriptor, got %d", ErrInvalidValue, len(raw))
	}

	for descriptor, body := range raw {
		return decodeTyped(descriptor, body)
	}
	return nil, ErrInvalidValue
}

func decodeMap(raw map[string]json.RawMessage) (map[string]types.AttributeValue, error) {
	if raw == nil {
		return nil, nil
	}
	out := make(map[string]types.AttributeValue, len(raw))
	for name, body := range raw {
		av, err := DecodeValue(body)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = av
	}
	return out, nil
}

func decodeTyped(descriptor string, body json.RawMessage) (types.AttributeValue, error) {
	switch descriptor {
	case "S":
		var s string
		if err := strictUnmarshal(body, &s); err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberS{Value: s}, nil
	case "N":
		var n json.Number
		if err := strictUnmarshal(body, &n); err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberN{Value: n.String()}, nil
	case "B":
		var b []byte
		if err := strictUnmarshal(body, &b); err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberB{Value: b}, nil
	case "BOOL":
		var b bool
		if err := strictUnmarshal(body, &b); err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberBOOL{Value: b}, nil
	case "NULL":
		var b bool
		if err := strictUnmarshal(body, &b); err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberNULL{Value: b}, nil
	case "SS":
		var ss []string
		if err := strictUnmarshal(body, &ss); err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberSS{Value: ss}, nil
	case "NS":
		var ns []json.Number
		if err := strictUnmarshal(body, &ns); err != nil {
			return nil, err
		}
		values := make([]string, 0, len(ns))
		for _, n := range ns {
			values = append(values, n.String())
		}
		return &types.AttributeValueMemberNS{Value: values}, nil
	case "BS":
		var bs [][]byte
		if err := strictUnmarshal(body, &bs); err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberBS{Value: bs}, nil
	case "M":
		var raw map[string]json.RawMessage
		if err := strictUnmarshal(body, &raw); err != nil {
			return nil, err
		}
		m, err := decodeMap(raw)
		if err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]types.AttributeValue{}
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case "L":
		var raw []json.RawMessage
		if err := strictUnmarshal(body, &raw); err != nil {
			return nil, err
		}
		l := make([]types.AttributeValue, 0, len(raw))
		for i, elem := range raw {
			av, err := DecodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			l = append(l, av)
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type descriptor %q", ErrInvalidValue, descriptor)
	}
}

// strictUnmarshal rejects JSON null and numbers given as strings for N.
func strictUnmarshal(body json.RawMessage, v any) error {
	if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return fmt.Errorf("%w: null body", ErrInvalidValue)
	}
	if n, ok := v.(*json.Number); ok {
		// the wire format carries numbers as strings
		var s string
		if err := json.Unmarshal(body, &s); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		*n = json.Number(s)
		if _, err := n.Float64(); err != nil {
			return fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)
		}
		return nil
	}
	if ns, ok := v.(*[]json.Number); ok {
		var ss []string
		if err := json.Unmarshal(body, &ss); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		for _, s := range ss {
			n := json.Number(s)
			if _, err := n.Float64(); err != nil {
				return fmt.Errorf("%w: %q is not a number", ErrInvalidValue, s)
			}
			*ns = append(*ns, n)
		}
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return nil
}
