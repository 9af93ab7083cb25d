// Package codec converts DynamoDB attribute values to and from JSON.
//
// Two encodings are supported:
//   - ModeRaw: the typed wire encoding ({"S": "a"}, {"N": "1"}, ...)
//   - ModeDocument: plain JSON values, numbers kept exact as json.Number
package codec

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Mode selects an item encoding.
type Mode string

const (
	// ModeRaw encodes attribute values with their type descriptors.
	ModeRaw Mode = "raw"

	// ModeDocument encodes attribute values as plain JSON values.
	ModeDocument Mode = "document"
)

var (
	// ErrUnsupportedValue is returned for attribute value types the codec does not know.
	ErrUnsupportedValue = errors.New("unsupported attribute value")

	// ErrInvalidValue is returned when JSON input is not a valid typed attribute value.
	ErrInvalidValue = errors.New("invalid attribute value")
)

// EncodeItem converts an item to its typed JSON form.
func EncodeItem(item map[string]types.AttributeValue) (map[string]any, error) {
	if item == nil {
		return nil, nil
	}
	out := make(map[string]any, len(item))
	for name, av := range item {
		v, err := EncodeValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// EncodeValue converts one attribute value to its typed JSON form.
func EncodeValue(av types.AttributeValue) (map[string]any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return map[string]any{"S": v.Value}, nil
	case *types.AttributeValueMemberN:
		return map[string]any{"N": v.Value}, nil
	case *types.AttributeValueMemberB:
		return map[string]any{"B": v.Value}, nil
	case *types.AttributeValueMemberBOOL:
		return map[string]any{"BOOL": v.Value}, nil
	case *types.AttributeValueMemberNULL:
		return map[string]any{"NULL": v.Value}, nil
	case *types.AttributeValueMemberSS:
		return map[string]any{"SS": nonNilStrings(v.Value)}, nil
	case *types.AttributeValueMemberNS:
		return map[string]any{"NS": nonNilStrings(v.Value)}, nil
	case *types.AttributeValueMemberBS:
		bs := v.Value
		if bs == nil {
			bs = [][]byte{}
		}
		return map[string]any{"BS": bs}, nil
	case *types.AttributeValueMemberM:
		m, err := EncodeItem(v.Value)
		if err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]any{}
		}
		return map[string]any{"M": m}, nil
	case *types.AttributeValueMemberL:
		l := make([]any, 0, len(v.Value))
		for i, elem := range v.Value {
			e, err := EncodeValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			l = append(l, e)
		}
		return map[string]any{"L": l}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, av)
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
