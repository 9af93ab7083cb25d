package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DocumentItem converts an item to plain JSON values. Numbers become
// json.Number so integral values print without a fraction and no precision is lost.
func DocumentItem(item map[string]types.AttributeValue) (map[string]any, error) {
	if item == nil {
		return nil, nil
	}
	out := make(map[string]any, len(item))
	for name, av := range item {
		v, err := DocumentValue(av)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// DocumentValue converts one attribute value to a plain JSON value.
func DocumentValue(av types.AttributeValue) (any, error) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value, nil
	case *types.AttributeValueMemberN:
		return json.Number(v.Value), nil
	case *types.AttributeValueMemberB:
		return v.Value, nil
	case *types.AttributeValueMemberBOOL:
		return v.Value, nil
	case *types.AttributeValueMemberNULL:
		return nil, nil
	case *types.AttributeValueMemberSS:
		return nonNilStrings(v.Value), nil
	case *types.AttributeValueMemberNS:
		ns := make([]json.Number, 0, len(v.Value))
		for _, n := range v.Value {
			ns = append(ns, json.Number(n))
		}
		return ns, nil
	case *types.AttributeValueMemberBS:
		if v.Value == nil {
			return [][]byte{}, nil
		}
		return v.Value, nil
	case *types.AttributeValueMemberM:
		m, err := DocumentItem(v.Value)
		if err != nil {
			return nil, err
		}
		if m == nil {
			m = map[string]any{}
		}
		return m, nil
	case *types.AttributeValueMemberL:
		l := make([]any, 0, len(v.Value))
		for i, elem := range v.Value {
			e, err := DocumentValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			l = append(l, e)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, av)
	}
}

// MarshalDocument parses a JSON object of plain values, for example
// {":val": 10}, into attribute values.
func MarshalDocument(data []byte) (map[string]types.AttributeValue, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}

	item, err := attributevalue.MarshalMap(exactNumbers(doc))
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return item, nil
}

// exactNumbers swaps json.Number for attributevalue.Number so numbers are
// stored as N with their original text.
func exactNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		return attributevalue.Number(t.String())
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			out[k] = exactNumbers(elem)
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, elem := range t {
			out = append(out, exactNumbers(elem))
		}
		return out
	default:
		return v
	}
}
