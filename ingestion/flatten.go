package ingestion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Fact is one flattened key/value pair.
type Fact struct {
	Key   string
	Value string
}

// Document is a corpus record before it is assigned a row.
type Document struct {
	Content string
	Source  string
}

// Document returns the corpus form of f: "<key>: <value>" sourced from the key.
func (f Fact) Document() Document {
	return Document{Content: f.Key + ": " + f.Value, Source: f.Key}
}

// Documents converts facts to documents, preserving order.
func Documents(facts []Fact) []Document {
	docs := make([]Document, len(facts))
	for i, f := range facts {
		docs[i] = f.Document()
	}
	return docs
}

// Flatten walks a decoded JSON value and returns one fact per scalar.
// Object keys are joined with "." and visited in sorted order; list items
// are addressed as key[i]. Empty objects and lists produce no facts.
func Flatten(value any) []Fact {
	var facts []Fact
	flattenInto(&facts, "", value)
	return facts
}

// FlattenJSON decodes data and flattens it.
func FlattenJSON(data []byte) ([]Fact, error) {
	value, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}
	return Flatten(value), nil
}

func flattenInto(facts *[]Fact, key string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for _, k := range slices.Sorted(maps.Keys(v)) {
			child := k
			if key != "" {
				child = key + "." + k
			}
			flattenInto(facts, child, v[k])
		}
	case []any:
		for i, item := range v {
			flattenInto(facts, fmt.Sprintf("%s[%d]", key, i), item)
		}
	default:
		*facts = append(*facts, Fact{Key: key, Value: scalarString(v)})
	}
}

// scalarString renders a decoded JSON scalar. Numbers keep their source text.
func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return "null"
	case string:
		return s
	case json.Number:
		return s.String()
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decoding json: unexpected data after top-level value")
	}
	return value, nil
}
