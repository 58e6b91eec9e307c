package ingestion

import "fmt"

// LoadKeyMapping reads a record list of [content, source] pairs, where
// position i describes corpus row i.
func LoadKeyMapping(data []byte) ([]Document, error) {
	value, err := decodeJSON(data)
	if err != nil {
		return nil, err
	}

	pairs, ok := value.([]any)
	if !ok {
		return nil, ErrInvalidMapping
	}

	docs := make([]Document, len(pairs))
	for i, item := range pairs {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("%w: entry %d", ErrInvalidMapping, i)
		}
		docs[i] = Document{Content: scalarString(pair[0]), Source: scalarString(pair[1])}
	}
	return docs, nil
}
