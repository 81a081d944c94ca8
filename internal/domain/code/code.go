package code

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
)

// Source is one deployable module: either inline text for script sources
// or a base64-encoded payload for non-text assets.
type Source struct {
	// Text is the module source when the asset is textual.
	Text string
	// Binary is the base64-encoded payload when the asset is not textual.
	Binary string
	// IsBinary distinguishes an empty text module from a binary one.
	IsBinary bool
}

// Mapping associates module names with their sources. This is the exact
// structure uploaded to the server in one deployment call.
type Mapping map[string]Source

// binaryWrapper is the wire shape the server expects for non-text modules.
type binaryWrapper struct {
	Binary string `json:"binary"`
}

// NewText returns a text module source.
func NewText(text string) Source {
	return Source{Text: text}
}

// NewBinary returns a binary module source wrapping the raw payload.
func NewBinary(payload []byte) Source {
	return Source{
		Binary:   base64.StdEncoding.EncodeToString(payload),
		IsBinary: true,
	}
}

// MarshalJSON encodes text modules as bare strings and binary modules
// as {"binary": "<base64>"} objects, matching the server API contract.
func (s Source) MarshalJSON() ([]byte, error) {
	if s.IsBinary {
		return json.Marshal(binaryWrapper{Binary: s.Binary})
	}

	return json.Marshal(s.Text)
}

// UnmarshalJSON accepts either wire shape.
func (s *Source) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = Source{Text: text}

		return nil
	}

	var wrapper binaryWrapper
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return fmt.Errorf("decode module source: %w", err)
	}

	*s = Source{Binary: wrapper.Binary, IsBinary: true}

	return nil
}

// Payload decodes the binary payload of the source.
func (s Source) Payload() ([]byte, error) {
	if !s.IsBinary {
		return []byte(s.Text), nil
	}

	payload, err := base64.StdEncoding.DecodeString(s.Binary)
	if err != nil {
		return nil, fmt.Errorf("decode module payload: %w", err)
	}

	return payload, nil
}

// Modules returns the sorted module names of the mapping.
func (m Mapping) Modules() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
