package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a plan from the given file path.
//
// Returns an error if:
//   - The file cannot be read (not found, permission denied, etc.)
//   - The content is not valid YAML, or carries unknown fields
//   - The plan fails validation (version, duplicate ids, unknown
//     dependencies, invalid select patterns)
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("plan file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading plan: %s", path)
		}
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates a plan from raw YAML bytes.
//
// The raw document is first checked against the embedded plan schema, then
// decoded strictly: unknown fields are rejected rather than silently
// ignored, so a misspelled key fails loudly instead of producing a plan
// that quietly drops configuration.
func LoadFromBytes(data []byte) (*Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("plan file is empty")
	}

	jsonData, err := toJSON(data)
	if err != nil {
		return nil, err
	}
	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var p Plan
	if err := decoder.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
