package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadRequest decodes the request file at path into v. A path of "-"
// reads standard input.
func LoadRequest(path string, v any) error {
	if path == "-" {
		return DecodeRequest(os.Stdin, "", v)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	defer f.Close()
	return DecodeRequest(f, path, v)
}

// DecodeRequest decodes a YAML or JSON request. The extension of name picks
// the decoder; without one, documents starting with '{' are JSON. Unknown
// fields are rejected so typos do not silently fall back to defaults.
func DecodeRequest(r io.Reader, name string, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}

	var isJSON bool
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		isJSON = true
	case ".yaml", ".yml":
	default:
		isJSON = bytes.HasPrefix(bytes.TrimSpace(data), []byte("{"))
	}

	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return fmt.Errorf("failed to parse JSON request: %w", err)
		}
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML request: %w", err)
	}
	return nil
}
