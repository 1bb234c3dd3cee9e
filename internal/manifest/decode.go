package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format selects the payload encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// payload is the on-the-wire catalog shape.
type payload struct {
	Bundles []Bundle `json:"bundles" yaml:"bundles" toml:"bundles"`
}

// FormatFor picks a format from a file name. Files without an extension are JSON.
func FormatFor(name string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case "", ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported manifest extension: %s", ext)
	}
}

// Parse decodes a JSON catalog payload.
func Parse(data []byte) (*Manifest, error) { return Decode(data, FormatJSON) }

// Decode decodes a catalog payload and validates it with New.
func Decode(data []byte, format Format) (*Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyManifest
	}
	var p payload
	switch format {
	case FormatJSON, "":
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", format)
	}
	return New(p.Bundles)
}

// LoadFile reads and decodes a catalog file, choosing the format by extension.
func LoadFile(path string) (*Manifest, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(b, format)
}

// Encode serializes bundles in the JSON payload shape.
func Encode(m *Manifest) ([]byte, error) {
	p := payload{Bundles: make([]Bundle, 0, m.Len())}
	for _, b := range m.bundles {
		c := *b
		c.assets = nil
		p.Bundles = append(p.Bundles, c)
	}
	return json.MarshalIndent(p, "", "  ")
}
