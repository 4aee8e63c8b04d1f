package knowledge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
)

// Format is a serialized knowledge-base layout.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath infers the format from a file or object name. A trailing
// ".zst" is ignored so compressed objects resolve to their inner format.
func FormatFromPath(path string) (Format, error) {
	name := strings.TrimSuffix(strings.ToLower(path), ".zst")
	switch filepath.Ext(name) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: unsupported knowledge base format %q", domerrors.ErrInvalidInput, path)
	}
}

var utf8BOM = []byte("\xef\xbb\xbf")

// Parse decodes data of the given format into a Base.
func Parse(format Format, source string, data []byte) (*Base, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	switch format {
	case FormatJSON:
		return parseJSON(source, data)
	case FormatYAML:
		return parseYAML(source, data)
	case FormatTOML:
		return parseTOML(source, data)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", domerrors.ErrInvalidInput, format)
	}
}

// parseJSON walks the top-level object token by token; decoding into a map
// would lose the key order that suggestion tie-breaking depends on.
func parseJSON(source string, data []byte) (*Base, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("read opening token: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("top level must be an object of question to answer")
	}

	b := NewBuilder(source)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("read value for %q: %w", key, err)
		}
		text, err := scalarText(key, value)
		if err != nil {
			return nil, err
		}
		if err := b.Add(key, text); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read closing token: %w", err)
	}
	return b.Build()
}

func scalarText(key string, value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", domerrors.NewValidationError(key, "answer must be a string")
	}
}

func parseYAML(source string, data []byte) (*Base, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty yaml document")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("top level must be a mapping of question to answer")
	}

	b := NewBuilder(source)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return nil, domerrors.NewValidationError(k.Value, "answer must be a scalar")
		}
		if err := b.Add(k.Value, v.Value); err != nil {
			return nil, err
		}
	}
	return b.Build()
}

// tomlDocument keeps the outline as its own field; TOML arrays of tables
// preserve entry order natively.
type tomlDocument struct {
	Outline string  `toml:"outline"`
	Entries []Entry `toml:"entries"`
}

func parseTOML(source string, data []byte) (*Base, error) {
	var doc tomlDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode toml: %w", err)
	}
	return FromEntries(source, doc.Outline, doc.Entries)
}

// Marshal serializes a base. JSON and YAML use the flat layout with the
// reserved outline key first; TOML uses the outline/entries layout.
func Marshal(format Format, b *Base) ([]byte, error) {
	switch format {
	case FormatJSON:
		return marshalJSON(b)
	case FormatYAML:
		return marshalYAML(b)
	case FormatTOML:
		return toml.Marshal(tomlDocument{Outline: b.outline, Entries: b.entries})
	default:
		return nil, fmt.Errorf("%w: unknown format %q", domerrors.ErrInvalidInput, format)
	}
}

func marshalJSON(b *Base) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	write := func(k, v string, last bool) error {
		kb, err := json.Marshal(k)
		if err != nil {
			return err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.WriteString("  ")
		buf.Write(kb)
		buf.WriteString(": ")
		buf.Write(vb)
		if !last {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
		return nil
	}
	if b.outline != "" {
		if err := write(OutlineKey, b.outline, len(b.entries) == 0); err != nil {
			return nil, err
		}
	}
	for i, e := range b.entries {
		if err := write(e.Question, e.Answer, i == len(b.entries)-1); err != nil {
			return nil, err
		}
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func marshalYAML(b *Base) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	add := func(k, v string) {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v},
		)
	}
	if b.outline != "" {
		add(OutlineKey, b.outline)
	}
	for _, e := range b.entries {
		add(e.Question, e.Answer)
	}
	return yaml.Marshal(root)
}
