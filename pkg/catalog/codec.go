// SPDX-License-Identifier: MPL-2.0

package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/composit/composit/internal/cueutil"
	"github.com/composit/composit/internal/issue"
)

const (
	// FormatCUE selects the CUE codec.
	FormatCUE Format = "cue"
	// FormatYAML selects the YAML codec.
	FormatYAML Format = "yaml"
	// FormatTOML selects the TOML codec.
	FormatTOML Format = "toml"

	schemaDefinition = "#Catalog"
)

// ErrUnknownFormat is the sentinel error wrapped by UnknownFormatError.
var ErrUnknownFormat = errors.New("unknown catalog format")

//go:embed catalog_schema.cue
var catalogSchema []byte

type (
	// Format names a catalog file format.
	Format string

	// UnknownFormatError is returned for a format or file extension without
	// a codec.
	UnknownFormatError struct {
		Value string
	}

	// codec converts between catalog files and Catalog values. Decoders only
	// parse; schema and semantic validation happen in Decode.
	codec interface {
		decode(data []byte, filename string) (*Catalog, error)
		encode(c *Catalog) ([]byte, error)
	}

	cueCodec  struct{}
	yamlCodec struct{}
	tomlCodec struct{}
)

var codecs = map[Format]codec{
	FormatCUE:  cueCodec{},
	FormatYAML: yamlCodec{},
	FormatTOML: tomlCodec{},
}

// FormatFromPath picks the format from the file extension: .cue, .yaml or
// .yml, .toml.
func FormatFromPath(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".cue":
		return FormatCUE, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", &UnknownFormatError{Value: ext}
	}
}

// Load reads and validates the catalog at path.
func Load(path string) (*Catalog, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, loadError(path, err, "Use a .cue, .yaml, .yml or .toml file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, loadError(path, err, "Check that the file exists and is readable")
	}
	c, err := decode(format, data, path)
	if err != nil {
		return nil, loadError(path, err, "Check the catalog against the schema: concepts, operations, request")
	}
	return c, nil
}

// Decode parses data in the given format and validates it.
func Decode(format Format, data []byte) (*Catalog, error) {
	return decode(format, data, "<catalog>."+string(format))
}

// Encode renders c in the given format.
func Encode(format Format, c *Catalog) ([]byte, error) {
	cd, ok := codecs[format]
	if !ok {
		return nil, &UnknownFormatError{Value: string(format)}
	}
	return cd.encode(c)
}

func decode(format Format, data []byte, filename string) (*Catalog, error) {
	cd, ok := codecs[format]
	if !ok {
		return nil, &UnknownFormatError{Value: string(format)}
	}
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, filename); err != nil {
		return nil, err
	}
	c, err := cd.decode(data, filename)
	if err != nil {
		return nil, err
	}
	if format != FormatCUE {
		if err := cueutil.ValidateValue(catalogSchema, schemaDefinition, c.normalized(), cueutil.WithFilename(filename)); err != nil {
			return nil, err
		}
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

func loadError(path string, err error, suggestion string) error {
	return issue.NewErrorContext().
		WithOperation("load catalog").
		WithResource(path).
		WithSuggestion(suggestion).
		Wrap(err).
		BuildError()
}

func (cueCodec) decode(data []byte, filename string) (*Catalog, error) {
	return cueutil.Decode[Catalog](catalogSchema, data, schemaDefinition, cueutil.WithFilename(filename))
}

func (cueCodec) encode(c *Catalog) ([]byte, error) {
	return cueutil.Marshal(c.normalized())
}

func (yamlCodec) decode(data []byte, filename string) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%s: failed to parse YAML: %w", filename, err)
	}
	return &c, nil
}

func (yamlCodec) encode(c *Catalog) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}

func (tomlCodec) decode(data []byte, filename string) (*Catalog, error) {
	var c Catalog
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", filename, err)
	}
	return &c, nil
}

func (tomlCodec) encode(c *Catalog) ([]byte, error) {
	out, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode TOML: %w", err)
	}
	return out, nil
}

// Error implements the error interface for UnknownFormatError.
func (e *UnknownFormatError) Error() string {
	return fmt.Sprintf("unknown catalog format %q (valid: cue, yaml, toml)", e.Value)
}

// Unwrap returns ErrUnknownFormat for errors.Is() compatibility.
func (e *UnknownFormatError) Unwrap() error { return ErrUnknownFormat }
