// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
)

// Decode validates data against the definition in schema (e.g. "#Catalog")
// and decodes the unified value into a T.
func Decode[T any](schema, data []byte, definition string, opts ...Option) (*T, error) {
	var out T
	if err := decodeInto(schema, data, definition, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// DecodeMap is Decode for callers that merge the document into another
// configuration source and need a plain map instead of a struct.
func DecodeMap(schema, data []byte, definition string, opts ...Option) (map[string]any, error) {
	var out map[string]any
	if err := decodeInto(schema, data, definition, &out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateValue checks a Go value decoded from another format against the
// definition in schema. Field names follow the value's json tags.
func ValidateValue(schema []byte, definition string, value any, opts ...Option) error {
	options := applyOptions(opts)
	ctx := cuecontext.New()

	root, err := compileDefinition(ctx, schema, definition)
	if err != nil {
		return err
	}
	encoded := ctx.Encode(value)
	if encoded.Err() != nil {
		return FormatError(encoded.Err(), options.name())
	}
	return validate(root.Unify(encoded), options)
}

func decodeInto(schema, data []byte, definition string, out any, opts ...Option) error {
	options := applyOptions(opts)
	filename := options.name()

	if err := CheckFileSize(data, options.maxFileSize, filename); err != nil {
		return err
	}

	ctx := cuecontext.New()
	root, err := compileDefinition(ctx, schema, definition)
	if err != nil {
		return err
	}

	user := ctx.CompileBytes(data, cue.Filename(filename))
	if user.Err() != nil {
		return FormatError(user.Err(), filename)
	}

	unified := root.Unify(user)
	if err := validate(unified, options); err != nil {
		return err
	}
	if err := unified.Decode(out); err != nil {
		return FormatError(err, filename)
	}
	return nil
}

func compileDefinition(ctx *cue.Context, schema []byte, definition string) (cue.Value, error) {
	compiled := ctx.CompileBytes(schema)
	if compiled.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: failed to compile schema: %w", compiled.Err())
	}
	root := compiled.LookupPath(cue.ParsePath(definition))
	if root.Err() != nil {
		return cue.Value{}, fmt.Errorf("internal error: schema definition %s not found: %w", definition, root.Err())
	}
	return root, nil
}

func validate(v cue.Value, options decodeOptions) error {
	if err := v.Validate(cue.Concrete(options.concrete)); err != nil {
		return FormatError(err, options.name())
	}
	return nil
}

func applyOptions(opts []Option) decodeOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Marshal renders a Go value as formatted CUE. Field names follow the
// value's json tags.
func Marshal(value any) ([]byte, error) {
	v := cuecontext.New().Encode(value)
	if v.Err() != nil {
		return nil, fmt.Errorf("encoding value: %w", v.Err())
	}
	out, err := format.Node(v.Syntax())
	if err != nil {
		return nil, fmt.Errorf("formatting CUE: %w", err)
	}
	return out, nil
}
