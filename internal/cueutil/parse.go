// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// ParseResult contains the result of a successful CUE parse operation.
type ParseResult[T any] struct {
	// Value is the decoded Go struct.
	Value *T

	// Unified is the unified CUE value, available for advanced use cases
	// such as extracting additional metadata.
	Unified cue.Value
}

// ParseAndDecode performs the 3-step CUE parsing flow:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify with schema
//  3. Validate and decode to Go struct
//
// schemaPath is the path to the root definition (e.g., "#Config").
func ParseAndDecode[T any](schema, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	filename := options.filename
	if filename == "" {
		filename = "<input>"
	}

	if err := CheckFileSize(data, options.maxFileSize, filename); err != nil {
		return nil, err
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileBytes(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: failed to compile schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(filename))
	if userValue.Err() != nil {
		return nil, FormatError(userValue.Err(), filename)
	}

	schemaRoot := schemaValue.LookupPath(cue.ParsePath(schemaPath))
	if schemaRoot.Err() != nil {
		return nil, fmt.Errorf("internal error: schema definition %s not found: %w", schemaPath, schemaRoot.Err())
	}

	unified := schemaRoot.Unify(userValue)

	if options.concrete {
		if err := unified.Validate(cue.Concrete(true)); err != nil {
			return nil, FormatError(err, filename)
		}
	} else {
		if err := unified.Validate(); err != nil {
			return nil, FormatError(err, filename)
		}
	}

	var result T
	if err := unified.Decode(&result); err != nil {
		return nil, FormatError(err, filename)
	}

	return &ParseResult[T]{
		Value:   &result,
		Unified: unified,
	}, nil
}

// ParseAndDecodeString is a convenience wrapper that accepts schema as string.
func ParseAndDecodeString[T any](schema string, data []byte, schemaPath string, opts ...Option) (*ParseResult[T], error) {
	return ParseAndDecode[T]([]byte(schema), data, schemaPath, opts...)
}
