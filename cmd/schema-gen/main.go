/*
Copyright © 2025 Jayson Grace <jayson.e.grace@gmail.com>

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/

// Package main generates a JSON schema from the ml-workspace-build configuration structure.
// The generated schema enables IDE autocompletion and validation for ml-workspace-build.yaml.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/khulnasoft/ml-workspace-build/config"
)

const schemaID = "https://github.com/khulnasoft/ml-workspace-build/schema/config.json"

var (
	output = flag.String("o", "schema/ml-workspace-build.json", "Output path for JSON schema")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
		FieldNameTag:              "yaml",
	}

	// Type-level doc comments; field descriptions still come from the struct tags.
	if err := reflector.AddGoComments("github.com/khulnasoft/ml-workspace-build", "./config"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to extract type-level comments: %v\n", err)
	}

	schema := reflector.Reflect(&config.Config{})

	schema.ID = jsonschema.ID(schemaID)
	schema.Title = "ml-workspace-build configuration"
	schema.Description = "Schema for the ml-workspace-build and ml-workspace-gpu-build config file"

	defaults := config.Default()
	schema.Examples = []interface{}{
		map[string]interface{}{
			"log": map[string]interface{}{
				"level":  defaults.Log.Level,
				"format": defaults.Log.Format,
			},
			"registry": map[string]interface{}{
				"prefix": defaults.Registry.Prefix,
			},
			"build": map[string]interface{}{
				"context":    defaults.Build.Context,
				"dockerfile": defaults.Build.Dockerfile,
				"cache_from": []string{"type=registry,ref=ghcr.io/khulnasoft/ml-workspace:buildcache"},
			},
			"buildkit": map[string]interface{}{
				"endpoint": "tcp://buildkit:1234",
			},
			"release": map[string]interface{}{
				"concurrency": defaults.Release.Concurrency,
			},
		},
	}

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	dir := filepath.Dir(*output)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// Append newline to satisfy end-of-file-fixer
	data = append(data, '\n')

	if err := os.WriteFile(*output, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}

	fmt.Printf("✓ Generated JSON schema: %s\n", *output)
	return nil
}
