// Package dataset reads and writes the files that drive a crowd run: the
// simulation dataset, scene objects, saved room profiles and real
// trajectories.
package dataset

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// ErrSchema is returned when a document fails schema validation.
var ErrSchema = errors.New("dataset: schema validation failed")

var (
	simulationSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema("simulation.schema.json")
	})
	sceneSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
		return compileSchema("scene.schema.json")
	})
)

func compileSchema(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", name, err)
	}
	s, err := jsonschema.CompileString(name, string(data))
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}
	return s, nil
}

// validate checks raw JSON against a compiled schema.
func validate(schema func() (*jsonschema.Schema, error), data []byte) error {
	s, err := schema()
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing json: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrSchema, err)
	}
	return nil
}
