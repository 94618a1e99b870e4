package componentdb

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-thermofom/internal/domain"
)

//go:embed data/components.yaml
var defaultData []byte

// databaseFile is the on-disk YAML layout.
type databaseFile struct {
	ReferenceState domain.StateCondition `yaml:"reference_state"`
	Components     []Component           `yaml:"components"`
}

var (
	defaultOnce sync.Once
	defaultDB   *Database
	defaultErr  error
)

// Default returns the built-in database of common heat-transfer liquids at
// 25 °C and 1 atm. The embedded data is parsed once.
func Default() (*Database, error) {
	defaultOnce.Do(func() {
		defaultDB, defaultErr = ParseYAML(defaultData)
	})
	return defaultDB, defaultErr
}

// ParseYAML decodes a database document. Unknown fields are rejected so a
// misspelled property never silently becomes zero.
func ParseYAML(data []byte) (*Database, error) {
	var file databaseFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("YAML decode failed: %w", err)
	}
	return New(file.ReferenceState, file.Components)
}

// WriteYAML encodes db in the layout ParseYAML accepts.
func WriteYAML(w io.Writer, db *Database) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(databaseFile{ReferenceState: db.reference, Components: db.Components()}); err != nil {
		return fmt.Errorf("YAML encode failed: %w", err)
	}
	return enc.Close()
}
