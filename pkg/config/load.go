package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
)

// PreprocessorName is the key of this preprocessor's table in book.toml.
const PreprocessorName = "diagrams"

// FromJSON decodes the preprocessor table forwarded by mdbook. raw is the JSON
// value of config.preprocessor.diagrams; empty input or "null" yields the
// defaults.
func FromJSON(raw []byte) (Config, error) {
	cfg := Default()
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode [preprocessor.%s]", PreprocessorName)
	}
	return cfg, nil
}

// LoadFile reads a configuration file. TOML files may either be a full
// book.toml (the [preprocessor.diagrams] table is used) or a standalone file
// whose top-level keys are the configuration keys. YAML files are always
// standalone.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), errors.Wrap(errors.ErrCodeInvalidPath, err, "read config %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return decodeTOML(data, path)
	case ".yaml", ".yml":
		return decodeYAML(data, path)
	default:
		return Default(), errors.New(errors.ErrCodeInvalidConfig, "unsupported config file type: %s (expected .toml, .yaml or .yml)", path)
	}
}

// bookTOML is the subset of book.toml this preprocessor reads.
type bookTOML struct {
	Preprocessor map[string]toml.Primitive `toml:"preprocessor"`
}

func decodeTOML(data []byte, path string) (Config, error) {
	cfg := Default()

	var book bookTOML
	md, err := toml.Decode(string(data), &book)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if prim, ok := book.Preprocessor[PreprocessorName]; ok {
		if err := md.PrimitiveDecode(prim, &cfg); err != nil {
			return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode [preprocessor.%s] in %s", PreprocessorName, path)
		}
		return cfg, nil
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode %s", path)
	}
	return cfg, nil
}

func decodeYAML(data []byte, path string) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "decode %s", path)
	}
	return cfg, nil
}
