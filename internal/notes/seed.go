package notes

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type tagSeedDocument struct {
	Tags []string `yaml:"tags"`
}

// ParseTagSeed decodes a YAML document of the form `tags: [name, ...]`.
// Blank entries are dropped and duplicates collapse to their first occurrence.
func ParseTagSeed(reader io.Reader) ([]string, error) {
	var document tagSeedDocument
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	if err := decoder.Decode(&document); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("notes: decode tag seed: %w", err)
	}

	seen := make(map[string]struct{}, len(document.Tags))
	names := make([]string, 0, len(document.Tags))
	for _, raw := range document.Tags {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}

// LoadTagSeed reads and parses a tag seed file from disk.
func LoadTagSeed(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("notes: open tag seed: %w", err)
	}
	defer file.Close()
	return ParseTagSeed(file)
}
