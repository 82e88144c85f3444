package fields

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads and validates the field-definitions file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// Validate entries
	for i, f := range cfg.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("field entry %d must have a 'name'", i+1)
		}
	}

	return &cfg, nil
}

// DefaultScope maps a batch name to the document section its prompt reads.
// Batches the mapping does not recognize read the main body.
func DefaultScope(batch string) string {
	name := strings.ToLower(batch)
	switch {
	case strings.Contains(name, "meta"):
		return "pre_intro"
	case strings.Contains(name, "abstract"):
		return "abstract"
	case strings.Contains(name, "outcome"):
		return "main_body"
	case strings.Contains(name, "semantic"):
		return "main_body"
	}
	return "main_body"
}

// Batches groups the enabled, prompted fields by batch name, in the order
// batches first appear in the file. Fields without a batch or a prompt are
// left out.
func (c *Config) Batches() []Batch {
	var batches []Batch
	index := make(map[string]int)

	for _, f := range c.Fields {
		if !f.enabled() || f.Batch == "" || f.Prompt == "" {
			continue
		}
		i, ok := index[f.Batch]
		if !ok {
			i = len(batches)
			index[f.Batch] = i
			batches = append(batches, Batch{
				Name:  f.Batch,
				Scope: DefaultScope(f.Batch),
			})
		}
		batches[i].Fields = append(batches[i].Fields, f)
	}

	return batches
}
