// Package fields runs batched LLM extraction of record fields from a
// segmented paper, driven by a YAML definitions file.
package fields

// Field is one extraction target from the field-definitions file.
type Field struct {
	Name    string `yaml:"name"`
	Prompt  string `yaml:"prompt"`
	Batch   string `yaml:"batch"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

// enabled defaults to true when the flag is omitted.
func (f Field) enabled() bool {
	return f.Enabled == nil || *f.Enabled
}

// Config is the parsed field-definitions file.
type Config struct {
	Fields []Field `yaml:"fields"`
}

// Batch is a group of fields answered by one LLM call against one
// document section.
type Batch struct {
	Name   string
	Scope  string
	Fields []Field
}
