package fields

import (
	"context"
	"fmt"
	"strings"

	"github.com/digitalpromise/prism/internal/llm"
	"github.com/digitalpromise/prism/internal/segment"
)

const batchPromptTemplate = `Extract the following fields from the provided text.
Return a JSON object with these keys:
%s

Do not add explanation or extra text.
Follow the specific instructions for each field.

%s

Text:
%s`

// Completer is the LLM operation the processor depends on.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string) (map[string]any, *llm.Response, error)
}

// UsageLogger receives per-call token accounting.
type UsageLogger interface {
	LogModelCall(field, scope string, inTokens, outTokens int, model, recordID string)
}

// Processor runs the configured extraction batches against an LLM.
type Processor struct {
	batches []Batch
	llm     Completer
	log     UsageLogger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithUsageLogger reports each LLM call to the given logger.
func WithUsageLogger(log UsageLogger) ProcessorOption {
	return func(p *Processor) {
		p.log = log
	}
}

// NewProcessor builds a processor over the batches defined in cfg.
func NewProcessor(cfg *Config, completer Completer, opts ...ProcessorOption) *Processor {
	p := &Processor{
		batches: cfg.Batches(),
		llm:     completer,
	}

	// Apply options
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Result is the outcome of one extraction run. Fields holds a value for
// every field of every batch that produced a JSON object; keys the model
// left out are present with a nil value. Warnings records per-batch
// degradations (failed call, unparseable reply, missing keys).
type Result struct {
	Fields   map[string]any
	Warnings map[string]string
	Usage    llm.Usage
}

// Process runs every batch over its scoped section of the paper. A batch
// whose section is blank falls back to the full text. Batch failures
// degrade to warnings; the only error returned is context cancellation.
func (p *Processor) Process(ctx context.Context, sections segment.Sections, fullText, recordID string) (*Result, error) {
	res := &Result{
		Fields:   make(map[string]any),
		Warnings: make(map[string]string),
	}

	for _, batch := range p.batches {
		scoped := sections.ByName(batch.Scope)
		if strings.TrimSpace(scoped) == "" {
			scoped = fullText
		}

		names := make([]string, len(batch.Fields))
		prompts := make([]string, len(batch.Fields))
		for i, f := range batch.Fields {
			names[i] = f.Name
			prompts[i] = strings.TrimSpace(f.Prompt)
		}
		prompt := fmt.Sprintf(batchPromptTemplate,
			strings.Join(names, ", "),
			strings.Join(prompts, "\n"),
			scoped,
		)

		out, resp, err := p.llm.CompleteJSON(ctx, prompt)
		if resp != nil {
			res.Usage.PromptTokens += resp.Usage.PromptTokens
			res.Usage.CompletionTokens += resp.Usage.CompletionTokens
			res.Usage.TotalTokens += resp.Usage.TotalTokens
			if p.log != nil {
				p.log.LogModelCall(batch.Name, batch.Scope,
					resp.Usage.PromptTokens, resp.Usage.CompletionTokens,
					resp.Model, recordID)
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Warnings[batch.Name] = err.Error()
			continue
		}

		var missing []string
		for _, f := range batch.Fields {
			res.Fields[f.Name] = out[f.Name]
			if _, ok := out[f.Name]; !ok {
				missing = append(missing, f.Name)
			}
		}
		if len(missing) > 0 {
			res.Warnings[batch.Name] = "Missing fields: " + strings.Join(missing, ", ")
		}
	}

	return res, nil
}
