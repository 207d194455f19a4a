// Package llm provides the language model integration built-in
// capabilities generate content with.
package llm

import "context"

// Generator is the seam capabilities depend on: one prompt in, one
// text completion out. The production implementation is Client;
// tests substitute a GeneratorFunc.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, system, prompt string) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, system, prompt string) (string, error) {
	return f(ctx, system, prompt)
}
