package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/batonkit/baton/internal/capability"
	"github.com/batonkit/baton/internal/capability/builtin"
	"github.com/batonkit/baton/internal/llm"
)

var capabilitiesCmd = &cobra.Command{
	Use:     "capabilities",
	Aliases: []string{"caps"},
	Short:   "List the built-in capabilities",
	Long: `List every capability goals can be decomposed into, with the
autonomy modes each supports and its duration estimate.`,
	RunE: listCapabilities,
}

func listCapabilities(cmd *cobra.Command, args []string) error {
	// Listing never generates, so no API key is needed.
	stub := llm.GeneratorFunc(func(ctx context.Context, system, prompt string) (string, error) {
		return "", errors.New("not executable from a listing")
	})
	reg := capability.NewRegistry()
	for _, c := range builtin.All(stub, reg.Names) {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register capability: %w", err)
		}
	}

	status := reg.Status()
	rows := make([][]string, 0, len(status.Available))
	for _, name := range status.Available {
		c, err := reg.Resolve(name)
		if err != nil {
			return err
		}
		modes := make([]string, 0, len(c.SupportedModes()))
		for _, m := range c.SupportedModes() {
			modes = append(modes, string(m))
		}
		required := "-"
		if keys := c.RequiredContextKeys(); len(keys) > 0 {
			required = strings.Join(keys, ", ")
		}
		rows = append(rows, []string{
			name,
			strings.Join(modes, ", "),
			formatDuration(c.EstimateDuration(nil)),
			required,
		})
	}

	fmt.Printf("%d capabilities registered\n\n", status.Total)
	fmt.Println(renderTable([]string{"NAME", "MODES", "EST", "REQUIRED CONTEXT"}, rows))
	return nil
}
