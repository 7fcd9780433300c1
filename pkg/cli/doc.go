// Package cli holds the plumbing shared by the mediaseal command tree:
// named configuration contexts, result output (YAML, JSON, raw), request
// file loading, directory layout, and styled terminal messages.
//
// Configuration lives in ~/.mediaseal/<app>/config.yaml and supports
// multiple contexts similar to kubectl:
//
//	cfg, err := cli.LoadConfig("mediaseal")
//	ctx, err := cfg.ResolveContext("")
//	cli.Output(result, cli.OutputOptions{Format: cli.FormatJSON})
package cli
