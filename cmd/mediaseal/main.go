// Package main is the entry point for the mediaseal CLI.
//
// Usage:
//
//	mediaseal [flags] <command> [subcommand] [args]
//
// Commands:
//
//	embed      - Embed a text watermark into an image, audio or video file
//	extract    - Recover a watermark
//	capacity   - Report how much text a file can carry
//	inspect    - Show the raw bits and both decodings of a watermark
//	config     - Configuration management (contexts)
//	registry   - Browse the record of past embeds
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/haivivi/mediaseal/cmd/mediaseal/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := commands.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
