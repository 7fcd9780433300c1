package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/haivivi/mediaseal/pkg/cli"
	"github.com/haivivi/mediaseal/pkg/media"
	"github.com/haivivi/mediaseal/pkg/registry"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

var extractFlags mediaFlags

var extractCmd = &cobra.Command{
	Use:   "extract <input>",
	Short: "Recover a text watermark",
	Long: `Recover a text watermark from an image, audio or video file.

The payload length in bytes is taken from --length. Without it, the file is
looked up in the registry by its SHA-256 digest, which also supplies the
algorithm and video mode used at embed time.

Video is decoded by voting over several sampled frames; a warning is
printed when the vote confidence falls below the threshold.

Examples:
  mediaseal extract sealed.png
  mediaseal extract sealed.wav --length 5 -a dwt
  mediaseal extract sealed.mp4 -l 4 --sample-frames 11 --skip-frames 2
  mediaseal --json extract s3://media/out.png`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	addAlgorithmFlags(extractCmd, &extractFlags)
	addSamplingFlags(extractCmd, &extractFlags)
}

func runExtract(cmd *cobra.Command, args []string) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	req, err := loadRequest(cmd, args, &extractFlags)
	if err != nil {
		return err
	}
	opts, err := resolveOptions(c, req)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st := newStager(c)
	defer st.Close()
	in, err := st.input(ctx, req.Input)
	if err != nil {
		return err
	}

	length := req.Length
	if length <= 0 {
		rec, err := lookupRecord(ctx, c, in)
		if err != nil {
			return fmt.Errorf("%w: no --length given and %s is not in the registry: %v", watermark.ErrInvalidArgument, req.Input, err)
		}
		length = applyRecord(rec, req, &opts)
		slog.Debug("payload length from registry", "record", rec.ID, "length", length)
	}

	res, err := newSealer(c).Extract(ctx, in, length, opts)
	if err != nil {
		return err
	}
	if res.LowConfidence {
		cli.PrintWarning("low confidence %s (threshold %s)", cli.FormatPercent(res.Confidence), cli.FormatPercent(opts.Sampling.ConfidenceThreshold))
	} else {
		cli.PrintSuccess("Extracted %q from %s (confidence %s)", res.Text, req.Input, cli.FormatPercent(res.Confidence))
	}
	return outputResult(cmd, res, "")
}

// lookupRecord finds the registry record whose output hashes like path.
func lookupRecord(ctx context.Context, c *cli.Context, path string) (*registry.Record, error) {
	reg, store, err := openRegistry(c)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	rec, err := reg.FindByFile(ctx, path)
	if errors.Is(err, registry.ErrNotFound) {
		return nil, errors.New("digest not registered")
	}
	return rec, err
}

// applyRecord fills the settings the request left open from rec and
// returns the payload length.
func applyRecord(rec *registry.Record, req *request, opts *media.Options) int {
	if req.Algorithm == "" && rec.Algorithm != "" {
		opts.Algorithm = watermark.Kind(rec.Algorithm)
	}
	if req.Mode == "" && rec.Mode != "" {
		opts.Mode = media.VideoMode(rec.Mode)
	}
	return rec.PayloadLength()
}
