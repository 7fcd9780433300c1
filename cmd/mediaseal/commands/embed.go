package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/mediaseal/pkg/cli"
	"github.com/haivivi/mediaseal/pkg/media"
	"github.com/haivivi/mediaseal/pkg/registry"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

var embedFlags mediaFlags

var embedCmd = &cobra.Command{
	Use:   "embed <input> <output>",
	Short: "Embed a text watermark",
	Long: `Embed a text watermark into an image, audio or video file.

The media type is detected from the input. The output must be a writable
format of the same type: png, jpg, bmp or tiff for images; wav, flac, mp3,
ogg or m4a for audio; any container ffmpeg can write for video. GIF and
WebP inputs can be read but not written.

Input and output may be s3://bucket/key locations; they are staged through
~/.mediaseal/mediaseal/cache using the context's S3 settings.

Successful embeds are recorded in the registry, so a later extract of the
output finds the payload length on its own.

Examples:
  mediaseal embed photo.png sealed.png --text "(c) ACME"
  mediaseal embed song.wav sealed.mp3 -t "id:42" --tag "release-3"
  mediaseal embed clip.mp4 sealed.mp4 -t "clip" --mode audio
  mediaseal embed -f embed.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: runEmbed,
}

func init() {
	embedCmd.Flags().StringVarP(&embedFlags.text, "text", "t", "", "watermark text (required)")
	addAlgorithmFlags(embedCmd, &embedFlags)
	embedCmd.Flags().Float64VarP(&embedFlags.strength, "strength", "s", 0, fmt.Sprintf("embedding strength (default %g)", media.DefaultStrength))
	embedCmd.Flags().BoolVar(&embedFlags.lossless, "lossless", false, "re-encode video losslessly")
	embedCmd.Flags().StringVar(&embedFlags.tag, "tag", "", "provenance tag written into MP3 outputs")
	embedCmd.Flags().BoolVar(&embedFlags.noRegistry, "no-registry", false, "do not record the embed in the registry")
}

// embedOutput is the result printed by embed.
type embedOutput struct {
	media.EmbedResult `json:",inline" yaml:",inline"`
	RecordID          string `json:"record_id,omitempty" yaml:"record_id,omitempty"`
}

func runEmbed(cmd *cobra.Command, args []string) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	req, err := loadRequest(cmd, args, &embedFlags)
	if err != nil {
		return err
	}
	if req.Output == "" {
		return fmt.Errorf("%w: output is required", watermark.ErrInvalidArgument)
	}
	if req.Text == "" {
		return fmt.Errorf("%w: --text is required", watermark.ErrInvalidArgument)
	}
	opts, err := resolveOptions(c, req)
	if err != nil {
		return err
	}

	start := time.Now()
	ctx := cmd.Context()
	st := newStager(c)
	defer st.Close()
	in, err := st.input(ctx, req.Input)
	if err != nil {
		return err
	}
	out, publish, err := st.output(req.Output)
	if err != nil {
		return err
	}

	res, err := newSealer(c).Embed(ctx, in, out, req.Text, opts)
	if err != nil {
		return err
	}
	res.Input, res.Output = req.Input, req.Output

	result := embedOutput{EmbedResult: *res}
	if !embedFlags.noRegistry {
		rec, err := recordEmbed(ctx, c, req.Text, res, out)
		if err != nil {
			cli.PrintWarning("embed not recorded: %v", err)
		} else {
			result.RecordID = rec.ID
		}
	}
	if err := publish(ctx); err != nil {
		return err
	}

	cli.PrintSuccess("Embedded %d bits into %s (capacity %d)", res.Bits, req.Output, res.Capacity)
	if verbose && !isJSONOutput() {
		cli.PrintSummary("Embed", embedFields(res, out, time.Since(start)))
	}
	return outputResult(cmd, result, req.Output)
}

func embedFields(res *media.EmbedResult, local string, elapsed time.Duration) []cli.Field {
	fields := []cli.Field{
		{Label: "Media", Value: string(res.Media)},
		{Label: "Algorithm", Value: fmt.Sprintf("%s (strength %g)", res.Algorithm, res.Strength)},
		{Label: "Payload", Value: cli.FormatPayload(res.Bits, res.Capacity)},
	}
	if res.Frames > 0 {
		fields = append(fields, cli.Field{Label: "Frames", Value: strconv.Itoa(res.Frames)})
	}
	if fi, err := os.Stat(local); err == nil {
		fields = append(fields, cli.Field{Label: "Size", Value: cli.FormatBytes(fi.Size())})
	}
	return append(fields, cli.Field{Label: "Elapsed", Value: cli.FormatDuration(elapsed)})
}

// recordEmbed stores res in the registry under the digest of the local
// output file.
func recordEmbed(ctx context.Context, c *cli.Context, text string, res *media.EmbedResult, local string) (registry.Record, error) {
	digest, err := registry.FileDigest(local)
	if err != nil {
		return registry.Record{}, err
	}
	reg, store, err := openRegistry(c)
	if err != nil {
		return registry.Record{}, err
	}
	defer store.Close()
	return reg.Add(ctx, registry.Record{
		Media:     string(res.Media),
		Mode:      string(res.Mode),
		Algorithm: string(res.Algorithm),
		Strength:  res.Strength,
		Payload:   text,
		BitLength: res.Bits,
		Source:    res.Input,
		Output:    res.Output,
		Digest:    digest,
		Lossless:  res.Lossless,
	})
}
