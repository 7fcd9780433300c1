package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/haivivi/mediaseal/pkg/cli"
	"github.com/haivivi/mediaseal/pkg/media"
)

var capacityFlags mediaFlags

var capacityCmd = &cobra.Command{
	Use:   "capacity <input>",
	Short: "Report how much text a file can carry",
	Long: `Report how many payload bits a file can carry under an algorithm.

Images report their dimensions, audio its sample count at 44.1 kHz mono,
and video the per-frame capacity. With --text, also report whether the
text fits.

Examples:
  mediaseal capacity photo.png
  mediaseal capacity voice.flac -a dwt
  mediaseal capacity clip.mp4 --text "a long copyright notice"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCapacity,
}

func init() {
	capacityCmd.Flags().StringVarP(&capacityFlags.algorithm, "algorithm", "a", "", "watermark algorithm: dct or dwt (default dct)")
	capacityCmd.Flags().StringVarP(&capacityFlags.text, "text", "t", "", "check whether this text fits")
}

// capacityOutput is the result printed by capacity.
type capacityOutput struct {
	media.CapacityReport `json:",inline" yaml:",inline"`
	Fits                 *bool `json:"fits,omitempty" yaml:"fits,omitempty"`
}

func runCapacity(cmd *cobra.Command, args []string) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	req, err := loadRequest(cmd, args, &capacityFlags)
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

	report, err := newSealer(c).Capacity(ctx, in, opts.Algorithm)
	if err != nil {
		return err
	}
	result := capacityOutput{CapacityReport: *report}
	if req.Text != "" {
		fits := report.Fits(req.Text)
		result.Fits = &fits
		if !fits {
			cli.PrintWarning("%d bits of text exceed the capacity of %d bits", len(req.Text)*8, report.Bits)
		}
	}
	if !isJSONOutput() {
		cli.PrintSummary("Capacity", capacityFields(report))
	}
	return outputResult(cmd, result, "")
}

func capacityFields(r *media.CapacityReport) []cli.Field {
	fields := []cli.Field{
		{Label: "Media", Value: string(r.Media)},
		{Label: "Algorithm", Value: string(r.Algorithm)},
	}
	if r.Width > 0 {
		fields = append(fields, cli.Field{Label: "Size", Value: fmt.Sprintf("%dx%d", r.Width, r.Height)})
	}
	if r.Samples > 0 {
		duration := time.Duration(r.Samples) * time.Second / time.Duration(media.AudioFormat.SampleRate)
		fields = append(fields,
			cli.Field{Label: "Samples", Value: strconv.Itoa(r.Samples)},
			cli.Field{Label: "Duration", Value: cli.FormatDuration(duration)},
		)
	}
	return append(fields,
		cli.Field{Label: "Bits", Value: strconv.Itoa(r.Bits)},
		cli.Field{Label: "Characters", Value: strconv.Itoa(r.Bytes)},
	)
}
