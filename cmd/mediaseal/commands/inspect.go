package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/mediaseal/pkg/cli"
	"github.com/haivivi/mediaseal/pkg/watermark"
)

var inspectFlags mediaFlags

var inspectCmd = &cobra.Command{
	Use:   "inspect <input>",
	Short: "Show the raw bits of a watermark",
	Long: `Extract a watermark without requiring it to decode, and report the
raw bits, their statistics, the strict and lossy text decodings, and the
result of the channel or frame vote.

Useful to judge how much damage a file took after recompression.

Examples:
  mediaseal inspect sealed.jpg --length 4
  mediaseal inspect sealed.mp4 -l 4 --mode audio`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	addAlgorithmFlags(inspectCmd, &inspectFlags)
	addSamplingFlags(inspectCmd, &inspectFlags)
}

func runInspect(cmd *cobra.Command, args []string) error {
	c, err := getContext()
	if err != nil {
		return err
	}
	req, err := loadRequest(cmd, args, &inspectFlags)
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
	}

	report, err := newSealer(c).Inspect(ctx, in, length, opts)
	if err != nil {
		return err
	}
	if !isJSONOutput() {
		a := report.Analysis
		cli.PrintSummary("Inspect", []cli.Field{
			{Label: "Source", Value: report.Source},
			{Label: "Bits", Value: fmt.Sprintf("%d (%d ones, ratio %.3f)", a.BitCount, a.Ones, a.OnesRatio)},
			{Label: "Bytes", Value: fmt.Sprintf("% x", a.Bytes)},
			{Label: "Text", Value: fmt.Sprintf("%q", a.Lossy)},
			{Label: "Valid UTF-8", Value: fmt.Sprintf("%t", a.ValidUTF8)},
		})
	}
	return outputResult(cmd, report, "")
}
