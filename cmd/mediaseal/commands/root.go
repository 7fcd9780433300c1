package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/haivivi/mediaseal/pkg/cli"
)

const appName = "mediaseal"

var (
	// Global flags
	cfgFile      string
	contextName  string
	outputFile   string
	inputFile    string
	outputJSON   bool
	outputFormat string
	verbose      bool

	// Global configuration
	globalConfig *cli.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mediaseal",
	Short: "Invisible text watermarks for images, audio and video",
	Long: `mediaseal - embed and recover invisible text watermarks.

Watermarks are written into the frequency domain of the media:
  - images: every colour channel (or luma for grayscale)
  - audio: the mid band of a 44.1 kHz mono mix
  - video: every frame, the audio track, or both (needs ffmpeg)

Two algorithms are available: dct (block DCT, default) and dwt (Haar wavelet).

Configuration is stored in ~/.mediaseal/mediaseal/ and supports multiple
contexts, similar to kubectl's context management. Every embed is recorded
in a local registry so extract can find the payload length on its own.

Examples:
  # Watermark an image and read it back
  mediaseal embed photo.png sealed.png --text "(c) ACME"
  mediaseal extract sealed.png

  # Use the wavelet codec at a higher strength
  mediaseal embed voice.wav sealed.wav -t "id:42" -a dwt -s 0.3

  # Watermark the frames and soundtrack of a video
  mediaseal embed clip.mp4 sealed.mp4 -t "clip-7" --mode both --lossless

  # Stage media through S3
  mediaseal -c prod embed s3://media/in.png s3://media/out.png -t "prod"

  # Machine-readable status line
  mediaseal --json capacity photo.png

  # Just the recovered text
  mediaseal extract sealed.png --format raw
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Command returns the root cobra command.
func Command() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx. Failures are reported as a
// styled line on stderr and a JSON status line on stdout.
func ExecuteContext(ctx context.Context) error {
	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err != nil {
		cli.PrintError("%v", err)
		cli.WriteStatus(rootCmd.OutOrStdout(), cli.ErrorStatus(actionName(cmd), err))
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global persistent flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "", "", "config file (default is ~/.mediaseal/mediaseal/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&contextName, "context", "c", "", "context name to use")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "write the result to a file instead of stdout")
	rootCmd.PersistentFlags().StringVarP(&inputFile, "file", "f", "", "input request file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print a single-line JSON status instead of YAML")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "yaml", "result format: yaml, json or raw")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(capacityCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(registryCmd)
}

func initConfig() {
	// Configure slog based on verbose flag
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	var err error
	globalConfig, err = cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		// Media commands still run on built-in defaults.
		cli.PrintWarning("%s config: %v", appName, err)
	}
}

// getConfig returns the global configuration
func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return globalConfig, nil
}

// getContext returns the context to use. Without configuration or a
// current context it returns an empty context, so built-in defaults apply.
func getContext() (*cli.Context, error) {
	if globalConfig == nil {
		if contextName != "" {
			return nil, fmt.Errorf("context %q not found: configuration not loaded", contextName)
		}
		return &cli.Context{}, nil
	}
	return globalConfig.ResolveContext(contextName)
}

// actionName is the command path below the root, e.g. "registry list".
func actionName(cmd *cobra.Command) string {
	if cmd == nil || cmd == rootCmd {
		return appName
	}
	path := cmd.CommandPath()
	return path[len(rootCmd.Name())+1:]
}
