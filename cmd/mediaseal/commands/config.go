package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/haivivi/mediaseal/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage mediaseal configuration.

Configuration is stored in ~/.mediaseal/mediaseal/config.yaml.
Multiple contexts can hold different defaults, ffmpeg binaries, registries
and S3 credentials.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context, replacing one of the same name.

Examples:
  mediaseal config add-context local --algorithm dwt --strength 0.2
  mediaseal config add-context video --ffmpeg /opt/ffmpeg/bin/ffmpeg --lossless`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := args[0]
		ctx := &cli.Context{Name: name}
		for _, key := range []string{"algorithm", "strength", "ffmpeg", "registry_dir", "lossless"} {
			flag := strings.ReplaceAll(key, "_", "-")
			if !cmd.Flags().Changed(flag) {
				continue
			}
			if err := ctx.Set(key, cmd.Flags().Lookup(flag).Value.String()); err != nil {
				return err
			}
		}
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' added successfully", name)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in a context",
	Long: fmt.Sprintf(`Set a value in the context selected by -c, or the current context.

Valid keys: %s

Examples:
  mediaseal config set strength 0.25
  mediaseal -c prod config set s3.endpoint https://minio.local:9000`, strings.Join(cli.ContextKeys, ", ")),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := contextName
		if name == "" {
			name = cfg.CurrentContext
		}
		if name == "" {
			return fmt.Errorf("no context specified. Use -c flag or set a default context with 'mediaseal config use-context'")
		}
		ctx, err := cfg.GetContext(name)
		if err != nil {
			return err
		}
		if err := ctx.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		cli.PrintSuccess("Set %s in context '%s'", args[0], name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context",
	Short: "Show the current context",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if cfg.CurrentContext == "" {
			cli.PrintInfo("No current context set")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), cfg.CurrentContext)
		return nil
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			cli.PrintInfo("No contexts configured")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, name)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration",
	Long:  "View the full configuration with S3 credentials masked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		view := cli.Config{CurrentContext: cfg.CurrentContext, Contexts: make(map[string]*cli.Context, len(cfg.Contexts))}
		for name, ctx := range cfg.Contexts {
			view.Contexts[name] = ctx.Masked()
		}
		return outputResult(cmd, &view, "")
	},
}

func init() {
	// add-context flags
	configAddContextCmd.Flags().StringP("algorithm", "a", "", "default algorithm: dct or dwt")
	configAddContextCmd.Flags().Float64P("strength", "s", 0, "default embedding strength")
	configAddContextCmd.Flags().String("ffmpeg", "", "ffmpeg binary (default: ffmpeg on PATH)")
	configAddContextCmd.Flags().String("registry-dir", "", "registry directory (default: ~/.mediaseal/mediaseal/data/registry)")
	configAddContextCmd.Flags().Bool("lossless", false, "re-encode video losslessly by default")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
