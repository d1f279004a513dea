package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sofmeright/imagetree/src/config"
	"github.com/sofmeright/imagetree/src/ctxlog"
)

var (
	cfg *config.Config
	v   = viper.New()
)

// Runtime setting keys, settable by flag or IMAGETREE_* environment.
const (
	keyConfig    = "config"
	keyVerbose   = "verbose"
	keyTemplates = "templates"
	keyLogDir    = "log-dir"
	keyLogLevel  = "log-level"
	keyLogFormat = "log-format"
)

var rootCmd = &cobra.Command{
	Use:   "imagetree",
	Short: "Hierarchical Docker image builds from one config tree",
	Long: `imagetree renders Dockerfiles and package manifests from a declarative
configuration tree and builds the resulting image hierarchy, parents first.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := v.GetString(keyLogLevel)
		if v.GetBool(keyVerbose) {
			level = "debug"
		}
		logger := ctxlog.New(level, v.GetString(keyLogFormat), os.Stderr)
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cmd.SetContext(ctxlog.WithLogger(ctx, logger))

		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" || (cmd.HasParent() && cmd.Parent().Name() == "completion") {
			return nil
		}
		var err error
		cfg, err = config.Load(v.GetString(keyConfig))
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		warnings, err := config.Validate(cfg)
		for _, w := range warnings {
			logger.Warn(w)
		}
		return err
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String(keyConfig, "", "config file (default: imagetree.yml)")
	pf.BoolP(keyVerbose, "v", false, "verbose output")
	pf.String(keyTemplates, "templates", "directory holding Dockerfile templates")
	pf.String(keyLogDir, ".", "directory for per-image build logs")
	pf.String(keyLogLevel, "info", "log level (debug, info, warn, error)")
	pf.String(keyLogFormat, "text", "log format (text, json)")

	if err := v.BindPFlags(pf); err != nil {
		panic(err)
	}
	v.SetEnvPrefix("imagetree")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
