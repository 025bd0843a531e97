package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/allocgo/allocation"
	"github.com/YuminosukeSato/allocgo/pkg/config"
	"github.com/YuminosukeSato/allocgo/pkg/log"
)

// cli holds the state shared by every subcommand.
type cli struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	artifact   string
	baseScore  float64

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "allocgo",
		Short: "Split savings between a fixed deposit and a savings account",
		Long: `allocgo loads a gradient boosting model artifact and turns household
financial profiles into a fixed-deposit / savings-account allocation.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "YAML config file (default $ALLOCGO_CONFIG)")
	pf.StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the environment")
	pf.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&c.logFormat, "log-format", "", "json or console")
	pf.StringVar(&c.artifact, "artifact", "", "model artifact JSON file")
	pf.Float64Var(&c.baseScore, "base-score", 0, "init score for artifacts that do not record one")

	root.AddCommand(
		c.newValidateCmd(),
		c.newPredictCmd(),
		c.newServeCmd(),
		c.newGenerateCmd(),
		c.newEvaluateCmd(),
	)
	return root
}

// setup resolves the configuration and installs the process logger.
// Flags win over the config file and the environment.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.Options{ConfigPath: c.configPath, EnvFile: c.envFile})
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("artifact") {
		cfg.ArtifactPath = c.artifact
	}
	if flags.Changed("base-score") {
		v := c.baseScore
		cfg.BaseScore = &v
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = c.logFormat
	}

	if err := log.SetupLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr()); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// requireArtifact validates the full configuration, artifact path included.
func (c *cli) requireArtifact() error {
	return c.cfg.Validate()
}

func (c *cli) loadOptions() []allocation.LoadOption {
	opts := []allocation.LoadOption{allocation.WithBatchThreshold(c.cfg.BatchThreshold)}
	if c.cfg.BaseScore != nil {
		opts = append(opts, allocation.WithBaseScore(*c.cfg.BaseScore))
	}
	return opts
}

func (c *cli) loadModel() (*allocation.Model, error) {
	if err := c.requireArtifact(); err != nil {
		return nil, err
	}
	return allocation.LoadFile(c.cfg.ArtifactPath, c.loadOptions()...)
}
