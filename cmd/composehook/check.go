package main

import (
	"fmt"

	"composehook/internal/compose"
	"composehook/internal/config"
	"composehook/pkg/cmdutil"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and compose file",
	Long: `Load the configuration from the environment, parse the compose file and
print a summary. Exits non-zero when either is invalid, so the command can
gate deployments in CI or during provisioning.`,
	RunE: runCheck,
}

type checkReport struct {
	Config  checkConfig      `yaml:"config"`
	Compose *compose.Summary `yaml:"compose"`
}

type checkConfig struct {
	Addr           string `yaml:"addr"`
	Secret         string `yaml:"secret"`
	ComposeDir     string `yaml:"compose_dir"`
	ComposeFile    string `yaml:"compose_file"`
	ComposeCommand string `yaml:"compose_command"`
	HistoryDB      string `yaml:"history_db,omitempty"`
	RateLimit      int    `yaml:"rate_limit,omitempty"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	secret := "(not set)"
	if !cfg.AuthDisabled() {
		secret = "(redacted)"
	}

	report := checkReport{
		Config: checkConfig{
			Addr:           cfg.Addr(),
			Secret:         secret,
			ComposeDir:     cfg.ComposeDir,
			ComposeFile:    cfg.ComposePath(),
			ComposeCommand: cmdutil.FormatCommand(cfg.ComposeArgv()),
			HistoryDB:      cfg.HistoryDB,
			RateLimit:      cfg.RateLimit,
		},
	}

	summary, inspectErr := compose.Inspect(cmd.Context(), cfg.ComposeDir, cfg.ComposePath())
	report.Compose = summary

	out, err := yaml.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	fmt.Print(string(out))

	if inspectErr != nil {
		return fmt.Errorf("compose file check failed: %w", inspectErr)
	}

	fmt.Println("Configuration OK")
	return nil
}
