package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sjawhar/rtms-tutor/internal/config"
	"github.com/sjawhar/rtms-tutor/internal/llm"
)

var errCheckFailed = errors.New("configuration cannot start the relay")

func newCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration without starting the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, warnings, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return runCheck(cmd.OutOrStdout(), cfg, warnings)
		},
	}
}

func runCheck(w io.Writer, cfg config.Config, warnings []string) error {
	fmt.Fprintf(w, "listen address:  %s\n", cfg.ListenAddr)
	fmt.Fprintf(w, "review interval: %s\n", cfg.ParsedReviewInterval())
	fmt.Fprintf(w, "review model:    %s\n", cfg.Model)
	fmt.Fprintf(w, "explain model:   %s\n", cfg.ExplainModelRef())
	fmt.Fprintf(w, "transcription:   %s\n", enabled(cfg.DeepgramAPIKey != ""))

	ok := true
	for _, ref := range []string{cfg.Model, cfg.ExplainModelRef()} {
		if _, _, err := llm.ParseModel(ref); err != nil {
			fmt.Fprintf(w, "FAIL %v\n", err)
			ok = false
		}
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		ok = false
	}

	for _, warning := range warnings {
		fmt.Fprintf(w, "WARN %s\n", warning)
	}
	if !ok {
		return errCheckFailed
	}
	fmt.Fprintln(w, "OK")
	return nil
}

func enabled(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
