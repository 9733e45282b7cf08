package main

import (
	"fmt"
	"io"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/edu-agent/internal/config"
)

var version = "dev" // set via ldflags at build time

type rootOptions struct {
	baseURL  string
	fallback string
	quiet    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "edu-chat",
		Short: "Chat with the EduAgent physics tutor",
		Long: `edu-chat opens an interactive session against an EduAgent server.
Questions are answered by the server; when it cannot be reached a local
responder answers instead so the conversation can continue.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer app.close()
			return app.repl(cmd.Context(), cmd.InOrStdin())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "EduAgent server URL (overrides EDU_API_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.fallback, "fallback", "", "YAML file with offline answer rules (overrides EDU_FALLBACK_FILE)")
	cmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false, "Hide sync diagnostics")

	cmd.AddCommand(newAskCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(newStatusCmd(opts))
	return cmd
}

// open loads configuration and builds the session for one command run.
func (o *rootOptions) open(cmd *cobra.Command) (*chatApp, error) {
	// .env is optional for the client.
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	if o.fallback != "" {
		cfg.FallbackFile = o.fallback
	}

	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	if o.quiet {
		logger.SetOutput(io.Discard)
	}
	return newChatApp(cfg, cmd.OutOrStdout(), logger)
}
