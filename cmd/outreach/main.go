// Command outreach is the operator CLI for the lead pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"outreach_backend/platform/apperr"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if apperr.Is(err, apperr.KindConfig) || apperr.Is(err, apperr.KindValidation) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// cli carries state from the root pre-run into each command.
type cli struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "outreach",
		Short:         "Lead lifecycle and outreach engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return apperr.Wrap(apperr.KindConfig, "load config", err)
			}
			c.cfg = cfg
			// stdout is for command output; logs go to stderr
			c.log = logger.NewWithWriter(cfg.Env, cmd.ErrOrStderr())
			return nil
		},
	}

	root.AddCommand(
		c.initDBCmd(),
		c.prospectCmd(),
		c.qualifyCmd(),
		c.buildCmd(),
		c.draftCmd(),
		c.queueCmd(),
		c.approveCmd(),
		c.sendApprovedCmd(),
		c.checkRepliesCmd(),
		c.repliesCmd(),
		c.boostCmd(),
		c.pauseCmd(),
		c.unpauseCmd(),
		c.convertCmd(),
		c.dashboardCmd(),
		c.smokeTestCmd(),
		c.serveCmd(),
		c.runDailyCmd(),
	)
	return root
}

// withApp connects to the store for the duration of fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, c.cfg, c.log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
