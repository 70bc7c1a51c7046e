package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"outreach_backend/internal/leads/domain"
	"outreach_backend/internal/leads/repository"
	"outreach_backend/internal/pipeline"
	"outreach_backend/internal/preview"
	"outreach_backend/internal/scheduler"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/db"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperr.Validation(fmt.Sprintf("invalid %s id %q", kind, raw))
	}
	return id, nil
}

func notFound(kind string, id uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(fmt.Sprintf("%s %s not found", kind, id))
	}
	return err
}

func (c *cli) initDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create or migrate the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				if err := db.RunMigrations(ctx, a.pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database initialized.")
				return nil
			})
		},
	}
}

// stageCmd builds a command that runs one orchestrator stage.
func (c *cli) stageCmd(use, short string, run func(o *pipeline.Orchestrator, ctx context.Context) pipeline.Result) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				o, err := a.orchestrator(ctx)
				if err != nil {
					return err
				}
				r := run(o, ctx)
				printResult(cmd.OutOrStdout(), r)
				return stageError(r)
			})
		},
	}
}

func (c *cli) prospectCmd() *cobra.Command {
	var category, metro string
	cmd := c.stageCmd("prospect", "Discover new leads for a category in a metro",
		func(o *pipeline.Orchestrator, ctx context.Context) pipeline.Result {
			return o.Discover(ctx, category, metro)
		})
	cmd.Flags().StringVar(&category, "category", "", "category key, e.g. plumbing")
	cmd.Flags().StringVar(&metro, "metro", "", `metro area, e.g. "Denver, CO"`)
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("metro")
	return cmd
}

func (c *cli) qualifyCmd() *cobra.Command {
	return c.stageCmd("qualify", "Score every new lead", (*pipeline.Orchestrator).Qualify)
}

func (c *cli) buildCmd() *cobra.Command {
	return c.stageCmd("build", "Render previews for qualified leads", (*pipeline.Orchestrator).Build)
}

func (c *cli) draftCmd() *cobra.Command {
	return c.stageCmd("draft", "Create first drafts for leads with a preview", (*pipeline.Orchestrator).Draft)
}

func (c *cli) checkRepliesCmd() *cobra.Command {
	cmd := c.stageCmd("check-replies", "Poll the inbox and attribute replies", (*pipeline.Orchestrator).CheckReplies)
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if err := c.cfg.RequireIMAP(); err != nil {
			return err
		}
		return run(cmd, args)
	}
	return cmd
}

func (c *cli) queueCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List drafts awaiting approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.outreach()
				if err != nil {
					return err
				}
				drafts, err := svc.Queue(ctx, limit)
				if err != nil {
					return err
				}
				printQueue(cmd.OutOrStdout(), drafts)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum drafts to list (0 = all)")
	return cmd
}

func (c *cli) approveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <draft_id>",
		Short: "Approve a draft for sending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("draft", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.outreach()
				if err != nil {
					return err
				}
				d, err := svc.Approve(ctx, id)
				if err != nil {
					return notFound("draft", id, err)
				}
				to := "N/A"
				if lead, err := a.store.GetLead(ctx, d.LeadID); err == nil && lead.Email != "" {
					to = lead.Email
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Approved: %s -> %s\n", d.Subject, to)
				return nil
			})
		},
	}
}

func (c *cli) sendApprovedCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "send-approved",
		Short: "Send approved drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.outreach()
				if err != nil {
					return err
				}
				if limit <= 0 {
					limit = c.cfg.GetOutreachDailyLimit()
				}
				counts, err := svc.SendApproved(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent: %d  Failed: %d  Skipped: %d  Total: %d\n",
					counts.Sent, counts.Failed, counts.Skipped, counts.Sent+counts.Failed+counts.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum drafts to send (default: OUTREACH_DAILY_LIMIT)")
	return cmd
}

func (c *cli) repliesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "replies",
		Short: "List attributed replies, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				items, err := a.store.ListReplies(ctx, limit)
				if err != nil {
					return err
				}
				printReplies(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum replies to list")
	return cmd
}

func (c *cli) boostCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "boost <lead_id>",
		Short: "Create the next follow-up draft for one lead now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("lead", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.outreach()
				if err != nil {
					return err
				}
				res, err := svc.Boost(ctx, id)
				if err != nil {
					return notFound("lead", id, err)
				}
				out := cmd.OutOrStdout()
				if !res.Created() {
					fmt.Fprintf(out, "No draft created: %s\n", res.Refusal)
					return nil
				}
				fmt.Fprintf(out, "Draft %s created (follow-up #%d): %s\n", res.Draft.ID, res.Draft.FollowupNumber, res.Draft.Subject)
				return nil
			})
		},
	}
}

func (c *cli) pauseCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "pause <lead_id>",
		Short: "Exclude a lead from all automated processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("lead", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.outreach()
				if err != nil {
					return err
				}
				if _, err := svc.Pause(ctx, id, note); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Paused lead %s\n", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "operator note stored on the lead")
	return cmd
}

func (c *cli) unpauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unpause <lead_id>",
		Short: "Return a paused lead to qualified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("lead", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				svc, err := a.outreach()
				if err != nil {
					return err
				}
				if _, err := svc.Unpause(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unpaused lead %s\n", id)
				return nil
			})
		},
	}
}

func (c *cli) convertCmd() *cobra.Command {
	var status string
	var value float64
	cmd := &cobra.Command{
		Use:   "convert <lead_id>",
		Short: "Record a won or lost outcome for a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("lead", args[0])
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				conv, err := a.dashboard().RecordConversion(ctx, id, value, domain.ConversionStatus(strings.ToLower(status)))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for lead %s ($%.2f)\n", conv.Status, id, conv.DealValue)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "won or lost")
	cmd.Flags().Float64Var(&value, "value", 0, "deal value")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func (c *cli) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Print the pipeline funnel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.dashboard().Report(ctx)
				if err != nil {
					return err
				}
				return report.Write(cmd.OutOrStdout())
			})
		},
	}
}

func (c *cli) serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve rendered previews over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCatalog(c.cfg)
			if err != nil {
				return err
			}
			r, err := preview.NewRenderer(c.cfg.GetPreviewDir(), c.cfg.GetPreviewHost(), c.cfg.GetFromName(), cat, nil, c.log)
			if err != nil {
				return err
			}
			addr := c.cfg.GetPreviewAddr()
			if port > 0 {
				addr = net.JoinHostPort("", strconv.Itoa(port))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Preview server running at %s\n", addr)
			fmt.Fprintf(out, "Serving from: %s\n", c.cfg.GetPreviewDir())
			fmt.Fprintln(out, "Press Ctrl+C to stop.")
			return preview.NewServer(r, c.cfg.GetCORSOrigins(), c.log).ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "port (default: PREVIEW_ADDR)")
	return cmd
}

func (c *cli) runDailyCmd() *cobra.Command {
	var category, metro string
	var enqueue bool
	cmd := &cobra.Command{
		Use:   "run-daily",
		Short: "Run discover, qualify, build and draft in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if enqueue {
				client, err := scheduler.NewClient(c.cfg)
				if err != nil {
					return apperr.Wrap(apperr.KindConfig, "scheduler client", err)
				}
				defer func() { _ = client.Close() }()
				id, err := client.EnqueueDailyCycle(cmd.Context(), scheduler.DailyCyclePayload{Category: category, Metro: metro})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Daily cycle queued (task %s).\n", id)
				return nil
			}

			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				o, err := a.orchestrator(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "\n=== DAILY RUN ===")
				results := o.RunDaily(ctx, category, metro)
				var failed []string
				for _, r := range results {
					printResult(out, r)
					if !r.OK {
						failed = append(failed, r.Stage)
					}
				}
				fmt.Fprintln(out, "=== DAILY RUN COMPLETE ===")
				fmt.Fprintln(out, "Next: outreach queue")
				fmt.Fprintln(out, "Then: outreach approve <id>")
				fmt.Fprintln(out, "Then: outreach send-approved")
				if len(failed) > 0 {
					return fmt.Errorf("stages failed: %s", strings.Join(failed, ", "))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "category key, e.g. plumbing")
	cmd.Flags().StringVar(&metro, "metro", "", `metro area, e.g. "Denver, CO"`)
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "queue the run for the scheduler worker instead of running it here")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("metro")
	return cmd
}
