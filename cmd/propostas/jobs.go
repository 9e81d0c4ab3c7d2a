package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/constructa/propostas/jobs"
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type queueInspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// jobsCLI triggers maintenance tasks by hand and reports queue depth.
type jobsCLI struct {
	client    taskEnqueuer
	inspector queueInspector
}

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	var retention int
	trigger := &cobra.Command{
		Use:       "trigger <task>",
		Short:     "Enqueue a maintenance task (proposal:expire, idempotency:cleanup)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskExpireProposals, jobs.TaskIdempotencySweep},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsCLI(func(c *jobsCLI) error {
				info, err := c.trigger(commandContext(cmd), args[0], retention)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	}
	trigger.Flags().IntVar(&retention, "retention-hours", 72, "idempotency key retention for idempotency:cleanup")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobsCLI(func(c *jobsCLI) error {
				return c.printStats(cmd.OutOrStdout())
			})
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}

func withJobsCLI(fn func(*jobsCLI) error) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	opts := asynq.RedisClientOpt{Addr: e.cfg.RedisAddr}
	client := asynq.NewClient(opts)
	defer client.Close()
	inspector := asynq.NewInspector(opts)
	defer inspector.Close()
	return fn(&jobsCLI{client: client, inspector: inspector})
}

func (c *jobsCLI) trigger(ctx context.Context, name string, retentionHours int) (*asynq.TaskInfo, error) {
	var (
		task *asynq.Task
		err  error
	)
	switch name {
	case jobs.TaskExpireProposals:
		task = jobs.NewExpireProposalsTask()
	case jobs.TaskIdempotencySweep:
		task, err = jobs.NewIdempotencySweepTask(retentionHours)
	default:
		return nil, fmt.Errorf("unsupported job %q", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(jobs.QueueDefault), asynq.MaxRetry(3))
}

func (c *jobsCLI) printStats(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
	for _, q := range []string{jobs.QueueMail, jobs.QueueDefault} {
		info, err := c.inspector.GetQueueInfo(q)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				fmt.Fprintf(tw, "%s\t0\t0\t0\t0\t0\n", q)
				continue
			}
			return fmt.Errorf("inspect %s: %w", q, err)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", q, info.Pending, info.Active, info.Scheduled, info.Retry, info.Archived)
	}
	return tw.Flush()
}
