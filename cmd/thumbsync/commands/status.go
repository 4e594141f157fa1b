package commands

import (
	"thumbsync/internal/models"
	"thumbsync/internal/scheduler"

	"github.com/spf13/cobra"
)

type statusOutput struct {
	Scheduler    scheduler.Status      `json:"scheduler"`
	TrackedFiles int                   `json:"trackedFiles"`
	LastRun      models.ScanRun        `json:"lastRun"`
	History      []models.HistoryEntry `json:"history"`
	Changes      []models.ChangeEvent  `json:"changes,omitempty"`
}

func (c *CLI) newStatusCmd() *cobra.Command {
	var limit int
	var withChanges bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the last run, the schedule and recent history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := c.openStore()

			// A scheduler with only a store answers Status without scanning.
			sched := scheduler.New(scheduler.Options{Store: store})
			out := statusOutput{Scheduler: sched.Status()}

			var err error
			if out.TrackedFiles, err = store.FingerprintCount(); err != nil {
				return err
			}
			if out.LastRun, err = store.LastRun(); err != nil {
				return err
			}
			if out.History, err = store.RecentHistory(limit); err != nil {
				return err
			}
			if withChanges {
				if out.Changes, err = store.RecentChanges(limit); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of history entries to show")
	cmd.Flags().BoolVar(&withChanges, "changes", false, "Include recent change events")
	return cmd
}
