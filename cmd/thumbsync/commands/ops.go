package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// errRunFailed makes the process exit non-zero after the result has been
// printed.
var errRunFailed = errors.New("run failed")

func (c *CLI) newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the remote tree once and generate thumbnails for changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.Scheduler.RunScan(cmd.Context())
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("%w: %s", errRunFailed, result.Error)
			}
			return nil
		},
	}
}

func (c *CLI) newRegenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate",
		Short: "Regenerate thumbnails for every tracked file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Scheduler.RegenerateAllThumbnails(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func (c *CLI) newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored thumbnail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("refusing to delete thumbnails without --yes")
			}
			a, err := c.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.ClearThumbnails(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"deleted": n})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func (c *CLI) newCleanupCmd() *cobra.Command {
	var hours int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete history older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := c.openStore()
			if hours <= 0 {
				cfg, err := store.LoadConfig()
				if err != nil {
					return err
				}
				hours = cfg.Retention.HistoryHours
			}
			result, err := store.CleanupHistory(hours)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().IntVar(&hours, "hours", 0, "Retention in hours (default: the configured retention)")
	return cmd
}
