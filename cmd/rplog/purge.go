package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/coffersTech/rplog/internal/logging"
	"github.com/coffersTech/rplog/internal/spool"
)

func newPurgeCmd(a *app) *cobra.Command {
	var retention time.Duration
	cmd := &cobra.Command{
		Use:   "purge [flags] [DIR]",
		Short: "Delete spool segments older than the retention",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.cfg.Spool.Dir
			if len(args) == 1 {
				dir = args[0]
			}
			if retention == 0 {
				retention = a.cfg.Spool.Retention
			}
			removed, err := spool.Purge(dir, retention, time.Now(), logging.Internal("cleaner"))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d segment(s)\n", len(removed))
			return nil
		},
	}
	cmd.Flags().DurationVar(&retention, "retention", 0, "retention window (default from config)")
	return cmd
}
