// Command rplog replays captured log events into a local spool and
// inspects or purges spooled submission records.
//
// Usage:
//
//	rplog replay --owner item-1 events.jsonl
//	rplog inspect spool/
//	rplog purge --retention 72h spool/
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/coffersTech/rplog/internal/config"
	"github.com/coffersTech/rplog/internal/logging"
)

type app struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "rplog",
		Short:         "Replay, inspect and purge spooled log submissions",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			if a.logLevel != "" {
				cfg.Log.Level = a.logLevel
			}
			a.cfg = cfg
			logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")

	root.AddCommand(newReplayCmd(a), newInspectCmd(a), newPurgeCmd(a))
	return root
}
