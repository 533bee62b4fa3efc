package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/coffersTech/rplog/internal/config"
	"github.com/coffersTech/rplog/internal/emitter"
	"github.com/coffersTech/rplog/internal/engine"
	"github.com/coffersTech/rplog/internal/ingest"
	"github.com/coffersTech/rplog/internal/layout"
	"github.com/coffersTech/rplog/internal/logging"
	"github.com/coffersTech/rplog/internal/mime"
	"github.com/coffersTech/rplog/internal/model"
	"github.com/coffersTech/rplog/internal/parser"
	"github.com/coffersTech/rplog/internal/spool"
)

func newReplayCmd(a *app) *cobra.Command {
	var owner, itemName, dir string
	cmd := &cobra.Command{
		Use:   "replay [flags] FILE|-",
		Short: "Classify JSON-lines log events and spool the resulting records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir != "" {
				a.cfg.Spool.Dir = dir
			}
			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			defer in.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stats, err := replay(ctx, a.cfg, owner, itemName, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "emitted=%d dropped=%d failed=%d\n", stats.Emitted, stats.Dropped, stats.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner item id of every record")
	cmd.Flags().StringVar(&itemName, "name", "replay", "item name used in diagnostics")
	cmd.Flags().StringVar(&dir, "spool", "", "spool directory (overrides config)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func openInput(arg string) (io.ReadCloser, error) {
	if arg == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(arg)
}

// newClassifier builds the classifier described by cfg.
func newClassifier(cfg config.Config) (*engine.Classifier, error) {
	var resources = os.DirFS(".")
	if cfg.Handler.ResourceDir != "" {
		resources = os.DirFS(cfg.Handler.ResourceDir)
	}
	opts := engine.Options{
		Layout:   layout.NewPattern(cfg.Handler.Pattern),
		Parser:   parser.New(resources),
		Detector: mime.NewDetector(),
		Logger:   logging.Internal("engine"),
	}
	if len(cfg.Handler.InternalPrefixes) > 0 {
		opts.IsInternal = engine.InternalPrefixes(cfg.Handler.InternalPrefixes...)
	}
	return engine.NewClassifier(opts)
}

func openSpool(cfg config.Config) (*spool.Writer, error) {
	opts := spool.Options{MaxSegmentBytes: cfg.Spool.MaxSegmentBytes}
	if cfg.Spool.Seal {
		key, generated, err := spool.LoadKey(cfg.Spool.KeyFile)
		if err != nil {
			return nil, err
		}
		if generated {
			slog.Warn("generated new spool key", "path", cfg.Spool.KeyFile)
		}
		opts.Key = key
	}
	return spool.OpenWriter(cfg.Spool.Dir, opts)
}

// replay classifies every event of in and spools the records under owner.
func replay(ctx context.Context, cfg config.Config, owner, itemName string, in io.Reader) (emitter.Stats, error) {
	classifier, err := newClassifier(cfg)
	if err != nil {
		return emitter.Stats{}, err
	}
	w, err := openSpool(cfg)
	if err != nil {
		return emitter.Stats{}, err
	}
	defer w.Close()

	em := emitter.New(emitter.Options{
		Sink:           w,
		Policy:         emitter.ParsePolicy(cfg.Emitter.Policy),
		BatchSize:      cfg.Emitter.BatchSize,
		FlushInterval:  cfg.Emitter.FlushInterval,
		QueueSize:      cfg.Emitter.QueueSize,
		ResolveTimeout: cfg.Emitter.ResolveTimeout,
		Logger:         logging.Internal("emitter"),
	})
	item := em.StartItem(ctx, itemName, nil, func(context.Context) (string, error) {
		return owner, nil
	})
	itemCtx := emitter.WithItem(ctx, item)

	log := logging.Internal("replay")
	suppressed := 0
	scanErr := ingest.NewDecoder(time.Now).Scan(in, func(line int, e model.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn, ok := classifier.Prepare(e)
		if !ok {
			suppressed++
			return nil
		}
		if err := em.Emit(itemCtx, fn); err != nil {
			log.Warn("record not emitted", "line", line, "error", err)
		}
		return nil
	})

	em.FinishItem(item)
	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Emitter.ResolveTimeout+5*time.Second)
	defer cancel()
	if err := em.Close(closeCtx); err != nil {
		return em.Stats(), fmt.Errorf("drain emitter: %w", err)
	}
	log.Info("replay finished", "suppressed", suppressed, "segment", w.Path())
	return em.Stats(), scanErr
}
