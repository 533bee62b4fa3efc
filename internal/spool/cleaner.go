package spool

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Purge removes segments of dir started before now-retention and returns
// the names it deleted. A non-positive retention keeps everything.
func Purge(dir string, retention time.Duration, now time.Time, log *slog.Logger) ([]string, error) {
	if retention <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read spool dir: %w", err)
	}

	threshold := now.Add(-retention).UnixMilli()
	var removed []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), Extension) {
			continue
		}
		name := entry.Name()
		start, _, err := parseSegmentName(name)
		if err != nil {
			continue // Skip files with unexpected names
		}
		if start >= threshold {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			if log != nil {
				log.Warn("failed to delete expired segment", "segment", name, "error", err)
			}
			continue
		}
		if log != nil {
			log.Info("expired segment deleted", "segment", name)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

func parseSegmentName(name string) (int64, int, error) {
	// spool_1735230000000_1.rps
	base := strings.TrimSuffix(name, Extension)
	parts := strings.Split(base, "_")
	if len(parts) != 3 || parts[0] != "spool" {
		return 0, 0, fmt.Errorf("invalid segment name %q", name)
	}
	start, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, err
	}
	return start, seq, nil
}
