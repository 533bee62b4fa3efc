package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coffersTech/rplog/internal/mime"
	"github.com/coffersTech/rplog/internal/model"
	"github.com/coffersTech/rplog/internal/spool"
)

type attachmentView struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Path        string `json:"path,omitempty"`
}

type recordView struct {
	OwnerID    string          `json:"owner_id"`
	TimeMillis int64           `json:"time"`
	Level      string          `json:"level"`
	Message    string          `json:"message"`
	Attachment *attachmentView `json:"attachment,omitempty"`
}

func newInspectCmd(a *app) *cobra.Command {
	var extractDir string
	cmd := &cobra.Command{
		Use:   "inspect [flags] SEGMENT|DIR",
		Short: "Print spooled records as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key []byte
			if a.cfg.Spool.Seal {
				k, _, err := spool.LoadKey(a.cfg.Spool.KeyFile)
				if err != nil {
					return err
				}
				key = k
			}
			return inspect(cmd.OutOrStdout(), args[0], key, extractDir)
		},
	}
	cmd.Flags().StringVar(&extractDir, "extract", "", "write attachments into this directory")
	return cmd
}

func inspect(w io.Writer, path string, key []byte, extractDir string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	segments := []string{path}
	if info.IsDir() {
		if segments, err = spool.Segments(path); err != nil {
			return err
		}
	}
	if extractDir != "" {
		if err := os.MkdirAll(extractDir, 0755); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(w)
	for _, seg := range segments {
		r, err := spool.OpenReader(seg, key)
		if err != nil {
			return fmt.Errorf("%s: %w", seg, err)
		}
		for r.Next() {
			view, err := viewOf(r.Record(), extractDir)
			if err == nil {
				err = enc.Encode(view)
			}
			if err != nil {
				r.Close()
				return err
			}
		}
		err = r.Err()
		r.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", seg, err)
		}
	}
	return nil
}

func viewOf(rec model.SubmissionRecord, extractDir string) (recordView, error) {
	view := recordView{
		OwnerID:    rec.OwnerID,
		TimeMillis: rec.TimeMillis,
		Level:      rec.Level,
		Message:    rec.Message,
	}
	att := rec.Attachment
	if att == nil {
		return view, nil
	}
	view.Attachment = &attachmentView{
		Name:        att.Name,
		ContentType: att.ContentType,
		Size:        len(att.Content),
	}
	if extractDir != "" {
		name, err := attachmentFileName(att.Name)
		if err != nil {
			return view, err
		}
		p := filepath.Join(extractDir, name+mime.Extension(att.ContentType))
		if err := os.WriteFile(p, att.Content, 0644); err != nil {
			return view, err
		}
		view.Attachment.Path = p
	}
	return view, nil
}

// attachmentFileName strips any directory part from a name read from a
// segment so extraction stays inside the target directory.
func attachmentFileName(name string) (string, error) {
	base := filepath.Base(filepath.FromSlash(strings.ReplaceAll(name, "\\", "/")))
	switch base {
	case "", ".", "..", string(filepath.Separator):
		return "", fmt.Errorf("unsafe attachment name %q", name)
	}
	return base, nil
}
