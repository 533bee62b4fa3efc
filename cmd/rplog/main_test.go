package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coffersTech/rplog/internal/config"
	"github.com/coffersTech/rplog/internal/model"
	"github.com/coffersTech/rplog/internal/spool"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Handler.Pattern = "%m"
	cfg.Spool.Dir = filepath.Join(t.TempDir(), "spool")
	cfg.Emitter.FlushInterval = time.Hour
	return cfg
}

func decodeViews(t *testing.T, out string) []recordView {
	t.Helper()
	var views []recordView
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var v recordView
		require.NoError(t, json.Unmarshal(sc.Bytes(), &v))
		views = append(views, v)
	}
	return views
}

func TestReplayAndInspect(t *testing.T) {
	cfg := testConfig(t)
	input := strings.Join([]string{
		`{"logger":"app","time":1000,"level":"ERROR","message":"boom"}`,
		`{"logger":"rplog.emitter","time":1001,"message":"internal"}`,
		`{"logger":"app","time":1002,"rich":{"text":"shot","base64":"iVBORw0KGgo=","type":"image/png"}}`,
		`{"logger":"app","time":1003,"param":7}`,
		`{"logger":"app","time":1004}`,
	}, "\n")

	stats, err := replay(context.Background(), cfg, "item-1", "test", strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Emitted)

	var out bytes.Buffer
	extract := filepath.Join(t.TempDir(), "files")
	require.NoError(t, inspect(&out, cfg.Spool.Dir, nil, extract))

	views := decodeViews(t, out.String())
	require.Len(t, views, 3)
	assert.Equal(t, recordView{OwnerID: "item-1", TimeMillis: 1000, Level: "ERROR", Message: "boom"}, views[0])

	assert.Equal(t, "shot", views[1].Message)
	require.NotNil(t, views[1].Attachment)
	assert.Equal(t, "image/png", views[1].Attachment.ContentType)
	assert.Equal(t, 8, views[1].Attachment.Size)
	assert.True(t, strings.HasSuffix(views[1].Attachment.Path, ".png"))
	content, err := os.ReadFile(views[1].Attachment.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), content)

	assert.Equal(t, "7", views[2].Message)
	assert.Equal(t, "INFO", views[2].Level)
}

func TestReplaySealed(t *testing.T) {
	cfg := testConfig(t)
	cfg.Spool.Seal = true
	cfg.Spool.KeyFile = filepath.Join(t.TempDir(), "spool.key")
	t.Setenv(spool.KeyEnv, "")

	_, err := replay(context.Background(), cfg, "item-1", "test", strings.NewReader(`{"message":"secret"}`))
	require.NoError(t, err)

	var out bytes.Buffer
	assert.ErrorIs(t, inspect(&out, cfg.Spool.Dir, nil, ""), spool.ErrSealed)

	key, generated, err := spool.LoadKey(cfg.Spool.KeyFile)
	require.NoError(t, err)
	assert.False(t, generated)
	out.Reset()
	require.NoError(t, inspect(&out, cfg.Spool.Dir, key, ""))
	assert.Contains(t, out.String(), `"message":"secret"`)
}

func TestInspectExtractStaysInDirectory(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "spool")
	w, err := spool.OpenWriter(dir, spool.Options{})
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), []model.SubmissionRecord{{
		OwnerID: "item-1",
		Message: "crafted",
		Attachment: &model.Attachment{
			Name:        "../../escape",
			ContentType: "text/plain",
			Content:     []byte("hi"),
		},
	}}))
	require.NoError(t, w.Close())

	extract := filepath.Join(base, "out", "files")
	var out bytes.Buffer
	require.NoError(t, inspect(&out, dir, nil, extract))

	views := decodeViews(t, out.String())
	require.Len(t, views, 1)
	require.NotNil(t, views[0].Attachment)
	assert.Equal(t, extract, filepath.Dir(views[0].Attachment.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(views[0].Attachment.Path), "escape"))
	matches, err := filepath.Glob(filepath.Join(base, "escape*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestAttachmentFileName(t *testing.T) {
	for name, want := range map[string]string{
		"a1b2":         "a1b2",
		"../../escape": "escape",
		"/etc/passwd":  "passwd",
		`..\..\win`:    "win",
	} {
		got, err := attachmentFileName(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
	for _, name := range []string{"", ".", "..", "/"} {
		_, err := attachmentFileName(name)
		assert.Error(t, err, name)
	}
}

func TestReplayBadInput(t *testing.T) {
	cfg := testConfig(t)

	_, err := replay(context.Background(), cfg, "item-1", "test", strings.NewReader("{\"message\":\"ok\"}\nnope\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestPurgeCommand(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "spool_1000_1.rps")
	require.NoError(t, os.WriteFile(old, spool.MagicHeader, 0644))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"purge", "--retention", "1h", dir})
	require.NoError(t, root.Execute())

	assert.Equal(t, "removed 1 segment(s)\n", out.String())
	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}

func TestReplayCommandRequiresOwner(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"replay", "events.jsonl"})

	assert.Error(t, root.Execute())
}
