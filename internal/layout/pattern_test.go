package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/coffersTech/rplog/internal/model"
)

var sample = model.Event{
	Logger:     "app.checkout",
	TimeMillis: 1000,
	Level:      model.LevelWarn,
	Message:    &model.Message{Formatted: "stock low"},
	Attrs:      []model.Attr{{Key: "sku", Value: "A1"}, {Key: "left", Value: "2"}},
}

func TestDefaultPattern(t *testing.T) {
	got := string(Default().Format(sample))

	assert.Equal(t, "1970-01-01T00:00:01.000Z WARN  app.checkout - stock low\n", got)
}

func TestPatternVerbs(t *testing.T) {
	cases := map[string]string{
		"%m":                "stock low",
		"%msg":              "stock low",
		"[%5p]":             "[ WARN]",
		"%-8level|":         "WARN    |",
		"%logger: %message": "app.checkout: stock low",
		"%X":                "sku=A1 left=2",
		"%d{15:04:05}":      "00:00:01",
		"100%% %m":          "100% stock low",
		"%q %m":             "%q stock low",
		"%-5z":              "%-5z",
		"trailing %":        "trailing %",
	}
	for pattern, want := range cases {
		assert.Equal(t, want, string(NewPattern(pattern).Format(sample)), pattern)
	}
}

func TestNilMessageRendersEmpty(t *testing.T) {
	e := sample
	e.Message = nil

	assert.Equal(t, "WARN:", string(NewPattern("%p:%m").Format(e)))
}

func TestPattern(t *testing.T) {
	assert.Equal(t, DefaultPattern, Default().Pattern())
}
