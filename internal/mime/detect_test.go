package mime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect(t *testing.T) {
	d := NewDetector()

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	mt, err := d.Detect(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mt)

	mt, err = d.Detect([]byte(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, "application/json", mt)

	mt, err = d.Detect([]byte("just words"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", mt)
}

func TestDetect_Empty(t *testing.T) {
	_, err := NewDetector().Detect(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", Extension("image/png"))
	assert.Equal(t, "", Extension("application/x-not-a-type"))
}
