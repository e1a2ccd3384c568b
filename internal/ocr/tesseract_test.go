//go:build ocr

package ocr

import (
	"context"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTesseract_BlankPage(t *testing.T) {
	rec, err := New(Config{Languages: []string{"eng"}, PoolSize: 1})
	require.NoError(t, err)
	defer func() { _ = rec.Close() }()
	assert.True(t, rec.Enabled())

	img := image.NewGray(image.Rect(0, 0, 200, 100))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	frags, err := rec.Recognize(context.Background(), img)
	require.NoError(t, err)
	assert.Empty(t, frags)
}

func TestTesseract_CanceledContext(t *testing.T) {
	rec, err := New(Config{Languages: []string{"eng"}, PoolSize: 1})
	require.NoError(t, err)
	defer func() { _ = rec.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	_, err = rec.Recognize(ctx, image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
