//go:build ocr

package ocr

import (
	"context"
	"image"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"

	"github.com/MeKo-Tech/stmtgrid/internal/token"
)

// Tesseract recognizes words with libtesseract. A gosseract client is not
// safe for concurrent use, so Tesseract keeps a fixed pool of them.
type Tesseract struct {
	config  Config
	clients chan *gosseract.Client
}

// New creates a Tesseract recognizer with config.PoolSize clients.
func New(config Config) (*Tesseract, error) {
	config = config.withDefaults()
	t := &Tesseract{
		config:  config,
		clients: make(chan *gosseract.Client, config.PoolSize),
	}
	for i := 0; i < config.PoolSize; i++ {
		client := gosseract.NewClient()
		if err := client.SetLanguage(strings.Split(config.language(), "+")...); err != nil {
			_ = client.Close()
			_ = t.Close()
			return nil, errors.Wrap(err, "failed to set OCR language")
		}
		if err := client.SetPageSegMode(gosseract.PageSegMode(config.PageSegMode)); err != nil {
			_ = client.Close()
			_ = t.Close()
			return nil, errors.Wrap(err, "failed to set page segmentation mode")
		}
		t.clients <- client
	}
	return t, nil
}

// Enabled reports whether OCR is compiled in.
func (t *Tesseract) Enabled() bool { return true }

// Recognize returns the words on img as normalized fragments. If ctx ends
// first, Recognize returns and the client is released when Tesseract finishes.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) ([]token.RawFragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.config.Preprocess {
		img = Prepare(img)
	}
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}

	var client *gosseract.Client
	select {
	case client = <-t.clients:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	type result struct {
		words []Word
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() { t.clients <- client }()
		words, err := recognize(client, data)
		done <- result{words: words, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return Fragments(r.words, img.Bounds(), t.config.MinConfidence), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func recognize(client *gosseract.Client, data []byte) ([]Word, error) {
	if err := client.SetImageFromBytes(data); err != nil {
		return nil, errors.Wrap(err, "failed to set OCR image")
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, errors.Wrap(err, "failed to recognize text")
	}
	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{Text: b.Word, Rect: b.Box, Confidence: b.Confidence})
	}
	return words, nil
}

// Close releases all clients. Clients still busy are not waited for.
func (t *Tesseract) Close() error {
	var first error
	for {
		select {
		case client := <-t.clients:
			if err := client.Close(); err != nil && first == nil {
				first = err
			}
		default:
			return first
		}
	}
}
