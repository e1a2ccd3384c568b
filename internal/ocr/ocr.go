// Package ocr recognizes words on rendered statement pages. The Tesseract
// backend is compiled in with the "ocr" build tag; without it Recognize
// reports ErrOCRNotEnabled and only documents with a text layer can be read.
package ocr

import (
	"errors"
	"strings"
)

// ErrOCRNotEnabled is returned when the binary was built without the ocr tag.
var ErrOCRNotEnabled = errors.New("OCR support not enabled; rebuild with -tags ocr")

// PageSegMode mirrors Tesseract's page segmentation modes.
type PageSegMode int

// Page segmentation modes used for statements. Sparse text works best for
// tables with ragged columns.
const (
	PSMAuto          PageSegMode = 3
	PSMSingleColumn  PageSegMode = 4
	PSMSingleBlock   PageSegMode = 6
	PSMSparseText    PageSegMode = 11
	PSMSparseTextOSD PageSegMode = 12
)

const (
	defaultPageSegMode   = PSMSparseText
	defaultLanguages     = "eng+rus"
	defaultPoolSize      = 2
	defaultMinConfidence = 0.0
)

// Config configures the recognizer.
type Config struct {
	// Languages are Tesseract language codes, joined with "+".
	Languages []string `json:"languages" yaml:"languages" mapstructure:"languages"`
	// PageSegMode is the Tesseract page segmentation mode.
	PageSegMode PageSegMode `json:"page_seg_mode" yaml:"page_seg_mode" mapstructure:"page_seg_mode"`
	// PoolSize is the number of Tesseract clients, and so the number of
	// pages that can be recognized at once.
	PoolSize int `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
	// Preprocess converts pages to high-contrast grayscale before recognition.
	Preprocess bool `json:"preprocess" yaml:"preprocess" mapstructure:"preprocess"`
	// MinConfidence drops words below this confidence, in [0,1].
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence" mapstructure:"min_confidence"`
}

// DefaultConfig returns the default recognizer configuration.
func DefaultConfig() Config {
	return Config{
		Languages:     strings.Split(defaultLanguages, "+"),
		PageSegMode:   defaultPageSegMode,
		PoolSize:      defaultPoolSize,
		Preprocess:    true,
		MinConfidence: defaultMinConfidence,
	}
}

// language returns the Tesseract language string.
func (c Config) language() string {
	langs := make([]string, 0, len(c.Languages))
	for _, l := range c.Languages {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		return defaultLanguages
	}
	return strings.Join(langs, "+")
}

func (c Config) withDefaults() Config {
	if c.PageSegMode == 0 {
		c.PageSegMode = defaultPageSegMode
	}
	if c.PoolSize < 1 {
		c.PoolSize = defaultPoolSize
	}
	return c
}
