package extract

import (
	"fmt"
	"time"

	"github.com/MeKo-Tech/stmtgrid/internal/table"
)

// Config controls document processing.
type Config struct {
	// RenderScale is the rasterization factor for OCR pages.
	RenderScale float64
	// Workers bounds concurrent render+OCR pages. Values below 2 process
	// pages sequentially.
	Workers int
	// OCRPageTimeout bounds one recognition call. Zero disables the limit.
	OCRPageTimeout time.Duration

	Direct table.Profile
	OCR    table.Profile
}

// DefaultConfig returns the default processing configuration.
func DefaultConfig() Config {
	return Config{
		RenderScale: 2.0,
		Workers:     1,
		Direct:      table.DirectProfile(),
		OCR:         table.OCRProfile(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.RenderScale <= 0 || c.RenderScale > 8 {
		return fmt.Errorf("render scale must be in (0,8], got %f", c.RenderScale)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if c.OCRPageTimeout < 0 {
		return fmt.Errorf("OCR page timeout must be non-negative, got %v", c.OCRPageTimeout)
	}
	if err := c.Direct.Validate(); err != nil {
		return fmt.Errorf("direct profile: %w", err)
	}
	if err := c.OCR.Validate(); err != nil {
		return fmt.Errorf("ocr profile: %w", err)
	}
	return nil
}
