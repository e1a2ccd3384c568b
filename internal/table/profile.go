package table

import "fmt"

// Path identifies which token producer fed a page.
type Path string

const (
	PathDirect Path = "direct"
	PathOCR    Path = "ocr"
)

// GapMode selects how the minimum column gap is derived.
type GapMode string

const (
	// GapAdaptive derives the gap from the row's average token spacing.
	GapAdaptive GapMode = "adaptive"
	// GapFlat uses a fixed fraction of the page width.
	GapFlat GapMode = "flat"
)

// Profile carries the path-specific thresholds of the reconstruction.
type Profile struct {
	Path Path `json:"path" yaml:"path"`

	// RowToleranceRatio is k in max(avgTokenHeight*RowHeightFactor, pageHeight*k).
	RowToleranceRatio float64 `json:"row_tolerance_ratio" yaml:"row_tolerance_ratio" mapstructure:"row_tolerance_ratio"`
	RowHeightFactor   float64 `json:"row_height_factor" yaml:"row_height_factor" mapstructure:"row_height_factor"`

	GapMode GapMode `json:"gap_mode" yaml:"gap_mode" mapstructure:"gap_mode"`
	// AvgGapFactor scales the average gap in adaptive mode.
	AvgGapFactor float64 `json:"avg_gap_factor" yaml:"avg_gap_factor" mapstructure:"avg_gap_factor"`
	// MinGapRatio is the page-width floor in adaptive mode and the whole
	// threshold in flat mode.
	MinGapRatio float64 `json:"min_gap_ratio" yaml:"min_gap_ratio" mapstructure:"min_gap_ratio"`
	// FallbackGapRatio replaces the average gap for rows with fewer than two tokens.
	FallbackGapRatio float64 `json:"fallback_gap_ratio" yaml:"fallback_gap_ratio" mapstructure:"fallback_gap_ratio"`

	MinCells            int  `json:"min_cells" yaml:"min_cells" mapstructure:"min_cells"`
	DropSingleTokenRows bool `json:"drop_single_token_rows" yaml:"drop_single_token_rows" mapstructure:"drop_single_token_rows"`
}

// DirectProfile returns the thresholds for text-layer tokens.
func DirectProfile() Profile {
	return Profile{
		Path:              PathDirect,
		RowToleranceRatio: 0.015,
		RowHeightFactor:   0.5,
		GapMode:           GapAdaptive,
		AvgGapFactor:      0.3,
		MinGapRatio:       0.03,
		FallbackGapRatio:  0.1,
		MinCells:          2,
	}
}

// OCRProfile returns the thresholds for OCR fragments. OCR output is denser
// and noisier, so rows need one more surviving cell.
func OCRProfile() Profile {
	return Profile{
		Path:                PathOCR,
		RowToleranceRatio:   0.02,
		RowHeightFactor:     0.5,
		GapMode:             GapFlat,
		AvgGapFactor:        0.3,
		MinGapRatio:         0.08,
		FallbackGapRatio:    0.1,
		MinCells:            3,
		DropSingleTokenRows: true,
	}
}

// Validate checks that the profile's thresholds are usable.
func (p Profile) Validate() error {
	if p.Path != PathDirect && p.Path != PathOCR {
		return fmt.Errorf("unknown path %q", p.Path)
	}
	if p.GapMode != GapAdaptive && p.GapMode != GapFlat {
		return fmt.Errorf("unknown gap mode %q", p.GapMode)
	}
	if p.RowToleranceRatio < 0 || p.RowToleranceRatio > 1 {
		return fmt.Errorf("row tolerance ratio must be in [0,1], got %f", p.RowToleranceRatio)
	}
	if p.RowHeightFactor < 0 {
		return fmt.Errorf("row height factor must be non-negative, got %f", p.RowHeightFactor)
	}
	if p.MinGapRatio < 0 || p.MinGapRatio > 1 {
		return fmt.Errorf("min gap ratio must be in [0,1], got %f", p.MinGapRatio)
	}
	if p.FallbackGapRatio < 0 || p.FallbackGapRatio > 1 {
		return fmt.Errorf("fallback gap ratio must be in [0,1], got %f", p.FallbackGapRatio)
	}
	if p.AvgGapFactor < 0 {
		return fmt.Errorf("average gap factor must be non-negative, got %f", p.AvgGapFactor)
	}
	if p.MinCells < 1 {
		return fmt.Errorf("min cells must be at least 1, got %d", p.MinCells)
	}
	return nil
}
