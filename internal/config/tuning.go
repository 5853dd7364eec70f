package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for pipeline tuning
// parameters. The schema matches the /api/pipeline/params endpoint so the
// same JSON can be used for both startup configuration and runtime updates.
//
// All fields are pointers so a partial JSON document only overrides the
// fields it names; the Get* accessors fall back to defaults for nil fields.
type TuningConfig struct {
	// Localizer params
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
	IoUThreshold        *float64 `json:"iou_threshold,omitempty"`
	MaxRegions          *int     `json:"max_regions,omitempty"`
	MinAspectRatio      *float64 `json:"min_aspect_ratio,omitempty"`
	MaxAspectRatio      *float64 `json:"max_aspect_ratio,omitempty"`
	MinRegionArea       *int     `json:"min_region_area,omitempty"`
	DetectorEndpoint    *string  `json:"detector_endpoint,omitempty"`

	// Preprocess params
	EnhanceContrast *bool `json:"enhance_contrast,omitempty"`

	// Rectifier params
	PatchWidth  *int `json:"patch_width,omitempty"`
	PatchHeight *int `json:"patch_height,omitempty"`

	// OCR params
	OCRLanguages    []string `json:"ocr_languages,omitempty"`
	OCRResizeFactor *float64 `json:"ocr_resize_factor,omitempty"`
	OCRBinarize     *bool    `json:"ocr_binarize,omitempty"`

	// Plate-format params
	PlateAlphabet   *string  `json:"plate_alphabet,omitempty"`
	PlateSeparators *string  `json:"plate_separators,omitempty"`
	MinPlateLength  *int     `json:"min_plate_length,omitempty"`
	MaxPlateLength  *int     `json:"max_plate_length,omitempty"`
	LowConfidence   *float64 `json:"low_confidence,omitempty"`
	HighConfidence  *float64 `json:"high_confidence,omitempty"`

	// Persistence params
	PersistRejected *bool `json:"persist_rejected,omitempty"`
	RetentionDays   *int  `json:"retention_days,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	// Try paths from current dir up to repo root
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/vision/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ConfidenceThreshold != nil {
		if *c.ConfidenceThreshold < 0 || *c.ConfidenceThreshold > 1 {
			return fmt.Errorf("confidence_threshold must be between 0 and 1, got %f", *c.ConfidenceThreshold)
		}
	}
	if c.IoUThreshold != nil {
		if *c.IoUThreshold < 0 || *c.IoUThreshold > 1 {
			return fmt.Errorf("iou_threshold must be between 0 and 1, got %f", *c.IoUThreshold)
		}
	}
	if c.MaxRegions != nil && *c.MaxRegions < 1 {
		return fmt.Errorf("max_regions must be positive, got %d", *c.MaxRegions)
	}
	if c.MinAspectRatio != nil && c.MaxAspectRatio != nil {
		if *c.MinAspectRatio > *c.MaxAspectRatio {
			return fmt.Errorf("min_aspect_ratio %f exceeds max_aspect_ratio %f", *c.MinAspectRatio, *c.MaxAspectRatio)
		}
	}
	if c.PatchWidth != nil && *c.PatchWidth < 1 {
		return fmt.Errorf("patch_width must be positive, got %d", *c.PatchWidth)
	}
	if c.PatchHeight != nil && *c.PatchHeight < 1 {
		return fmt.Errorf("patch_height must be positive, got %d", *c.PatchHeight)
	}
	if c.OCRResizeFactor != nil && *c.OCRResizeFactor <= 0 {
		return fmt.Errorf("ocr_resize_factor must be positive, got %f", *c.OCRResizeFactor)
	}
	if c.MinPlateLength != nil && c.MaxPlateLength != nil {
		if *c.MinPlateLength > *c.MaxPlateLength {
			return fmt.Errorf("min_plate_length %d exceeds max_plate_length %d", *c.MinPlateLength, *c.MaxPlateLength)
		}
	}
	if c.LowConfidence != nil && c.HighConfidence != nil {
		if *c.LowConfidence > *c.HighConfidence {
			return fmt.Errorf("low_confidence %f exceeds high_confidence %f", *c.LowConfidence, *c.HighConfidence)
		}
	}
	if c.RetentionDays != nil && *c.RetentionDays < 0 {
		return fmt.Errorf("retention_days must be non-negative, got %d", *c.RetentionDays)
	}
	return nil
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.5 // default
	}
	return *c.ConfidenceThreshold
}

// GetIoUThreshold returns the iou_threshold value or the default.
func (c *TuningConfig) GetIoUThreshold() float64 {
	if c.IoUThreshold == nil {
		return 0.4
	}
	return *c.IoUThreshold
}

// GetMaxRegions returns the max_regions value or the default.
func (c *TuningConfig) GetMaxRegions() int {
	if c.MaxRegions == nil {
		return 10
	}
	return *c.MaxRegions
}

// GetMinAspectRatio returns the min_aspect_ratio value or the default.
func (c *TuningConfig) GetMinAspectRatio() float64 {
	if c.MinAspectRatio == nil {
		return 2.0
	}
	return *c.MinAspectRatio
}

// GetMaxAspectRatio returns the max_aspect_ratio value or the default.
func (c *TuningConfig) GetMaxAspectRatio() float64 {
	if c.MaxAspectRatio == nil {
		return 6.0
	}
	return *c.MaxAspectRatio
}

// GetMinRegionArea returns the min_region_area value or the default.
func (c *TuningConfig) GetMinRegionArea() int {
	if c.MinRegionArea == nil {
		return 1000
	}
	return *c.MinRegionArea
}

// GetDetectorEndpoint returns the detector_endpoint value or the default.
// An empty endpoint means the localizer runs fallback-only.
func (c *TuningConfig) GetDetectorEndpoint() string {
	if c.DetectorEndpoint == nil {
		return ""
	}
	return *c.DetectorEndpoint
}

// GetEnhanceContrast returns the enhance_contrast value or the default.
func (c *TuningConfig) GetEnhanceContrast() bool {
	if c.EnhanceContrast == nil {
		return true
	}
	return *c.EnhanceContrast
}

// GetPatchWidth returns the patch_width value or the default.
func (c *TuningConfig) GetPatchWidth() int {
	if c.PatchWidth == nil {
		return 520
	}
	return *c.PatchWidth
}

// GetPatchHeight returns the patch_height value or the default.
func (c *TuningConfig) GetPatchHeight() int {
	if c.PatchHeight == nil {
		return 110
	}
	return *c.PatchHeight
}

// GetOCRLanguages returns the ocr_languages value or the default.
func (c *TuningConfig) GetOCRLanguages() []string {
	if len(c.OCRLanguages) == 0 {
		return []string{"eng"}
	}
	return c.OCRLanguages
}

// GetOCRResizeFactor returns the ocr_resize_factor value or the default.
func (c *TuningConfig) GetOCRResizeFactor() float64 {
	if c.OCRResizeFactor == nil {
		return 2.0
	}
	return *c.OCRResizeFactor
}

// GetOCRBinarize returns the ocr_binarize value or the default.
func (c *TuningConfig) GetOCRBinarize() bool {
	if c.OCRBinarize == nil {
		return true
	}
	return *c.OCRBinarize
}

// GetPlateAlphabet returns the plate_alphabet value or the default.
func (c *TuningConfig) GetPlateAlphabet() string {
	if c.PlateAlphabet == nil {
		return "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	}
	return *c.PlateAlphabet
}

// GetPlateSeparators returns the plate_separators value or the default.
func (c *TuningConfig) GetPlateSeparators() string {
	if c.PlateSeparators == nil {
		return "- "
	}
	return *c.PlateSeparators
}

// GetMinPlateLength returns the min_plate_length value or the default.
func (c *TuningConfig) GetMinPlateLength() int {
	if c.MinPlateLength == nil {
		return 4
	}
	return *c.MinPlateLength
}

// GetMaxPlateLength returns the max_plate_length value or the default.
func (c *TuningConfig) GetMaxPlateLength() int {
	if c.MaxPlateLength == nil {
		return 10
	}
	return *c.MaxPlateLength
}

// GetLowConfidence returns the low_confidence value or the default.
func (c *TuningConfig) GetLowConfidence() float64 {
	if c.LowConfidence == nil {
		return 0.4
	}
	return *c.LowConfidence
}

// GetHighConfidence returns the high_confidence value or the default.
func (c *TuningConfig) GetHighConfidence() float64 {
	if c.HighConfidence == nil {
		return 0.8
	}
	return *c.HighConfidence
}

// GetPersistRejected returns the persist_rejected value or the default.
func (c *TuningConfig) GetPersistRejected() bool {
	if c.PersistRejected == nil {
		return true // rejected records are kept for audit
	}
	return *c.PersistRejected
}

// GetRetentionDays returns the retention_days value or the default.
func (c *TuningConfig) GetRetentionDays() int {
	if c.RetentionDays == nil {
		return 30
	}
	return *c.RetentionDays
}
