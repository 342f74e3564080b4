package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/quality.report/internal/annotation"
)

// DefaultConfigPath is the path to the canonical quality defaults file.
const DefaultConfigPath = "config/quality.defaults.json"

// QualityConfig is the comparison configuration. Every field is optional;
// the Get* methods supply the defaults for omitted fields.
type QualityConfig struct {
	// Kinds compared on every frame
	IncludedKinds []string `json:"included_kinds,omitempty"`
	// Attribute names never compared
	IgnoredAttributes []string `json:"ignored_attributes,omitempty"`

	// Acceptance thresholds
	IoUThreshold   *float64           `json:"iou_threshold,omitempty"`
	OKSThreshold   *float64           `json:"oks_threshold,omitempty"`
	KindThresholds map[string]float64 `json:"kind_thresholds,omitempty"`

	// Metric constants
	OKSSigma      *float64 `json:"oks_sigma,omitempty"`
	LineThickness *float64 `json:"line_thickness,omitempty"`

	// Frame workers, 0 means GOMAXPROCS
	Workers *int `json:"workers,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyQualityConfig returns a QualityConfig with all fields unset.
func EmptyQualityConfig() *QualityConfig {
	return &QualityConfig{}
}

// DefaultQualityConfig returns a QualityConfig with every field set to its
// default value.
func DefaultQualityConfig() *QualityConfig {
	c := EmptyQualityConfig()
	for _, k := range annotation.DefaultKinds {
		c.IncludedKinds = append(c.IncludedKinds, k.String())
	}
	c.IgnoredAttributes = []string{"track_id", "keyframe", "z_order", "group"}
	c.IoUThreshold = ptrFloat64(0.5)
	c.OKSThreshold = ptrFloat64(0.5)
	c.OKSSigma = ptrFloat64(0.1)
	c.LineThickness = ptrFloat64(0.01)
	c.Workers = ptrInt(0)
	return c
}

// LoadQualityConfig loads a QualityConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file keep their defaults, so partial configs
// are safe.
func LoadQualityConfig(path string) (*QualityConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

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

	cfg := EmptyQualityConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *QualityConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/quality/compare/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadQualityConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *QualityConfig) Validate() error {
	for _, name := range c.IncludedKinds {
		if _, err := annotation.ParseKind(name); err != nil {
			return fmt.Errorf("included_kinds: %w", err)
		}
	}
	if err := checkThreshold("iou_threshold", c.IoUThreshold); err != nil {
		return err
	}
	if err := checkThreshold("oks_threshold", c.OKSThreshold); err != nil {
		return err
	}
	for name, v := range c.KindThresholds {
		if _, err := annotation.ParseKind(name); err != nil {
			return fmt.Errorf("kind_thresholds: %w", err)
		}
		if err := checkThreshold("kind_thresholds."+name, &v); err != nil {
			return err
		}
	}
	if c.OKSSigma != nil && *c.OKSSigma <= 0 {
		return fmt.Errorf("oks_sigma must be positive, got %f", *c.OKSSigma)
	}
	if c.LineThickness != nil && (*c.LineThickness <= 0 || *c.LineThickness > 1) {
		return fmt.Errorf("line_thickness must be in (0, 1], got %f", *c.LineThickness)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}
	return nil
}

func checkThreshold(name string, v *float64) error {
	if v == nil {
		return nil
	}
	if *v <= 0 || *v > 1 {
		return fmt.Errorf("%s must be in (0, 1], got %f", name, *v)
	}
	return nil
}

// GetIncludedKinds returns the parsed included_kinds in report order, or the
// default kinds. Unknown names are skipped; Validate reports them.
func (c *QualityConfig) GetIncludedKinds() []annotation.Kind {
	if len(c.IncludedKinds) == 0 {
		return append([]annotation.Kind(nil), annotation.DefaultKinds...)
	}
	chosen := make(map[annotation.Kind]bool)
	for _, name := range c.IncludedKinds {
		if k, err := annotation.ParseKind(name); err == nil {
			chosen[k] = true
		}
	}
	var kinds []annotation.Kind
	for _, k := range annotation.AllKinds {
		if chosen[k] {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// GetIgnoredAttributes returns ignored_attributes or the default list.
func (c *QualityConfig) GetIgnoredAttributes() []string {
	if c.IgnoredAttributes == nil {
		return []string{"track_id", "keyframe", "z_order", "group"}
	}
	out := make([]string, len(c.IgnoredAttributes))
	copy(out, c.IgnoredAttributes)
	return out
}

// GetIoUThreshold returns the iou_threshold value or the default.
func (c *QualityConfig) GetIoUThreshold() float64 {
	if c.IoUThreshold == nil {
		return 0.5
	}
	return *c.IoUThreshold
}

// GetOKSThreshold returns the oks_threshold value, falling back to the IoU
// threshold.
func (c *QualityConfig) GetOKSThreshold() float64 {
	if c.OKSThreshold == nil {
		return c.GetIoUThreshold()
	}
	return *c.OKSThreshold
}

// GetKindThresholds returns the per-kind overrides keyed by kind.
func (c *QualityConfig) GetKindThresholds() map[annotation.Kind]float64 {
	if len(c.KindThresholds) == 0 {
		return nil
	}
	out := make(map[annotation.Kind]float64, len(c.KindThresholds))
	for name, v := range c.KindThresholds {
		k, err := annotation.ParseKind(name)
		if err != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// GetOKSSigma returns the oks_sigma value or the default.
func (c *QualityConfig) GetOKSSigma() float64 {
	if c.OKSSigma == nil {
		return 0.1
	}
	return *c.OKSSigma
}

// GetLineThickness returns the line_thickness value or the default.
func (c *QualityConfig) GetLineThickness() float64 {
	if c.LineThickness == nil {
		return 0.01
	}
	return *c.LineThickness
}

// GetWorkers returns the workers value or the default.
func (c *QualityConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}
