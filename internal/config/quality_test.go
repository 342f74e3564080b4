package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/quality.report/internal/annotation"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestEmptyQualityConfigDefaults(t *testing.T) {
	t.Parallel()
	cfg := EmptyQualityConfig()

	assert.Equal(t, annotation.DefaultKinds, cfg.GetIncludedKinds())
	assert.Equal(t, []string{"track_id", "keyframe", "z_order", "group"}, cfg.GetIgnoredAttributes())
	assert.Equal(t, 0.5, cfg.GetIoUThreshold())
	assert.Equal(t, 0.5, cfg.GetOKSThreshold())
	assert.Nil(t, cfg.GetKindThresholds())
	assert.Equal(t, 0.1, cfg.GetOKSSigma())
	assert.Equal(t, 0.01, cfg.GetLineThickness())
	assert.Equal(t, 0, cfg.GetWorkers())
}

func TestDefaultQualityConfigMatchesGetters(t *testing.T) {
	t.Parallel()
	full := DefaultQualityConfig()
	empty := EmptyQualityConfig()

	require.NoError(t, full.Validate())
	assert.Equal(t, empty.GetIncludedKinds(), full.GetIncludedKinds())
	assert.Equal(t, empty.GetIgnoredAttributes(), full.GetIgnoredAttributes())
	assert.Equal(t, empty.GetIoUThreshold(), full.GetIoUThreshold())
	assert.Equal(t, empty.GetOKSThreshold(), full.GetOKSThreshold())
	assert.Equal(t, empty.GetOKSSigma(), full.GetOKSSigma())
	assert.Equal(t, empty.GetLineThickness(), full.GetLineThickness())
	assert.Equal(t, empty.GetWorkers(), full.GetWorkers())
}

func TestOKSThresholdFollowsIoU(t *testing.T) {
	t.Parallel()
	cfg := EmptyQualityConfig()
	cfg.IoUThreshold = ptrFloat64(0.7)
	assert.Equal(t, 0.7, cfg.GetOKSThreshold())

	cfg.OKSThreshold = ptrFloat64(0.3)
	assert.Equal(t, 0.3, cfg.GetOKSThreshold())
}

func TestLoadQualityConfig(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, "quality.json", `{
  "included_kinds": ["skeleton", "box", "tag"],
  "ignored_attributes": [],
  "iou_threshold": 0.6,
  "kind_thresholds": {"polyline": 0.3},
  "oks_sigma": 0.05,
  "workers": 4
}`)

	cfg, err := LoadQualityConfig(path)
	require.NoError(t, err)

	// Report order, not file order.
	assert.Equal(t, []annotation.Kind{annotation.KindBox, annotation.KindSkeleton, annotation.KindTag}, cfg.GetIncludedKinds())
	assert.NotNil(t, cfg.GetIgnoredAttributes(), "an explicit empty list disables the defaults")
	assert.Empty(t, cfg.GetIgnoredAttributes())
	assert.Equal(t, 0.6, cfg.GetIoUThreshold())
	assert.Equal(t, 0.6, cfg.GetOKSThreshold())
	assert.Equal(t, map[annotation.Kind]float64{annotation.KindPolyline: 0.3}, cfg.GetKindThresholds())
	assert.Equal(t, 0.05, cfg.GetOKSSigma())
	assert.Equal(t, 0.01, cfg.GetLineThickness())
	assert.Equal(t, 4, cfg.GetWorkers())
}

func TestLoadQualityConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "quality.yaml", `{}`, ".json extension"},
		{"bad json", "quality.json", `{"iou_threshold":`, "failed to parse"},
		{"threshold range", "quality.json", `{"iou_threshold": 1.5}`, "iou_threshold must be in (0, 1]"},
		{"oks range", "quality.json", `{"oks_threshold": -0.1}`, "oks_threshold must be in (0, 1]"},
		{"unknown kind", "quality.json", `{"included_kinds": ["cuboid"]}`, "included_kinds"},
		{"unknown threshold kind", "quality.json", `{"kind_thresholds": {"cuboid": 0.5}}`, "kind_thresholds"},
		{"zero threshold", "quality.json", `{"iou_threshold": 0}`, "iou_threshold must be in (0, 1]"},
		{"kind threshold range", "quality.json", `{"kind_thresholds": {"box": 2}}`, "kind_thresholds.box"},
		{"sigma", "quality.json", `{"oks_sigma": 0}`, "oks_sigma must be positive"},
		{"line thickness", "quality.json", `{"line_thickness": 0}`, "line_thickness"},
		{"workers", "quality.json", `{"workers": -1}`, "workers must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadQualityConfig(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadQualityConfigMissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadQualityConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadQualityConfigTooLarge(t *testing.T) {
	t.Parallel()
	body := `{"ignored_attributes": ["` + strings.Repeat("x", 1024*1024) + `"]}`
	path := writeConfig(t, "big.json", body)

	_, err := LoadQualityConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestMustLoadDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := MustLoadDefaultConfig()
	require.NotNil(t, cfg)

	// The defaults file and the built-in defaults agree.
	want := DefaultQualityConfig()
	assert.Equal(t, want.GetIncludedKinds(), cfg.GetIncludedKinds())
	assert.Equal(t, want.GetIgnoredAttributes(), cfg.GetIgnoredAttributes())
	assert.Equal(t, want.GetIoUThreshold(), cfg.GetIoUThreshold())
	assert.Equal(t, want.GetOKSThreshold(), cfg.GetOKSThreshold())
	assert.Equal(t, want.GetOKSSigma(), cfg.GetOKSSigma())
	assert.Equal(t, want.GetLineThickness(), cfg.GetLineThickness())
	assert.Equal(t, want.GetWorkers(), cfg.GetWorkers())
}
