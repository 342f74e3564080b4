package compare

import (
	"github.com/banshee-data/quality.report/internal/annotation"
	"github.com/banshee-data/quality.report/internal/config"
	"github.com/banshee-data/quality.report/internal/quality/attributes"
	"github.com/banshee-data/quality.report/internal/quality/match"
	"github.com/banshee-data/quality.report/internal/quality/similarity"
)

// Options are the parameters of a comparison run. They are echoed into the
// report. Zero values take the defaults.
type Options struct {
	IncludedKinds     []annotation.Kind           `json:"included_kinds"`
	IgnoredAttributes []string                    `json:"ignored_attributes"`
	IoUThreshold      float64                     `json:"iou_threshold"`
	OKSThreshold      float64                     `json:"oks_threshold"`
	KindThresholds    map[annotation.Kind]float64 `json:"kind_thresholds,omitempty"`
	OKSSigma          float64                     `json:"oks_sigma"`
	LineThickness     float64                     `json:"line_thickness"`
	Workers           int                         `json:"-"`
}

// DefaultOptions returns the default comparison parameters.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

// OptionsFromConfig maps a loaded configuration onto comparison options.
func OptionsFromConfig(cfg *config.QualityConfig) Options {
	if cfg == nil {
		cfg = config.EmptyQualityConfig()
	}
	return Options{
		IncludedKinds:     cfg.GetIncludedKinds(),
		IgnoredAttributes: cfg.GetIgnoredAttributes(),
		IoUThreshold:      cfg.GetIoUThreshold(),
		OKSThreshold:      cfg.GetOKSThreshold(),
		KindThresholds:    cfg.GetKindThresholds(),
		OKSSigma:          cfg.GetOKSSigma(),
		LineThickness:     cfg.GetLineThickness(),
		Workers:           cfg.GetWorkers(),
	}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.IncludedKinds == nil {
		o.IncludedKinds = append([]annotation.Kind(nil), annotation.DefaultKinds...)
	}
	if o.IgnoredAttributes == nil {
		o.IgnoredAttributes = append([]string(nil), attributes.DefaultIgnored...)
	}
	if o.IoUThreshold <= 0 {
		o.IoUThreshold = match.DefaultThreshold
	}
	if o.OKSThreshold <= 0 {
		o.OKSThreshold = o.IoUThreshold
	}
	if o.OKSSigma <= 0 {
		o.OKSSigma = similarity.DefaultSigma
	}
	if o.LineThickness <= 0 {
		o.LineThickness = 0.01
	}
	return o
}

func (o Options) matchOptions(gt, this *annotation.Taxonomy) match.Options {
	return match.Options{
		KindThresholds: o.KindThresholds,
		IoUThreshold:   o.IoUThreshold,
		OKSThreshold:   o.OKSThreshold,
		Sigma:          o.OKSSigma,
		LineThickness:  o.LineThickness,
		TaxonomyA:      gt,
		TaxonomyB:      this,
	}
}
