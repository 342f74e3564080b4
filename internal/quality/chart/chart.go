// Package chart renders per-frame accuracy charts of a comparison report: an
// interactive HTML page (go-echarts) and a static PNG (gonum/plot).
package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/quality.report/internal/quality/compare"
)

var errNilReport = errors.New("chart: nil report")

type series struct {
	name  string
	value func(*compare.FrameResult) float64
	color color.RGBA
}

var accuracySeries = []series{
	{"annotation", func(fr *compare.FrameResult) float64 { return fr.AnnotationAccuracy }, color.RGBA{R: 0x31, G: 0x68, B: 0x8e, A: 0xff}},
	{"attribute", func(fr *compare.FrameResult) float64 { return fr.AttributeAccuracy }, color.RGBA{R: 0x35, G: 0xb7, B: 0x79, A: 0xff}},
	{"overall", func(fr *compare.FrameResult) float64 { return fr.OverallAccuracy }, color.RGBA{R: 0xe0, G: 0x7b, B: 0x39, A: 0xff}},
}

// RenderHTML writes a page with a per-frame accuracy bar chart and a bar
// chart of conflicts by type.
func RenderHTML(r *compare.Report, w io.Writer) error {
	if r == nil {
		return errNilReport
	}
	ids := r.FrameIDs()
	subtitle := fmt.Sprintf("%s vs %s, run %s, %d frames", r.ThisDataset, r.GTDataset, r.RunID, len(ids))

	accuracy := charts.NewBar()
	accuracy.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Annotation quality", Width: "100%", Height: "540px"}),
		charts.WithTitleOpts(opts.Title{Title: "Per-frame accuracy", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "accuracy"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", Start: 0, End: 100}),
	)
	accuracy.SetXAxis(ids)
	for _, s := range accuracySeries {
		data := make([]opts.BarData, 0, len(ids))
		for _, id := range ids {
			data = append(data, opts.BarData{Value: s.value(r.FrameResults[id])})
		}
		accuracy.AddSeries(s.name, data)
	}

	types := make([]string, 0, len(compare.ConflictTypes))
	counts := make([]opts.BarData, 0, len(compare.ConflictTypes))
	for _, t := range compare.ConflictTypes {
		types = append(types, string(t))
		counts = append(counts, opts.BarData{Value: r.Summary.ConflictsByType[t]})
	}
	conflicts := charts.NewBar()
	conflicts.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Conflicts", Subtitle: fmt.Sprintf("%d total", r.Summary.ErrorCount)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	conflicts.SetXAxis(types).
		AddSeries("conflicts", counts,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.PageTitle = "Annotation quality"
	page.AddCharts(accuracy, conflicts)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	return nil
}

// Plot builds a line plot of the per-frame accuracies against the frame's
// position in sorted frame id order.
func Plot(r *compare.Report) (*plot.Plot, error) {
	if r == nil {
		return nil, errNilReport
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s - per-frame accuracy", r.ThisDataset, r.GTDataset)
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Accuracy"
	p.Y.Min = 0
	p.Y.Max = 1

	ids := r.FrameIDs()
	if len(ids) == 0 {
		return p, nil
	}
	for _, s := range accuracySeries {
		pts := make(plotter.XYs, 0, len(ids))
		for i, id := range ids {
			pts = append(pts, plotter.XY{X: float64(i), Y: s.value(r.FrameResults[id])})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", s.name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// SavePNG writes the accuracy plot to path. The format follows the file
// extension.
func SavePNG(r *compare.Report, path string) error {
	p, err := Plot(r)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}

// WritePNG writes the accuracy plot as PNG to w.
func WritePNG(r *compare.Report, w io.Writer) error {
	p, err := Plot(r)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(14*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
