// Command quality-compare compares an annotated dataset against a ground
// truth dataset and writes the quality report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/banshee-data/quality.report/internal/annotation"
	"github.com/banshee-data/quality.report/internal/config"
	"github.com/banshee-data/quality.report/internal/db"
	"github.com/banshee-data/quality.report/internal/monitoring"
	"github.com/banshee-data/quality.report/internal/quality/chart"
	"github.com/banshee-data/quality.report/internal/quality/compare"
	"github.com/banshee-data/quality.report/internal/version"
)

// Config holds the command line options.
type Config struct {
	ThisPath   string
	GTPath     string
	ConfigPath string
	OutputJSON string
	OutputHTML string
	OutputPNG  string
	DBPath     string
	Verbose    bool
	Version    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		var dataErr *compare.DataError
		if errors.As(err, &dataErr) {
			log.Fatalf("Comparison rejected the input data: %v", err)
		}
		log.Fatalf("Comparison failed: %v", err)
	}
}

func parseFlags(args []string) (Config, error) {
	cfg := Config{}
	fs := flag.NewFlagSet("quality-compare", flag.ContinueOnError)

	fs.StringVar(&cfg.ThisPath, "this", "", "Path to the dataset under test (.json)")
	fs.StringVar(&cfg.GTPath, "gt", "", "Path to the ground truth dataset (.json)")
	fs.StringVar(&cfg.ConfigPath, "config", "", "Path to a quality config (.json); defaults apply when empty")
	fs.StringVar(&cfg.OutputJSON, "out", "", "Write the report JSON to this file")
	fs.StringVar(&cfg.OutputHTML, "html", "", "Write an HTML accuracy chart to this file")
	fs.StringVar(&cfg.OutputPNG, "png", "", "Write a PNG accuracy plot to this file")
	fs.StringVar(&cfg.DBPath, "db", "", "Store the report in this sqlite database")
	fs.BoolVar(&cfg.Verbose, "v", false, "Enable per-frame logging")
	fs.BoolVar(&cfg.Version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.Version {
		return cfg, nil
	}
	if cfg.ThisPath == "" || cfg.GTPath == "" {
		return cfg, errors.New("both -this and -gt are required")
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	cfg, err := parseFlags(args)
	if err != nil {
		return err
	}
	if cfg.Version {
		fmt.Fprintln(stdout, version.String())
		return nil
	}
	monitoring.SetVerbose(cfg.Verbose)

	qc := config.EmptyQualityConfig()
	if cfg.ConfigPath != "" {
		if qc, err = config.LoadQualityConfig(cfg.ConfigPath); err != nil {
			return err
		}
	}

	this, err := annotation.LoadDataset(cfg.ThisPath)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}
	gt, err := annotation.LoadDataset(cfg.GTPath)
	if err != nil {
		return fmt.Errorf("load ground truth: %w", err)
	}

	start := time.Now()
	report, err := compare.Compare(ctx, this, gt, compare.OptionsFromConfig(qc))
	if err != nil {
		return err
	}
	monitoring.Logf("Compared %d frames in %s", report.Summary.FrameCount, time.Since(start).Round(time.Millisecond))

	printSummary(stdout, report)

	if cfg.OutputJSON != "" {
		if err := exportJSON(report, cfg.OutputJSON); err != nil {
			return fmt.Errorf("export json: %w", err)
		}
		monitoring.Logf("Report exported to: %s", cfg.OutputJSON)
	}
	if cfg.OutputHTML != "" {
		if err := exportHTML(report, cfg.OutputHTML); err != nil {
			return fmt.Errorf("export html: %w", err)
		}
		monitoring.Logf("Chart exported to: %s", cfg.OutputHTML)
	}
	if cfg.OutputPNG != "" {
		if err := chart.SavePNG(report, cfg.OutputPNG); err != nil {
			return fmt.Errorf("export png: %w", err)
		}
		monitoring.Logf("Plot exported to: %s", cfg.OutputPNG)
	}
	if cfg.DBPath != "" {
		if err := storeReport(report, cfg.DBPath); err != nil {
			return fmt.Errorf("store report: %w", err)
		}
		monitoring.Logf("Report %s stored in: %s", report.RunID, cfg.DBPath)
	}
	return nil
}

func printSummary(w io.Writer, r *compare.Report) {
	s := r.Summary
	fmt.Fprintln(w, "=== Annotation Quality Report ===")
	fmt.Fprintf(w, "Run: %s (%s)\n", r.RunID, version.Version)
	fmt.Fprintf(w, "Dataset: %s\n", r.ThisDataset)
	fmt.Fprintf(w, "Ground truth: %s\n", r.GTDataset)
	fmt.Fprintf(w, "Frames compared: %d (of %d / %d)\n", s.FrameCount, s.ThisFrameCount, s.GTFrameCount)

	fmt.Fprintln(w, "\n--- Accuracy ---")
	fmt.Fprintf(w, "Annotations: %.2f%% (%d/%d valid)\n", s.AnnotationAccuracy*100, s.ValidAnnotationsCount, s.ComparedAnnotationsCount)
	fmt.Fprintf(w, "Attributes: %.2f%% (%d/%d valid)\n", s.AttributeAccuracy*100, s.ValidAttributesCount, s.ComparedAttributesCount)
	fmt.Fprintf(w, "Overall: %.2f%%\n", s.OverallAccuracy*100)

	fmt.Fprintln(w, "\n--- Conflicts ---")
	for _, t := range compare.ConflictTypes {
		fmt.Fprintf(w, "%s: %d\n", t, s.ConflictsByType[t])
	}
	fmt.Fprintf(w, "Mean per frame: %.2f\n", s.MeanConflictCount)

	fmt.Fprintln(w, "\n--- Whole dataset estimate ---")
	fmt.Fprintf(w, "Invalid annotations: %d of %d\n", s.EstimatedInvalidAnnotationsCount, s.DatasetAnnotationsCount)
	fmt.Fprintf(w, "Invalid attributes: %d of %d\n", s.EstimatedInvalidAttributesCount, s.DatasetAttributesCount)
}

func createOutput(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

func exportJSON(r *compare.Report, path string) error {
	f, err := createOutput(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func exportHTML(r *compare.Report, path string) error {
	f, err := createOutput(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return chart.RenderHTML(r, f)
}

func storeReport(r *compare.Report, path string) error {
	database, err := db.NewDB(path)
	if err != nil {
		return err
	}
	defer database.Close()
	return db.NewReportStore(database.DB).Insert(r)
}
