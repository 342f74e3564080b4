package annotation

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// maxDatasetFileSize bounds the JSON dataset files accepted by LoadDataset.
const maxDatasetFileSize = 512 * 1024 * 1024

// datasetFile is the native JSON layout read by the CLI. It is not a
// third-party annotation format; converters produce it upstream.
type datasetFile struct {
	Name   string  `json:"name"`
	Labels []Label `json:"labels"`
	Frames []Frame `json:"frames"`
}

// LoadDataset reads a dataset from a .json file.
func LoadDataset(path string) (*Dataset, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("dataset file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat dataset file: %w", err)
	}
	if fileInfo.Size() > maxDatasetFileSize {
		return nil, fmt.Errorf("dataset file too large: %d bytes (max %d)", fileInfo.Size(), maxDatasetFileSize)
	}

	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer f.Close()

	ds, err := ReadDataset(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cleanPath, err)
	}
	if ds.Name == "" {
		ds.Name = filepath.Base(cleanPath)
	}
	return ds, nil
}

// ReadDataset decodes a dataset from r.
func ReadDataset(r io.Reader) (*Dataset, error) {
	var raw datasetFile
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}

	labels, err := NewTaxonomy(raw.Labels)
	if err != nil {
		return nil, fmt.Errorf("invalid label taxonomy: %w", err)
	}

	for fi := range raw.Frames {
		normalizeAttributes(raw.Frames[fi].Annotations)
	}
	return NewDataset(raw.Name, labels, raw.Frames), nil
}

// normalizeAttributes turns json.Number attribute values into int64 or
// float64 so comparisons are numeric rather than textual.
func normalizeAttributes(anns []Annotation) {
	for i := range anns {
		for k, v := range anns[i].Attributes {
			n, ok := v.(json.Number)
			if !ok {
				continue
			}
			if iv, err := n.Int64(); err == nil {
				anns[i].Attributes[k] = iv
			} else if fv, err := n.Float64(); err == nil {
				anns[i].Attributes[k] = fv
			} else {
				anns[i].Attributes[k] = n.String()
			}
		}
		normalizeAttributes(anns[i].Elements)
	}
}
