package persistence

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/money-model/internal/experiment"
)

// SampleFile is the on-disk form of an exported experiment sample.
type SampleFile struct {
	Version int               `json:"version"`
	ID      string            `json:"id"`
	Params  experiment.Params `json:"params"`
	Sample  []uint64          `json:"sample"`
}

// NewSampleFile captures an experiment for export.
func NewSampleFile(exp *experiment.Experiment) SampleFile {
	return SampleFile{
		Version: 1,
		ID:      exp.ID.String(),
		Params:  exp.Params,
		Sample:  exp.Sample,
	}
}

// WriteSample writes f as zstd-compressed JSON.
func WriteSample(path string, f SampleFile) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := json.NewEncoder(enc).Encode(f); err != nil {
		enc.Close()
		return fmt.Errorf("encode sample: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return out.Close()
}

// ReadSample reads a file written by WriteSample.
func ReadSample(path string) (SampleFile, error) {
	var f SampleFile

	in, err := os.Open(path)
	if err != nil {
		return f, err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return f, err
	}
	defer dec.Close()

	if err := json.NewDecoder(dec).Decode(&f); err != nil {
		return f, fmt.Errorf("decode sample %s: %w", path, err)
	}
	if f.Version != 1 {
		return f, fmt.Errorf("sample %s: unsupported version %d", path, f.Version)
	}
	return f, nil
}
