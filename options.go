package gocadsg

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/go-json-experiment/json"
	"github.com/go-logr/logr"

	"github.com/RichardScottOZ/GOCAD-SG-Grid-Reader/sg"
)

// Options configures a Reader. The zero value is not useful; start from DefaultOptions.
type Options struct {
	// Workers bounds concurrent property decodes.
	Workers int
	// ASCIISkipLines is the number of header lines in ASCII property files.
	ASCIISkipLines int
	// NoData is used for properties that do not declare PROP_NO_DATA_VALUE.
	NoData float64
	// MaskNoData replaces sentinel samples with NaN after decoding.
	MaskNoData   bool
	MaxNonFinite float64
	MinPlausible float64

	Logger logr.Logger
}

// DefaultOptions returns the settings used when no config file is given.
func DefaultOptions() Options {
	src := sg.DefaultSourceConfig()
	return Options{
		Workers:        runtime.GOMAXPROCS(0),
		ASCIISkipLines: src.SkipLines,
		NoData:         src.NoData,
		MaxNonFinite:   src.MaxNonFinite,
		MinPlausible:   src.MinPlausible,
		Logger:         logr.Discard(),
	}
}

// fileOptions is the on-disk form; nil fields keep their defaults.
type fileOptions struct {
	Workers        *int     `json:"workers,omitempty"`
	ASCIISkipLines *int     `json:"ascii_skip_lines,omitempty"`
	NoData         *float64 `json:"no_data,omitempty"`
	MaskNoData     *bool    `json:"mask_no_data,omitempty"`
	MaxNonFinite   *float64 `json:"max_non_finite,omitempty"`
	MinPlausible   *float64 `json:"min_plausible,omitempty"`
}

const maxOptionsFileSize = 1 << 20

// LoadOptions reads a JSON options file on top of DefaultOptions.
// Fields omitted from the file keep their defaults; unknown fields are rejected.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return opts, fmt.Errorf("options file must have .json extension, got %q", ext)
	}
	info, err := os.Stat(cleanPath)
	if err != nil {
		return opts, fmt.Errorf("failed to stat options file: %w", err)
	}
	if info.Size() > maxOptionsFileSize {
		return opts, fmt.Errorf("options file too large: %d bytes (max %d)", info.Size(), maxOptionsFileSize)
	}
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return opts, fmt.Errorf("failed to read options file: %w", err)
	}

	var fo fileOptions
	if err := json.Unmarshal(data, &fo, json.RejectUnknownMembers(true)); err != nil {
		return opts, fmt.Errorf("failed to decode options file: %w", err)
	}
	fo.apply(&opts)
	return opts, opts.Validate()
}

func (fo fileOptions) apply(o *Options) {
	if fo.Workers != nil {
		o.Workers = *fo.Workers
	}
	if fo.ASCIISkipLines != nil {
		o.ASCIISkipLines = *fo.ASCIISkipLines
	}
	if fo.NoData != nil {
		o.NoData = *fo.NoData
	}
	if fo.MaskNoData != nil {
		o.MaskNoData = *fo.MaskNoData
	}
	if fo.MaxNonFinite != nil {
		o.MaxNonFinite = *fo.MaxNonFinite
	}
	if fo.MinPlausible != nil {
		o.MinPlausible = *fo.MinPlausible
	}
}

// Validate rejects settings the decoders cannot work with.
func (o Options) Validate() error {
	if o.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", o.Workers)
	}
	if o.ASCIISkipLines < 0 {
		return fmt.Errorf("ascii_skip_lines must not be negative, got %d", o.ASCIISkipLines)
	}
	if o.MaxNonFinite < 0 || o.MaxNonFinite > 1 {
		return fmt.Errorf("max_non_finite must be within [0, 1], got %g", o.MaxNonFinite)
	}
	if o.MinPlausible < 0 || o.MinPlausible > 1 {
		return fmt.Errorf("min_plausible must be within [0, 1], got %g", o.MinPlausible)
	}
	return nil
}

func (o Options) sourceConfig() sg.SourceConfig {
	return sg.SourceConfig{
		SkipLines:    o.ASCIISkipLines,
		NoData:       o.NoData,
		MaskNoData:   o.MaskNoData,
		MaxNonFinite: o.MaxNonFinite,
		MinPlausible: o.MinPlausible,
		Logger:       o.Logger,
	}
}
