// Package config loads facebox settings from an optional .env file and
// FACEBOX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the split, benchmark and watch commands.
type Config struct {
	ImagesDir        string   `validate:"required"`
	OutputDir        string   `validate:"required"`
	Patterns         []string `validate:"dive,required"`
	NegativePattern  string
	NegativeSample   int     `validate:"gte=0"`
	Seed             int64
	Augmentations    int     `validate:"gte=1"`
	CropSize         int     `validate:"gte=1"`
	ImageExt         string  `validate:"required,startswith=."`
	LabelExt         string  `validate:"required,startswith=."`
	ValidationFrac   float64 `validate:"gte=0,lte=1"`
	TestFrac         float64 `validate:"gte=0,lte=1"`
	JPEGQuality      int     `validate:"gte=1,lte=100"`
	Threshold        float64 `validate:"gte=0,lte=1"`
	BenchmarkSamples int     `validate:"gte=1"`
	ONNXLibrary      string
	BackbonePath     string
	CascadePath      string
	LogLevel         string `validate:"omitempty,oneof=debug info warn warning error"`
	LogFile          string
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		ImagesDir:        "images",
		OutputDir:        "augmented-data",
		Seed:             420,
		Augmentations:    1,
		CropSize:         1000,
		ImageExt:         ".jpg",
		LabelExt:         ".json",
		ValidationFrac:   0.15,
		TestFrac:         0.15,
		JPEGQuality:      95,
		Threshold:        0.85,
		BenchmarkSamples: 10,
		LogLevel:         "info",
	}
}

// Load reads envFile (if it exists) into the process environment and
// overlays FACEBOX_* variables on the defaults. A missing env file is not an
// error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv("FACEBOX_" + key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv("FACEBOX_" + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("FACEBOX_%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv("FACEBOX_" + key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("FACEBOX_%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	str("IMAGES_DIR", &cfg.ImagesDir)
	str("OUTPUT_DIR", &cfg.OutputDir)
	str("NEGATIVE_PATTERN", &cfg.NegativePattern)
	integer("NEGATIVE_SAMPLE", &cfg.NegativeSample)
	integer("AUGMENTATIONS", &cfg.Augmentations)
	integer("CROP_SIZE", &cfg.CropSize)
	str("IMAGE_EXT", &cfg.ImageExt)
	str("LABEL_EXT", &cfg.LabelExt)
	float("VALIDATION_FRACTION", &cfg.ValidationFrac)
	float("TEST_FRACTION", &cfg.TestFrac)
	integer("JPEG_QUALITY", &cfg.JPEGQuality)
	float("THRESHOLD", &cfg.Threshold)
	integer("BENCHMARK_SAMPLES", &cfg.BenchmarkSamples)
	str("ONNX_LIBRARY", &cfg.ONNXLibrary)
	str("BACKBONE", &cfg.BackbonePath)
	str("CASCADE", &cfg.CascadePath)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("LOG_FILE", &cfg.LogFile)

	if v := os.Getenv("FACEBOX_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("FACEBOX_SEED: %w", err))
		} else {
			cfg.Seed = seed
		}
	}
	if v := os.Getenv("FACEBOX_PATTERNS"); v != "" {
		cfg.Patterns = SplitList(v)
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field ranges and the combined split fractions.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.ValidationFrac+c.TestFrac > 1 {
		return fmt.Errorf("invalid configuration: validation+test fractions exceed 1 (%.2f)",
			c.ValidationFrac+c.TestFrac)
	}
	return nil
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
