package dataset

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ironsheep/facebox/internal/augment"
	"github.com/ironsheep/facebox/internal/config"
	"github.com/ironsheep/facebox/internal/imaging"
	"github.com/ironsheep/facebox/internal/label"
	"github.com/ironsheep/facebox/internal/logging"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SummaryFile is the name of the run report written under the output root.
const SummaryFile = "summary.json"

// Options configures a split run.
type Options struct {
	ImagesDir       string
	OutputDir       string
	Patterns        []string
	NegativePattern string
	NegativeSample  int
	ImageExt        string
	LabelExt        string
	Augmentations   int
	CropSize        int
	Seed            int64
	ValidationFrac  float64
	TestFrac        float64
	Quality         int
}

// OptionsFromConfig copies the split settings out of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		ImagesDir:       cfg.ImagesDir,
		OutputDir:       cfg.OutputDir,
		Patterns:        cfg.Patterns,
		NegativePattern: cfg.NegativePattern,
		NegativeSample:  cfg.NegativeSample,
		ImageExt:        cfg.ImageExt,
		LabelExt:        cfg.LabelExt,
		Augmentations:   cfg.Augmentations,
		CropSize:        cfg.CropSize,
		Seed:            cfg.Seed,
		ValidationFrac:  cfg.ValidationFrac,
		TestFrac:        cfg.TestFrac,
		Quality:         cfg.JPEGQuality,
	}
}

// Report is the outcome of a split run. It is also written to
// <OutputDir>/summary.json.
type Report struct {
	RunID         string    `json:"run_id"`
	Seed          int64     `json:"seed"`
	Augmentations int       `json:"augmentations"`
	Sources       int       `json:"sources"`
	Skipped       int       `json:"skipped"`
	Summary       Summary   `json:"summary"`
	StartedAt     time.Time `json:"started_at"`
	Duration      string    `json:"duration"`
}

// Splitter runs collection, augmentation, partitioning and materialization.
type Splitter struct {
	opts  Options
	cache *imaging.ImageCache
	log   logrus.FieldLogger
}

// NewSplitter returns a splitter for opts.
func NewSplitter(opts Options, log logrus.FieldLogger) *Splitter {
	if opts.ImageExt == "" {
		opts.ImageExt = ".jpg"
	}
	if opts.LabelExt == "" {
		opts.LabelExt = ".json"
	}
	if opts.CropSize <= 0 {
		opts.CropSize = augment.DefaultCropSize
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}
	return &Splitter{
		opts:  opts,
		cache: imaging.NewImageCache(),
		log:   logging.OrDiscard(log),
	}
}

// Run executes the split. Every random decision (negative sampling, record
// shuffle, augmentation parameters, partition draws) comes from one
// generator seeded with Options.Seed, so equal inputs give equal outputs.
// Per-sample failures are counted in Report.Skipped. Cancelling ctx stops
// the run between samples and returns the partial report with ctx's error.
func (s *Splitter) Run(ctx context.Context) (*Report, error) {
	if s.opts.Augmentations < 0 {
		return nil, fmt.Errorf("augmentation count must not be negative, got %d", s.opts.Augmentations)
	}

	started := time.Now()
	report := &Report{
		RunID:         uuid.NewString(),
		Seed:          s.opts.Seed,
		Augmentations: s.opts.Augmentations,
		StartedAt:     started,
	}
	log := s.log.WithField("run", report.RunID)

	rnd := rand.New(rand.NewSource(s.opts.Seed))

	collector := label.NewCollector(s.opts.ImagesDir, s.cache, rnd, log)
	collector.Patterns = s.opts.Patterns
	collector.NegativePattern = s.opts.NegativePattern
	collector.NegativeSample = s.opts.NegativeSample
	collector.ImageExt = s.opts.ImageExt
	collector.LabelExt = s.opts.LabelExt

	records, err := collector.Collect()
	if err != nil {
		return nil, fmt.Errorf("collect labels: %w", err)
	}
	report.Sources = len(records)
	log.WithField("records", len(records)).Info("labels collected")

	rnd.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })

	engine := augment.NewEngine(s.opts.CropSize, rnd)
	assigner := NewAssigner(rnd)
	if s.opts.ValidationFrac > 0 || s.opts.TestFrac > 0 {
		assigner.ValidationFrac = s.opts.ValidationFrac
		assigner.TestFrac = s.opts.TestFrac
	}
	mat := NewMaterializer(s.opts.OutputDir)
	mat.LabelExt = s.opts.LabelExt
	mat.Quality = s.opts.Quality

	finish := func() {
		report.Summary = mat.Summary()
		report.Duration = time.Since(started).Round(time.Millisecond).String()
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			finish()
			return report, err
		}
		report.Skipped += s.augmentRecord(log, rec, engine, assigner, mat)
	}

	finish()
	if err := writeReport(filepath.Join(s.opts.OutputDir, SummaryFile), report); err != nil {
		return report, err
	}

	log.WithFields(logging.Fields{
		"summary": report.Summary,
		"skipped": report.Skipped,
	}).Info("split finished")
	return report, nil
}

// augmentRecord writes every augmentation of rec and returns how many were
// skipped.
func (s *Splitter) augmentRecord(log logrus.FieldLogger, rec label.Record, engine *augment.Engine, assigner *Assigner, mat *Materializer) int {
	defer s.cache.Evict(rec.ImagePath)

	entry := log.WithField("image", rec.ImagePath)

	img, err := s.cache.Load(rec.ImagePath)
	if err != nil {
		entry.WithError(err).Warn("skipping unreadable image")
		return s.opts.Augmentations
	}

	skipped := 0
	for i := 0; i < s.opts.Augmentations; i++ {
		res, err := engine.Augment(img, rec.Box, rec.Class)
		if err != nil {
			entry.WithError(err).WithField("index", i).Warn("skipping augmentation")
			skipped++
			continue
		}

		p := assigner.Assign()
		w, err := mat.Write(rec.ImagePath, i, res, p)
		if err != nil {
			entry.WithError(err).WithField("index", i).Warn("skipping unwritable sample")
			skipped++
			continue
		}
		entry.WithFields(logging.Fields{
			"index":     i,
			"partition": p,
			"class":     res.Class,
		}).Debugf("wrote %s", w.ImagePath)
	}
	return skipped
}

func writeReport(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a summary.json written by Run.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &r, nil
}
