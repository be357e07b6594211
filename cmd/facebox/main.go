package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/facebox/internal/config"
	"github.com/ironsheep/facebox/internal/dataset"
	"github.com/ironsheep/facebox/internal/eval"
	"github.com/ironsheep/facebox/internal/logging"
	"github.com/ironsheep/facebox/internal/model"
	"github.com/ironsheep/facebox/internal/model/onnx"
	"github.com/ironsheep/facebox/internal/server"
	"github.com/ironsheep/facebox/internal/stream"
	"github.com/ironsheep/facebox/internal/suggest"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := "help"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "facebox %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return 0
	case "--help", "-h", "help":
		usage(stdout)
		return 0
	case "split", "suggest", "benchmark", "watch", "serve":
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", cmd)
		usage(stderr)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd {
	case "split":
		err = runSplit(ctx, args, stdout, stderr)
	case "suggest":
		err = runSuggest(ctx, args, stdout, stderr)
	case "benchmark":
		err = runBenchmark(ctx, args, stdout, stderr)
	case "watch":
		err = runWatch(ctx, args, stderr)
	case "serve":
		err = runServe(ctx, args, stderr)
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "facebox %s: %v\n", cmd, err)
		return 1
	}
}

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "facebox - face presence and box dataset, model and evaluation tools")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: facebox <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  split        Collect labels, augment and write train/validation/test partitions")
	fmt.Fprintln(w, "  suggest      Draft face annotations for unlabeled images")
	fmt.Fprintln(w, "  benchmark    Score checkpoints on a validation directory by IoU")
	fmt.Fprintln(w, "  watch        Run the camera filter over a directory of frames")
	fmt.Fprintln(w, "  serve        Serve the box and dataset tools over MCP on stdin/stdout")
	fmt.Fprintln(w, "  version      Print version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Every command accepts -env <file> (default .env). Settings come from")
	fmt.Fprintln(w, "FACEBOX_* environment variables; command flags override them.")
}

// setup parses the shared flags, loads the configuration and applies
// overrides registered by the caller.
type setup struct {
	fs      *flag.FlagSet
	envFile string
	level   string
	logFile string
	seed    int64
}

func newSetup(name string, stderr io.Writer) *setup {
	s := &setup{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	s.fs.SetOutput(stderr)
	s.fs.StringVar(&s.envFile, "env", ".env", "environment file to load")
	s.fs.StringVar(&s.level, "log-level", "", "log level (debug, info, warn, error)")
	s.fs.StringVar(&s.logFile, "log-file", "", "also write logs to this rotated file")
	s.fs.Int64Var(&s.seed, "seed", 0, "random seed (0 keeps the configured seed)")
	return s
}

func (s *setup) load(args []string, apply func(*config.Config)) (config.Config, *logrus.Logger, error) {
	if err := s.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return config.Config{}, nil, err
		}
		return config.Config{}, nil, errUsage
	}
	cfg, err := config.Load(s.envFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	if s.level != "" {
		cfg.LogLevel = s.level
	}
	if s.logFile != "" {
		cfg.LogFile = s.logFile
	}
	if s.seed != 0 {
		cfg.Seed = s.seed
	}
	if apply != nil {
		apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	log := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		File:   cfg.LogFile,
		Output: s.fs.Output(),
	})
	return cfg, log, nil
}

func runSplit(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s := newSetup("split", stderr)
	imagesDir := s.fs.String("images", "", "source images directory")
	outputDir := s.fs.String("out", "", "output root for the partitions")
	patterns := s.fs.String("patterns", "", "comma separated glob patterns of labeled images")
	augmentations := s.fs.Int("n", 0, "augmented samples per source image")

	cfg, log, err := s.load(args, func(c *config.Config) {
		if *imagesDir != "" {
			c.ImagesDir = *imagesDir
		}
		if *outputDir != "" {
			c.OutputDir = *outputDir
		}
		if *patterns != "" {
			c.Patterns = config.SplitList(*patterns)
		}
		if *augmentations > 0 {
			c.Augmentations = *augmentations
		}
	})
	if err != nil {
		return err
	}

	log.WithFields(logging.Fields{
		"version":  Version,
		"images":   cfg.ImagesDir,
		"output":   cfg.OutputDir,
		"patterns": cfg.Patterns,
	}).Info("starting split")

	report, err := dataset.NewSplitter(dataset.OptionsFromConfig(cfg), log).Run(ctx)
	if report != nil {
		if encErr := writeJSON(stdout, report); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}

func runSuggest(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s := newSetup("suggest", stderr)
	imagesDir := s.fs.String("images", "", "images directory to scan")
	cascade := s.fs.String("cascade", "", "pigo cascade file")
	minScore := s.fs.Float64("min-score", suggest.DefaultMinScore, "lowest detection score to draft")
	overwrite := s.fs.Bool("overwrite", false, "replace existing annotations")

	cfg, log, err := s.load(args, func(c *config.Config) {
		if *imagesDir != "" {
			c.ImagesDir = *imagesDir
		}
		if *cascade != "" {
			c.CascadePath = *cascade
		}
	})
	if err != nil {
		return err
	}
	if cfg.CascadePath == "" {
		return suggest.ErrNoCascade
	}

	detector, err := suggest.LoadCascade(cfg.CascadePath)
	if err != nil {
		return err
	}
	sg := suggest.New(cfg.ImagesDir, detector, log)
	sg.ImageExt = cfg.ImageExt
	sg.LabelExt = cfg.LabelExt
	sg.MinScore = *minScore
	sg.Overwrite = *overwrite

	res, err := sg.Run(ctx)
	if res != nil {
		if encErr := writeJSON(stdout, res); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}

func runBenchmark(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	s := newSetup("benchmark", stderr)
	validateDir := s.fs.String("validate-dir", "", "directory holding images/ and labels/ of the validation partition")
	checkpoints := s.fs.String("checkpoints", "", "comma separated checkpoint files")
	samples := s.fs.Int("samples", 0, "images drawn per checkpoint")
	stripDir := s.fs.String("strip-dir", "", "write the side-by-side strip of each checkpoint here")

	cfg, log, err := s.load(args, func(c *config.Config) {
		if *samples > 0 {
			c.BenchmarkSamples = *samples
		}
	})
	if err != nil {
		return err
	}
	paths := config.SplitList(*checkpoints)
	if *validateDir == "" || len(paths) == 0 {
		fmt.Fprintln(stderr, "benchmark needs -validate-dir and -checkpoints")
		return errUsage
	}

	backbone, closeBackbone, err := openBackbone(cfg)
	if err != nil {
		return err
	}
	defer closeBackbone()

	bench := eval.NewBenchmark(*validateDir, func(ckpt string) (stream.Predictor, error) {
		m, err := model.Load(ckpt, backbone)
		if err != nil {
			return nil, err
		}
		return m, nil
	}, log)
	bench.ImageExt = cfg.ImageExt
	bench.LabelExt = cfg.LabelExt
	bench.Samples = cfg.BenchmarkSamples
	bench.Threshold = cfg.Threshold
	bench.Seed = cfg.Seed
	if *stripDir != "" {
		if err := os.MkdirAll(*stripDir, 0o755); err != nil {
			return err
		}
		bench.Sink = stream.NewDirSink(*stripDir)
	}

	reports, err := bench.Run(ctx, paths)
	if len(reports) > 0 {
		if encErr := writeJSON(stdout, reports); encErr != nil && err == nil {
			err = encErr
		}
	}
	return err
}

func runWatch(ctx context.Context, args []string, stderr io.Writer) error {
	s := newSetup("watch", stderr)
	frames := s.fs.String("frames", "", "directory of input frames")
	out := s.fs.String("out", "", "directory for annotated frames")
	checkpoint := s.fs.String("checkpoint", "", "checkpoint file")

	cfg, log, err := s.load(args, nil)
	if err != nil {
		return err
	}
	if *frames == "" || *out == "" || *checkpoint == "" {
		fmt.Fprintln(stderr, "watch needs -frames, -out and -checkpoint")
		return errUsage
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	backbone, closeBackbone, err := openBackbone(cfg)
	if err != nil {
		return err
	}
	defer closeBackbone()

	m, err := model.Load(*checkpoint, backbone)
	if err != nil {
		return err
	}
	src, err := stream.NewDirSource(*frames, cfg.ImageExt, log)
	if err != nil {
		return err
	}

	filter := stream.NewFilter(m)
	filter.Threshold = cfg.Threshold
	sink := stream.NewDirSink(*out)

	n, err := stream.Loop(ctx, src, filter, sink, log)
	log.WithFields(logging.Fields{
		"frames": n,
		"output": filepath.Clean(*out),
	}).Info("watch finished")
	return err
}

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	s := newSetup("serve", stderr)
	cfg, log, err := s.load(args, nil)
	if err != nil {
		return err
	}
	log.WithFields(logging.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Debug("facebox MCP server starting")
	return server.New(cfg, log).Run(ctx)
}

// openBackbone opens the ONNX feature extractor when one is configured. A
// nil backbone makes model.Load build the features from the checkpoint.
func openBackbone(cfg config.Config) (model.Backbone, func(), error) {
	if cfg.BackbonePath == "" {
		return nil, func() {}, nil
	}
	b, err := onnx.Open(cfg.ONNXLibrary, cfg.BackbonePath)
	if err != nil {
		return nil, nil, err
	}
	return b, func() { _ = b.Close() }, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
