package label

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ironsheep/facebox/internal/imaging"
	"github.com/ironsheep/facebox/internal/logging"
	"github.com/sirupsen/logrus"
)

// Rand is the random source used for negative sampling. *rand.Rand
// satisfies it.
type Rand interface {
	Perm(n int) []int
}

// Collector pairs every image under Root with its optional annotation.
type Collector struct {
	// Root is the image directory.
	Root string
	// Patterns are glob patterns relative to Root selecting the images to
	// label. Empty means every file with ImageExt directly under Root.
	Patterns []string
	// NegativePattern selects unlabeled images to sample from; NegativeSample
	// of them are added, chosen with Rand.
	NegativePattern string
	NegativeSample  int
	ImageExt        string
	LabelExt        string

	cache *imaging.ImageCache
	rand  Rand
	log   logrus.FieldLogger
}

// NewCollector returns a collector for root using the default extensions.
// cache and rnd may be nil when negative sampling is not used.
func NewCollector(root string, cache *imaging.ImageCache, rnd Rand, log logrus.FieldLogger) *Collector {
	if cache == nil {
		cache = imaging.NewImageCache()
	}
	return &Collector{
		Root:     root,
		ImageExt: ".jpg",
		LabelExt: ".json",
		cache:    cache,
		rand:     rnd,
		log:      logging.OrDiscard(log),
	}
}

// Collect returns one record per selected image in lexicographic path order.
// It fails only when the image set itself cannot be listed; per-image
// problems degrade that image to a negative record.
func (c *Collector) Collect() ([]Record, error) {
	paths, err := c.imagePaths()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(paths))
	for _, p := range paths {
		records = append(records, c.Label(p))
	}
	return records, nil
}

// Label builds the record of a single image.
func (c *Collector) Label(imagePath string) Record {
	labelPath := LabelPath(imagePath, c.ImageExt, c.LabelExt)
	fields := logrus.Fields{"image": imagePath, "label": labelPath}

	ann, err := ReadAnnotation(labelPath)
	if errors.Is(err, fs.ErrNotExist) {
		return Negative(imagePath)
	}
	if err != nil {
		c.log.WithFields(fields).WithError(err).Warn("unreadable annotation, treating image as negative")
		return Negative(imagePath)
	}

	dims, err := c.cache.Dimensions(imagePath)
	if err != nil {
		c.log.WithFields(fields).WithError(err).Warn("unreadable image, treating image as negative")
		return Negative(imagePath)
	}

	box, err := NormalizeAnnotation(ann, dims.Width, dims.Height)
	if err != nil {
		c.log.WithFields(fields).WithError(err).Warn("malformed annotation, treating image as negative")
		return Negative(imagePath)
	}

	return Record{
		ImagePath: imagePath,
		LabelPath: labelPath,
		Class:     ClassPresent,
		Box:       box,
	}
}

func (c *Collector) imagePaths() ([]string, error) {
	seen := make(map[string]bool)
	var paths []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	if len(c.Patterns) == 0 {
		entries, err := os.ReadDir(c.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", c.Root, err)
		}
		for _, e := range entries {
			if e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), c.ImageExt) {
				add(filepath.Join(c.Root, e.Name()))
			}
		}
	}
	for _, pattern := range c.Patterns {
		matches, err := filepath.Glob(filepath.Join(c.Root, pattern))
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			add(m)
		}
	}

	if c.NegativeSample > 0 && c.NegativePattern != "" {
		negatives, err := c.sampleNegatives()
		if err != nil {
			return nil, err
		}
		for _, n := range negatives {
			add(n)
		}
	}

	sort.Strings(paths)
	return paths, nil
}

// sampleNegatives draws NegativeSample distinct paths matching
// NegativePattern. The candidates are sorted first so the draw depends only
// on the seed.
func (c *Collector) sampleNegatives() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(c.Root, c.NegativePattern))
	if err != nil {
		return nil, fmt.Errorf("bad negative pattern %q: %w", c.NegativePattern, err)
	}
	if c.NegativeSample > len(matches) {
		return nil, fmt.Errorf("negative sample of %d exceeds %d candidates", c.NegativeSample, len(matches))
	}
	if c.rand == nil {
		return nil, errors.New("negative sampling needs a random source")
	}
	sort.Strings(matches)

	perm := c.rand.Perm(len(matches))
	out := make([]string, c.NegativeSample)
	for i := range out {
		out[i] = matches[perm[i]]
	}
	return out, nil
}
