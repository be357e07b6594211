// Package imaging provides the image plumbing shared by the dataset pipeline,
// the detection model and the frame filter.
//
// This package loads and caches source images, writes augmented images to
// disk, prepares model inputs (shortest-side resize followed by a centre
// crop) and draws bounding boxes and score labels onto frames. All operations
// work with standard Go image.Image types and use a coordinate system where
// (0,0) is at the top-left corner, X increases rightward, and Y increases
// downward.
//
// # Pixel Format
//
// Images are converted to *image.NRGBA on load, matching the RGB conversion
// applied to every source image before augmentation. Alpha is kept opaque.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Individual image operations
// are stateless and can be called concurrently on different images.
//
// # Memory Management
//
// The dataset splitter evicts each source image once all of its augmentations
// are written, so the cache holds at most one full-size image during a run.
package imaging
