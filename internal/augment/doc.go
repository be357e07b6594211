// Package augment applies randomized geometric and photometric transforms to
// an image and its normalized bounding box together.
//
// # Pipeline
//
// The default pipeline built by NewEngine runs, in order:
//
//  1. SmallestMaxSize: resize so the shorter side equals the crop size
//  2. RandomCrop: keep a crop x crop window at a random offset
//  3. HorizontalFlip with probability 0.5
//  4. VerticalFlip with probability 0.5
//  5. BrightnessContrast, Gamma and RGBShift, each with probability 0.2
//
// Geometric steps rewrite the boxes of the sample in the same step that
// rewrites the pixels, so box and image never drift apart. Photometric steps
// touch pixels only.
//
// # Boxes Leaving the Frame
//
// After a crop each box is clipped to the new frame. A box left with zero
// area is dropped together with its class label, and the engine reports the
// sample as class 0 with the degenerate box.
//
// # Randomness
//
// Every draw comes from the Rand handed to the engine, so a seeded source
// reproduces a run exactly.
package augment
