// Package label turns polygon annotations into normalized label records.
//
// # Annotation Files
//
// Annotations are labelme-style JSON documents:
//
//	{"shapes": [{"label": "face", "points": [[x0, y0], [x1, y1]]}], "imageData": "..."}
//
// Points are pixel coordinates of two opposite corners in any order. The
// embedded imageData blob is never decoded.
//
// # Directory Convention
//
// Image and annotation trees are parallel: the path segment "images" is
// replaced with "labels" and the image extension with the label extension,
// so images/a.jpg is annotated by labels/a.json.
//
// # Records
//
// Collector produces one Record per image, in lexicographic path order. An
// image with a valid annotation becomes a positive record (class 1) whose box
// is normalized to [0,1]. An image without an annotation, or whose annotation
// or pixels cannot be read, becomes a negative record (class 0) carrying the
// fixed degenerate box from geom.Degenerate. Collection never aborts on a
// single bad image.
package label
