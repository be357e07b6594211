// Package suggest drafts face annotations for images that have none yet.
//
// A cascade face detector scans every unlabeled image under a root
// directory and the highest scoring detection is written as a single
// rectangle annotation next to the image, in the same format the label
// collector reads. Drafts are meant to be reviewed in an annotation tool
// before a split; images without a confident detection are left alone so
// they surface as negatives or get labeled by hand.
package suggest
