// Package dataset turns labeled source images into a partitioned training
// corpus on disk.
//
// A Splitter collects label records, shuffles them with a seeded generator,
// augments every record N times, assigns each augmented sample to a
// partition independently and hands it to a Materializer, which writes
//
//	<root>/<partition>/images/<name>--<i><ext>
//	<root>/<partition>/labels/<name>--<i>.json
//
// and counts samples per partition plus the aggregate "face" and "total"
// keys. Augmentations of one source image may land in different partitions.
//
// Failures of a single sample are logged and counted as skipped; they never
// abort the run.
package dataset
