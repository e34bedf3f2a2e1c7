// Package result holds the data model shared by every pipeline stage.
//
// The model follows the life of a document through the pipeline:
// Document → Page → (prepared page) → EngineResult → MergedPage → DocumentResult.
// Every engine maps its native output into TextRegion values, so the merge step only
// deals with one shape regardless of whether the engine reports geometry-rich detections
// or line boxes with coarse confidence.
//
// The package also carries the geometry the merge step relies on: polygon area and
// intersection-over-union, clamping into page bounds, and the row-band reading order.
package result
