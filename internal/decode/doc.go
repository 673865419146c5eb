// Package decode turns a raw PCM amplitude stream into smoothed PPM channel
// values.
//
// The pipeline is strictly one-directional:
//
//	samples → edges (EdgeDetector) → intervals (Classifier)
//	        → frames (Assembler) → smoothed vectors (Smoother)
//
// [Decoder] composes the four stages and is the only type most callers need.
// All stages are allocation-light and never block; the decode path touches no
// I/O. Timing is carried as time.Duration measured from the first sample fed
// to the decoder.
package decode
