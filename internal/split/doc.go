// Package split cuts an oversized segment into time-contiguous parts sized for
// the messaging transport.
//
// Boundaries are spaced evenly in time on the assumption of a constant byte
// rate, so a part can still come out above the ceiling; the delivery stage
// checks every part before upload.
package split
