package checkpoint

import (
	"fmt"
	"strings"
)

// Key identifies the checkpoint of one parallel scan.
type Key struct {
	// Table is the scanned table name
	Table string

	// Index is the scanned secondary index ("" for the base table)
	Index string

	// TotalSegments is the segment count the positions were recorded with.
	// Positions are only valid for the same segmentation.
	TotalSegments int32

	// Segment is set when only one segment is scanned; such a scan keeps its own checkpoint
	Segment *int32
}

// String generates a deterministic Redis key.
// Format: ddbscan:checkpoint:table[:index=name]:segments=n[:segment=i]
//
// Example:
//
//	ddbscan:checkpoint:orders:index=by-customer:segments=8
//	ddbscan:checkpoint:orders:segments=8:segment=3
func (k Key) String() string {
	parts := []string{"ddbscan", "checkpoint", k.Table}

	if k.Index != "" {
		parts = append(parts, fmt.Sprintf("index=%s", k.Index))
	}

	segments := k.TotalSegments
	if segments <= 0 {
		segments = 1
	}
	parts = append(parts, fmt.Sprintf("segments=%d", segments))

	if k.Segment != nil {
		parts = append(parts, fmt.Sprintf("segment=%d", *k.Segment))
	}

	return strings.Join(parts, ":")
}
