package tool

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/robin-raq/collabboard/internal/domain/board"
)

// BuildBoardContext renders the human-readable board snapshot whose
// formatting is a stable contract: the AI Orchestrator seeds every
// model turn with it, and getBoardState returns it verbatim. Listing
// is capped at 30 objects, nearest to the occupied-area centroid when
// there are more.
func BuildBoardContext(objects map[string]*board.Object) string {
	var sb strings.Builder

	total := len(objects)
	fmt.Fprintf(&sb, "%d total object(s) on the board.\n", total)
	if total == 0 {
		sb.WriteString("The board is empty. Place new objects near (0, 0).")
		return sb.String()
	}

	ids := sortedIDs(objects)
	cx, cy := centroid(objects, ids)
	listed := selectNearest(objects, ids, cx, cy, maxContextObjects)

	if total > maxContextObjects {
		fmt.Fprintf(&sb, "Showing the %d nearest the occupied centroid:\n", len(listed))
	}

	for _, id := range listed {
		o := objects[id]
		sb.WriteString(describeObject(o))
		sb.WriteByte('\n')
	}

	maxRight, maxBottom := occupiedBounds(objects)
	fmt.Fprintf(&sb, "Occupied bounding box: x:0..%s, y:0..%s\n",
		formatNum(maxRight), formatNum(maxBottom))
	fmt.Fprintf(&sb, "Place new objects after x=%s or y=%s to avoid the occupied area.\n",
		formatNum(maxRight+contextPlacementGap), formatNum(maxBottom+contextPlacementGap))

	return sb.String()
}

func describeObject(o *board.Object) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- %s (%s) at (%s, %s), size %sx%s, fill %s",
		o.ID, o.Type, formatNum(o.X), formatNum(o.Y), formatNum(o.Width), formatNum(o.Height), o.Fill)
	if o.Text != "" {
		fmt.Fprintf(&sb, `, text %q`, o.Text)
	}
	if o.ParentID != "" {
		fmt.Fprintf(&sb, `, Parent: %q`, o.ParentID)
	}
	if o.FromID != "" {
		fmt.Fprintf(&sb, `, From: %q`, o.FromID)
	}
	if o.ToID != "" {
		fmt.Fprintf(&sb, `, To: %q`, o.ToID)
	}
	if len(o.Points) > 0 {
		parts := make([]string, len(o.Points))
		for i, p := range o.Points {
			parts[i] = formatNum(p)
		}
		fmt.Fprintf(&sb, ", Points: [%s]", strings.Join(parts, ", "))
	}
	return sb.String()
}

func centroid(objects map[string]*board.Object, ids []string) (float64, float64) {
	var sumX, sumY float64
	for _, id := range ids {
		o := objects[id]
		sumX += o.X + o.Width/2
		sumY += o.Y + o.Height/2
	}
	n := float64(len(ids))
	return sumX / n, sumY / n
}

func selectNearest(objects map[string]*board.Object, ids []string, cx, cy float64, limit int) []string {
	if len(ids) <= limit {
		return ids
	}
	ordered := make([]string, len(ids))
	copy(ordered, ids)
	sort.Slice(ordered, func(i, j int) bool {
		return distanceToCentroid(objects[ordered[i]], cx, cy) < distanceToCentroid(objects[ordered[j]], cx, cy)
	})
	return ordered[:limit]
}

func distanceToCentroid(o *board.Object, cx, cy float64) float64 {
	dx := (o.X + o.Width/2) - cx
	dy := (o.Y + o.Height/2) - cy
	return math.Hypot(dx, dy)
}

func occupiedBounds(objects map[string]*board.Object) (maxRight, maxBottom float64) {
	for _, o := range objects {
		if right := o.X + o.Width; right > maxRight {
			maxRight = right
		}
		if bottom := o.Y + o.Height; bottom > maxBottom {
			maxBottom = bottom
		}
	}
	return maxRight, maxBottom
}

func formatNum(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', 1, 64)
}
