package transform

import (
	"fmt"
	"math"

	"CapIot.powerfeed/internal/models"
)

// Point is one (x, y) vertex of a curve analysed by LTTB.
type Point struct {
	X, Y float64
}

// LTTB selects threshold points of the curve using the
// largest-triangle-three-buckets algorithm and returns their indices in
// ascending order. The first and last points are always kept. When threshold
// is not smaller than len(points) every index is returned; a threshold of 2
// or less keeps only the two anchors.
func LTTB(points []Point, threshold int) []int {
	n := len(points)
	if n == 0 {
		return []int{}
	}
	if threshold >= n {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}
	if n == 1 {
		return []int{0}
	}
	if threshold <= 2 {
		return []int{0, n - 1}
	}

	// Interior points are split into threshold-2 buckets of this width.
	every := float64(n-2) / float64(threshold-2)

	selected := make([]int, 0, threshold)
	selected = append(selected, 0)
	a := 0

	for i := 0; i < threshold-2; i++ {
		// Centroid of the next bucket.
		avgStart := int(math.Floor(float64(i+1)*every)) + 1
		avgEnd := min(int(math.Floor(float64(i+2)*every))+1, n)
		var avgX, avgY float64
		if count := avgEnd - avgStart; count > 0 {
			for j := avgStart; j < avgEnd; j++ {
				avgX += points[j].X
				avgY += points[j].Y
			}
			avgX /= float64(count)
			avgY /= float64(count)
		} else {
			avgX, avgY = points[n-1].X, points[n-1].Y
		}

		// Current bucket.
		rangeStart := int(math.Floor(float64(i)*every)) + 1
		rangeEnd := min(int(math.Floor(float64(i+1)*every))+1, n-1)

		pa := points[a]
		maxArea := -1.0
		next := rangeStart
		for j := rangeStart; j < rangeEnd; j++ {
			area := math.Abs((pa.X-avgX)*(points[j].Y-pa.Y)-(pa.X-points[j].X)*(avgY-pa.Y)) * 0.5
			if area > maxArea {
				maxArea = area
				next = j
			}
		}

		selected = append(selected, next)
		a = next
	}

	return append(selected, n-1)
}

// Downsample reduces the view to about target points. Points are chosen on
// the power channel alone and the same indices are applied to every channel.
// A target not smaller than the view length returns an unchanged copy.
func Downsample(view models.RenderView, target int) (models.RenderView, error) {
	if err := view.Validate(); err != nil {
		return models.RenderView{}, err
	}
	if target <= 0 {
		return models.RenderView{}, fmt.Errorf("%w: got %d", models.ErrInvalidTarget, target)
	}
	if target >= view.Len() {
		return view.Clone(), nil
	}

	points := make([]Point, view.Len())
	for i, p := range view.Power {
		points[i] = Point{X: float64(i), Y: p}
	}
	return view.Pick(LTTB(points, target)), nil
}

// Targets maps a chart time window (minutes) to a downsampling target.
type Targets struct {
	ByWindow map[int]int
	Default  int
}

// DefaultTargets returns the chart's stock lookup table.
func DefaultTargets() Targets {
	return Targets{
		ByWindow: map[int]int{1: 12, 5: 30, 10: 60, 30: 90, 60: 120},
		Default:  150,
	}
}

// For returns the target for an exact window size, or Default. Windows
// between table entries are not interpolated.
func (t Targets) For(windowMinutes int) int {
	if v, ok := t.ByWindow[windowMinutes]; ok {
		return v
	}
	return t.Default
}
