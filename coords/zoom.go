package coords

import "math"

// ZoomRange bounds the zoom factor and fixes the increment used by the
// zoom-in and zoom-out controls.
type ZoomRange struct {
	Min  float64
	Max  float64
	Step float64
}

// DefaultZoomRange returns 0.5x to 3.0x in quarter steps.
func DefaultZoomRange() ZoomRange {
	return ZoomRange{Min: 0.5, Max: 3.0, Step: 0.25}
}

const zoomEpsilon = 1e-9

// In returns the next zoom level. Stepping beyond Max leaves z unchanged.
func (r ZoomRange) In(z float64) (float64, bool) {
	next := round(z + r.Step)
	if next > r.Max+zoomEpsilon {
		return z, false
	}
	return next, true
}

// Out returns the previous zoom level. Stepping below Min leaves z unchanged.
func (r ZoomRange) Out(z float64) (float64, bool) {
	next := round(z - r.Step)
	if next < r.Min-zoomEpsilon {
		return z, false
	}
	return next, true
}

func (r ZoomRange) Contains(z float64) bool {
	return z >= r.Min-zoomEpsilon && z <= r.Max+zoomEpsilon
}

func (r ZoomRange) Clamp(z float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, z))
}

// Snap clamps z and rounds it to the nearest reachable level.
func (r ZoomRange) Snap(z float64) float64 {
	z = r.Clamp(z)
	if r.Step <= 0 {
		return z
	}
	level := round(r.Min + math.Round((z-r.Min)/r.Step)*r.Step)
	if level > r.Max+zoomEpsilon {
		level = round(level - r.Step)
	}
	return level
}

// Levels lists every reachable zoom level from Min to Max.
func (r ZoomRange) Levels() []float64 {
	if r.Step <= 0 {
		return []float64{r.Min}
	}
	var out []float64
	for z := r.Min; z <= r.Max+zoomEpsilon; z = round(z + r.Step) {
		out = append(out, z)
	}
	return out
}

// round trims accumulated float error from repeated stepping.
func round(z float64) float64 { return math.Round(z*1e6) / 1e6 }
