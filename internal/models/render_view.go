package models

import "fmt"

// RenderView is the index-aligned, chart-ready form of a Measurements
// snapshot. All four channels always have the same length.
type RenderView struct {
	TimeLabels  []string  `json:"timeLabels"`
	Power       []float64 `json:"power"`
	Temperature []float64 `json:"temperature"`
	Energy      []float64 `json:"energy"`
}

// Len returns the number of points in the view.
func (v RenderView) Len() int {
	return len(v.TimeLabels)
}

// Validate reports ErrMisalignedView when the channels differ in length.
func (v RenderView) Validate() error {
	n := len(v.TimeLabels)
	if len(v.Power) != n || len(v.Temperature) != n || len(v.Energy) != n {
		return fmt.Errorf("%w: labels=%d power=%d temperature=%d energy=%d",
			ErrMisalignedView, n, len(v.Power), len(v.Temperature), len(v.Energy))
	}
	return nil
}

// Pick returns a new view holding only the given indices, in order.
// Indices must be valid for every channel.
func (v RenderView) Pick(indices []int) RenderView {
	out := RenderView{
		TimeLabels:  make([]string, len(indices)),
		Power:       make([]float64, len(indices)),
		Temperature: make([]float64, len(indices)),
		Energy:      make([]float64, len(indices)),
	}
	for i, idx := range indices {
		out.TimeLabels[i] = v.TimeLabels[idx]
		out.Power[i] = v.Power[idx]
		out.Temperature[i] = v.Temperature[idx]
		out.Energy[i] = v.Energy[idx]
	}
	return out
}

// Clone returns a deep copy of the view.
func (v RenderView) Clone() RenderView {
	return RenderView{
		TimeLabels:  append([]string(nil), v.TimeLabels...),
		Power:       append([]float64(nil), v.Power...),
		Temperature: append([]float64(nil), v.Temperature...),
		Energy:      append([]float64(nil), v.Energy...),
	}
}

// NewRenderView flattens a processed snapshot into chart channels.
// Labels come from the power series; the temperature series and the
// accumulated energy must line up with it point for point.
func NewRenderView(m *Measurements) (RenderView, error) {
	if m == nil {
		return RenderView{}, fmt.Errorf("%w: nil measurements", ErrMisalignedView)
	}
	n := len(m.Power.Values)
	if len(m.Temperature.Values) != n || len(m.AccumulatedEnergy) != n {
		return RenderView{}, fmt.Errorf("%w: power=%d temperature=%d energy=%d",
			ErrMisalignedView, n, len(m.Temperature.Values), len(m.AccumulatedEnergy))
	}

	view := RenderView{
		TimeLabels:  make([]string, n),
		Power:       make([]float64, n),
		Temperature: make([]float64, n),
		Energy:      make([]float64, n),
	}
	for i, p := range m.Power.Values {
		view.TimeLabels[i] = p.Time
		view.Power[i] = p.Value
		view.Temperature[i] = m.Temperature.Values[i].Value
		view.Energy[i] = m.AccumulatedEnergy[i].Value
	}
	return view, nil
}
