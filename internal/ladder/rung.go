// Package ladder implements the discrete navigation model: a fixed sequence
// of magnification rungs with defined transitions for click-to-zoom, pan,
// undo and reset, plus the zoom history stack backing undo.
package ladder

// Rung is one step of the magnification ladder. RungFit is the whole-slide
// fit pseudo-rung; it has no nominal magnification.
type Rung float64

const (
	RungFit Rung = 0
	Rung2_5 Rung = 2.5
	Rung5   Rung = 5
	Rung10  Rung = 10
	Rung20  Rung = 20
	Rung40  Rung = 40
)

// Ladder is the rung sequence in ascending order.
var Ladder = []Rung{RungFit, Rung2_5, Rung5, Rung10, Rung20, Rung40}

func (r Rung) index() int {
	for i, v := range Ladder {
		if v == r {
			return i
		}
	}
	return 0
}

// Next returns the rung one step in; the terminal rung stays put.
func (r Rung) Next() Rung {
	i := r.index()
	if i < len(Ladder)-1 {
		return Ladder[i+1]
	}
	return r
}

// Prev returns the rung one step out; the fit rung stays put.
func (r Rung) Prev() Rung {
	i := r.index()
	if i > 0 {
		return Ladder[i-1]
	}
	return r
}

// IsFit reports whether the rung is the whole-slide fit state.
func (r Rung) IsFit() bool { return r == RungFit }

// Magnification returns the nominal magnification for event logging: nil
// for fit, the rung value otherwise.
func (r Rung) Magnification() *float64 {
	if r.IsFit() {
		return nil
	}
	m := float64(r)
	return &m
}
