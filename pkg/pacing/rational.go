package pacing

// Timescale is the fixed tick rate for planned durations and
// presentation times. 90000 divides evenly by the common frame rates
// and doubles as the MP4 media timescale, so planner output maps onto
// container sample timing without rounding.
const Timescale = 90000

// Rational is an exact fraction of seconds. The planner keeps every
// duration on the shared Timescale denominator, so accumulating
// presentation times never drifts the way float arithmetic would.
type Rational struct {
	Num int64
	Den int64
}

// NewRational creates a reduced rational. A non-positive denominator
// is normalized to a positive one.
func NewRational(num, den int64) Rational {
	if den == 0 {
		return Rational{Num: 0, Den: 1}
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := gcd(abs64(num), den)
	if g > 1 {
		num /= g
		den /= g
	}
	return Rational{Num: num, Den: den}
}

// Zero returns the zero rational.
func Zero() Rational {
	return Rational{Num: 0, Den: 1}
}

// Add returns r + o as a reduced rational.
func (r Rational) Add(o Rational) Rational {
	return NewRational(r.Num*o.Den+o.Num*r.Den, r.Den*o.Den)
}

// Cmp compares r to o: -1 if r < o, 0 if equal, 1 if r > o.
func (r Rational) Cmp(o Rational) int {
	a := r.Num * o.Den
	b := o.Num * r.Den
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Seconds returns the rational as a float64 second count.
func (r Rational) Seconds() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Ticks converts the rational to ticks of the given timescale,
// rounding half away from zero.
func (r Rational) Ticks(timescale int64) int64 {
	n := r.Num * timescale
	if n >= 0 {
		return (n + r.Den/2) / r.Den
	}
	return (n - r.Den/2) / r.Den
}

// IsPositive reports whether r > 0.
func (r Rational) IsPositive() bool {
	return r.Num > 0
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
