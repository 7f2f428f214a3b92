// Package rng provides the deterministic random source used by the CMA-ES
// engine.  It is a Park-Miller minimal standard generator combined with a
// 32-entry Bays-Durham shuffle table, with normal deviates produced by the
// polar method.  Unlike math/rand, every piece of generator state is a plain
// value that can be captured and restored, which is what makes bit-exact
// resume snapshots possible.
package rng

import "math"

const (
	ia   = 16807
	im   = 2147483647
	iq   = 127773
	ir   = 2836
	ntab = 32
)

// Rng is a seedable deterministic source of uniform and standard-normal
// samples.  The zero value is not usable; construct with New.
type Rng struct {
	seed    int64
	akt     int64
	prev    int64
	table   [ntab]int64
	hold    float64
	flgheld bool
}

// State is a copyable snapshot of the full generator state.
type State struct {
	Seed  int64
	Akt   int64
	Prev  int64
	Table [ntab]int64
	Hold  float64
	Held  bool
}

// New returns a generator seeded with seed.  Seeds below 1 are clamped to 1;
// callers that want time-based seeding should derive the seed themselves so
// that the value can be reported and reused.
func New(seed int64) *Rng {
	r := &Rng{}
	r.Reset(seed)
	return r
}

// Reset reinitializes the generator as if newly constructed with seed.
func (r *Rng) Reset(seed int64) {
	if seed < 1 {
		seed = 1
	}
	r.seed = seed
	r.flgheld = false
	r.hold = 0
	r.akt = seed
	for i := 39; i >= 0; i-- {
		tmp := r.akt / iq
		r.akt = ia*(r.akt-tmp*iq) - ir*tmp
		if r.akt < 0 {
			r.akt += im
		}
		if i < ntab {
			r.table[i] = r.akt
		}
	}
	r.prev = r.table[0]
}

// Seed reports the seed the generator was last reset with.
func (r *Rng) Seed() int64 { return r.seed }

// Uniform returns the next sample from U(0,1).
func (r *Rng) Uniform() float64 {
	tmp := r.akt / iq
	r.akt = ia*(r.akt-tmp*iq) - ir*tmp
	if r.akt < 0 {
		r.akt += im
	}
	tmp = r.prev / (1 + (im-1)/ntab)
	r.prev = r.table[tmp]
	r.table[tmp] = r.akt
	return float64(r.prev) / 2.147483647e9
}

// Gauss returns the next sample from N(0,1).  Deviates are generated in
// pairs by the polar method; the second of each pair is held and returned by
// the following call.
func (r *Rng) Gauss() float64 {
	if r.flgheld {
		r.flgheld = false
		return r.hold
	}
	var x1, x2, rquad float64
	for {
		x1 = 2*r.Uniform() - 1
		x2 = 2*r.Uniform() - 1
		rquad = x1*x1 + x2*x2
		if rquad < 1 && rquad > 0 {
			break
		}
	}
	fac := math.Sqrt(-2 * math.Log(rquad) / rquad)
	r.hold = fac * x1
	r.flgheld = true
	return fac * x2
}

// State captures the complete generator state.
func (r *Rng) State() State {
	return State{
		Seed:  r.seed,
		Akt:   r.akt,
		Prev:  r.prev,
		Table: r.table,
		Hold:  r.hold,
		Held:  r.flgheld,
	}
}

// Restore overwrites the generator state with st.  A generator restored from
// the state of another produces the identical sample sequence.
func (r *Rng) Restore(st State) {
	r.seed = st.Seed
	r.akt = st.Akt
	r.prev = st.Prev
	r.table = st.Table
	r.hold = st.Hold
	r.flgheld = st.Held
}
