// Package sim is a dense state-vector simulator. It is the replay backend:
// given a list of operations and terminal measurements it returns the
// measurement results.
package sim

import (
	"math"
	"math/cmplx"
)

type Complex = complex128

// Matrix2 is a single-qubit unitary in row-major order.
type Matrix2 [2][2]Complex

// Dagger returns the conjugate transpose.
func (m Matrix2) Dagger() Matrix2 {
	return Matrix2{
		{cmplx.Conj(m[0][0]), cmplx.Conj(m[1][0])},
		{cmplx.Conj(m[0][1]), cmplx.Conj(m[1][1])},
	}
}

// Mul returns m·o.
func (m Matrix2) Mul(o Matrix2) Matrix2 {
	var r Matrix2
	for i := range 2 {
		for j := range 2 {
			r[i][j] = m[i][0]*o[0][j] + m[i][1]*o[1][j]
		}
	}
	return r
}

func (m Matrix2) isDiagonal() bool  { return m[0][1] == 0 && m[1][0] == 0 }
func (m Matrix2) isAntiDiag() bool { return m[0][0] == 0 && m[1][1] == 0 }

// StateVector holds 2^NumQubits amplitudes. Wire 0 is the most
// significant bit of the basis-state index.
type StateVector struct {
	Amplitudes []Complex
	NumQubits  int
}

// NewStateVector returns |0...0>.
func NewStateVector(numQubits int) *StateVector {
	amps := make([]Complex, 1<<numQubits)
	amps[0] = 1
	return &StateVector{Amplitudes: amps, NumQubits: numQubits}
}

func (s *StateVector) Clone() *StateVector {
	amps := make([]Complex, len(s.Amplitudes))
	copy(amps, s.Amplitudes)
	return &StateVector{Amplitudes: amps, NumQubits: s.NumQubits}
}

func (s *StateVector) bit(wire int) int {
	return 1 << (s.NumQubits - 1 - wire)
}

// controlMask returns the mask of control bits and the value those bits
// must hold for the operation to act.
func (s *StateVector) controlMask(controls []control) (mask, want int) {
	for _, c := range controls {
		b := s.bit(c.wire)
		mask |= b
		if c.value {
			want |= b
		}
	}
	return mask, want
}

// Apply1 applies u to target on every basis state whose control bits match.
func (s *StateVector) Apply1(u Matrix2, target int, controls []control) {
	n := len(s.Amplitudes)
	bit := s.bit(target)
	mask, want := s.controlMask(controls)

	switch {
	case u.isDiagonal():
		for i := 0; i < n; i++ {
			if i&mask != want {
				continue
			}
			if i&bit == 0 {
				s.Amplitudes[i] *= u[0][0]
			} else {
				s.Amplitudes[i] *= u[1][1]
			}
		}
	case u.isAntiDiag():
		for i := 0; i < n; i++ {
			if i&bit != 0 || i&mask != want {
				continue
			}
			j := i | bit
			s.Amplitudes[i], s.Amplitudes[j] = u[0][1]*s.Amplitudes[j], u[1][0]*s.Amplitudes[i]
		}
	default:
		for i := 0; i < n; i++ {
			if i&bit != 0 || i&mask != want {
				continue
			}
			j := i | bit
			a0, a1 := s.Amplitudes[i], s.Amplitudes[j]
			s.Amplitudes[i] = u[0][0]*a0 + u[0][1]*a1
			s.Amplitudes[j] = u[1][0]*a0 + u[1][1]*a1
		}
	}
}

// ApplySwap exchanges wires a and b under the given controls.
func (s *StateVector) ApplySwap(a, b int, controls []control) {
	n := len(s.Amplitudes)
	bit1, bit2 := s.bit(a), s.bit(b)
	mask, want := s.controlMask(controls)
	for i := 0; i < n; i++ {
		if i&bit1 != 0 && i&bit2 == 0 && i&mask == want {
			j := (i &^ bit1) | bit2
			s.Amplitudes[i], s.Amplitudes[j] = s.Amplitudes[j], s.Amplitudes[i]
		}
	}
}

// Probabilities returns the marginal distribution over wires, with the
// first listed wire as the most significant bit.
func (s *StateVector) Probabilities(wires []int) []float64 {
	out := make([]float64, 1<<len(wires))
	for i, amp := range s.Amplitudes {
		p := real(amp * cmplx.Conj(amp))
		if p == 0 {
			continue
		}
		out[s.project(i, wires)] += p
	}
	return out
}

// project extracts the bits of basis index i belonging to wires.
func (s *StateVector) project(i int, wires []int) int {
	idx := 0
	for _, w := range wires {
		idx <<= 1
		if i&s.bit(w) != 0 {
			idx |= 1
		}
	}
	return idx
}

// Norm returns the squared norm of the state, 1 for any valid state.
func (s *StateVector) Norm() float64 {
	total := 0.0
	for _, amp := range s.Amplitudes {
		total += real(amp * cmplx.Conj(amp))
	}
	return total
}

func phase(theta float64) Complex {
	return cmplx.Exp(complex(0, theta))
}

var invSqrt2 = complex(1/math.Sqrt2, 0)
