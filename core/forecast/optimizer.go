package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// adam implements the Adam update with Keras defaults.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  [][]float64
}

func newAdam(lr float64, ps []param) *adam {
	a := &adam{lr: lr, beta1: 0.9, beta2: 0.999, eps: 1e-7}
	a.m = make([][]float64, len(ps))
	a.v = make([][]float64, len(ps))
	for i, p := range ps {
		a.m[i] = make([]float64, len(p.value))
		a.v[i] = make([]float64, len(p.value))
	}
	return a
}

func (a *adam) step(ps []param) {
	a.t++
	lrT := a.lr * math.Sqrt(1-math.Pow(a.beta2, float64(a.t))) / (1 - math.Pow(a.beta1, float64(a.t)))
	for i, p := range ps {
		m, v := a.m[i], a.v[i]
		for j, g := range p.grad {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g
			v[j] = a.beta2*v[j] + (1-a.beta2)*g*g
			p.value[j] -= lrT * m[j] / (math.Sqrt(v[j]) + a.eps)
		}
	}
}

// clipGlobalNorm rescales all gradients so their joint L2 norm is at most
// max. It returns the norm before clipping.
func clipGlobalNorm(ps []param, max float64) float64 {
	var sum float64
	for _, p := range ps {
		n := floats.Norm(p.grad, 2)
		sum += n * n
	}
	norm := math.Sqrt(sum)
	if max > 0 && norm > max {
		for _, p := range ps {
			floats.Scale(max/norm, p.grad)
		}
	}
	return norm
}
