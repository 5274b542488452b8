package forecast

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

type activation int

const (
	actReLU activation = iota
	actTanh
)

func parseActivation(s string) (activation, error) {
	switch s {
	case "relu":
		return actReLU, nil
	case "tanh":
		return actTanh, nil
	default:
		return 0, fmt.Errorf("unknown activation %q", s)
	}
}

func (a activation) apply(x float64) float64 {
	if a == actTanh {
		return math.Tanh(x)
	}
	return math.Max(0, x)
}

// deriv returns the derivative at pre-activation x where y = apply(x).
func (a activation) deriv(x, y float64) float64 {
	if a == actTanh {
		return 1 - y*y
	}
	if x > 0 {
		return 1
	}
	return 0
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// glorot fills rows [r0,r1) x cols [c0,c1) of m from U(-l, l) with
// l = sqrt(6 / (fanIn + fanOut)).
func glorot(m *mat.Dense, r0, r1, c0, c1, fanIn, fanOut int, src rand.Source) {
	lim := math.Sqrt(6 / float64(fanIn+fanOut))
	u := distuv.Uniform{Min: -lim, Max: lim, Src: src}
	for i := r0; i < r1; i++ {
		for j := c0; j < c1; j++ {
			m.Set(i, j, u.Rand())
		}
	}
}

// lstm is a single LSTM layer. Rows of w are the input, forget, candidate
// and output gate blocks; columns are [x; h_prev].
type lstm struct {
	in, hidden int
	act        activation
	w          *mat.Dense
	b          *mat.VecDense
	dw         *mat.Dense
	db         *mat.VecDense
}

func newLSTM(in, hidden int, act activation, src rand.Source) *lstm {
	l := &lstm{
		in:     in,
		hidden: hidden,
		act:    act,
		w:      mat.NewDense(4*hidden, in+hidden, nil),
		b:      mat.NewVecDense(4*hidden, nil),
		dw:     mat.NewDense(4*hidden, in+hidden, nil),
		db:     mat.NewVecDense(4*hidden, nil),
	}
	if src != nil {
		glorot(l.w, 0, 4*hidden, 0, in, in, 4*hidden, src)
		glorot(l.w, 0, 4*hidden, in, in+hidden, hidden, 4*hidden, src)
		for k := hidden; k < 2*hidden; k++ {
			l.b.SetVec(k, 1)
		}
	}
	return l
}

// lstmStep keeps what the backward pass needs for one time step.
type lstmStep struct {
	xh           *mat.VecDense
	i, f, g, o   []float64
	zg           []float64
	cPrev, c, ac []float64
	h            []float64
}

func (l *lstm) step(x, hPrev, cPrev []float64) lstmStep {
	n := l.hidden
	xh := mat.NewVecDense(l.in+n, nil)
	raw := xh.RawVector().Data
	copy(raw[:l.in], x)
	copy(raw[l.in:], hPrev)

	z := mat.NewVecDense(4*n, nil)
	z.MulVec(l.w, xh)
	z.AddVec(z, l.b)
	zd := z.RawVector().Data

	s := lstmStep{
		xh:    xh,
		i:     make([]float64, n),
		f:     make([]float64, n),
		g:     make([]float64, n),
		o:     make([]float64, n),
		zg:    make([]float64, n),
		cPrev: cPrev,
		c:     make([]float64, n),
		ac:    make([]float64, n),
		h:     make([]float64, n),
	}
	for k := 0; k < n; k++ {
		s.i[k] = sigmoid(zd[k])
		s.f[k] = sigmoid(zd[n+k])
		s.zg[k] = zd[2*n+k]
		s.g[k] = l.act.apply(s.zg[k])
		s.o[k] = sigmoid(zd[3*n+k])
		s.c[k] = s.f[k]*cPrev[k] + s.i[k]*s.g[k]
		s.ac[k] = l.act.apply(s.c[k])
		s.h[k] = s.o[k] * s.ac[k]
	}
	return s
}

// backward accumulates weight gradients for one step and returns the
// gradients flowing to the step input and to the previous state.
func (l *lstm) backward(s lstmStep, dh, dcNext []float64) (dx, dhPrev, dcPrev []float64) {
	n := l.hidden
	dz := mat.NewVecDense(4*n, nil)
	dzd := dz.RawVector().Data
	dcPrev = make([]float64, n)
	for k := 0; k < n; k++ {
		do := dh[k] * s.ac[k]
		dc := dcNext[k] + dh[k]*s.o[k]*l.act.deriv(s.c[k], s.ac[k])
		dcPrev[k] = dc * s.f[k]
		dzd[k] = dc * s.g[k] * s.i[k] * (1 - s.i[k])
		dzd[n+k] = dc * s.cPrev[k] * s.f[k] * (1 - s.f[k])
		dzd[2*n+k] = dc * s.i[k] * l.act.deriv(s.zg[k], s.g[k])
		dzd[3*n+k] = do * s.o[k] * (1 - s.o[k])
	}
	l.dw.RankOne(l.dw, 1, dz, s.xh)
	l.db.AddVec(l.db, dz)

	dxh := mat.NewVecDense(l.in+n, nil)
	dxh.MulVec(l.w.T(), dz)
	d := dxh.RawVector().Data
	return d[:l.in], d[l.in:], dcPrev
}

// dense is the time distributed output projection.
type dense struct {
	in, out int
	w       *mat.Dense
	b       *mat.VecDense
	dw      *mat.Dense
	db      *mat.VecDense
}

func newDense(in, out int, src rand.Source) *dense {
	d := &dense{
		in:  in,
		out: out,
		w:   mat.NewDense(out, in, nil),
		b:   mat.NewVecDense(out, nil),
		dw:  mat.NewDense(out, in, nil),
		db:  mat.NewVecDense(out, nil),
	}
	if src != nil {
		glorot(d.w, 0, out, 0, in, in, out, src)
	}
	return d
}

func (d *dense) forward(h []float64) []float64 {
	y := mat.NewVecDense(d.out, nil)
	y.MulVec(d.w, mat.NewVecDense(d.in, h))
	y.AddVec(y, d.b)
	return y.RawVector().Data
}

func (d *dense) backward(h, dy []float64) []float64 {
	dyv := mat.NewVecDense(d.out, dy)
	d.dw.RankOne(d.dw, 1, dyv, mat.NewVecDense(d.in, h))
	d.db.AddVec(d.db, dyv)
	dh := mat.NewVecDense(d.in, nil)
	dh.MulVec(d.w.T(), dyv)
	return dh.RawVector().Data
}
