package forecast

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// seq2seq is encoder LSTM -> repeat summary -> decoder LSTM -> dense.
type seq2seq struct {
	history, forecast, features, hidden int

	enc *lstm
	dec *lstm
	out *dense
}

type trace struct {
	enc []lstmStep
	dec []lstmStep
}

// newSeq2Seq allocates the network. A nil src leaves weights at zero, which
// is used when decoding a persisted artifact.
func newSeq2Seq(cfg TrainingConfig, src rand.Source) (*seq2seq, error) {
	act, err := parseActivation(cfg.Activation)
	if err != nil {
		return nil, err
	}
	return &seq2seq{
		history:  cfg.History,
		forecast: cfg.Forecast,
		features: cfg.Features,
		hidden:   cfg.HiddenUnits,
		enc:      newLSTM(cfg.Features, cfg.HiddenUnits, act, src),
		dec:      newLSTM(cfg.HiddenUnits, cfg.HiddenUnits, act, src),
		out:      newDense(cfg.HiddenUnits, cfg.Features, src),
	}, nil
}

// forward maps a (history, features) matrix to a (forecast, features) one.
func (n *seq2seq) forward(x *mat.Dense) (*mat.Dense, *trace) {
	tr := &trace{enc: make([]lstmStep, n.history), dec: make([]lstmStep, n.forecast)}
	h := make([]float64, n.hidden)
	c := make([]float64, n.hidden)
	for t := 0; t < n.history; t++ {
		s := n.enc.step(x.RawRowView(t), h, c)
		tr.enc[t] = s
		h, c = s.h, s.c
	}
	summary := h

	y := mat.NewDense(n.forecast, n.features, nil)
	h = make([]float64, n.hidden)
	c = make([]float64, n.hidden)
	for t := 0; t < n.forecast; t++ {
		s := n.dec.step(summary, h, c)
		tr.dec[t] = s
		h, c = s.h, s.c
		y.SetRow(t, n.out.forward(s.h))
	}
	return y, tr
}

// backward propagates dy, the loss gradient w.r.t. the forecast, through
// time and accumulates parameter gradients.
func (n *seq2seq) backward(tr *trace, dy *mat.Dense) {
	dSummary := make([]float64, n.hidden)
	dhNext := make([]float64, n.hidden)
	dcNext := make([]float64, n.hidden)
	for t := n.forecast - 1; t >= 0; t-- {
		s := tr.dec[t]
		dh := n.out.backward(s.h, dy.RawRowView(t))
		floats.Add(dh, dhNext)
		dx, dhPrev, dcPrev := n.dec.backward(s, dh, dcNext)
		floats.Add(dSummary, dx)
		dhNext, dcNext = dhPrev, dcPrev
	}

	dh := dSummary
	dc := make([]float64, n.hidden)
	for t := n.history - 1; t >= 0; t-- {
		_, dhPrev, dcPrev := n.enc.backward(tr.enc[t], dh, dc)
		dh, dc = dhPrev, dcPrev
	}
}

// accumulate runs one sample forward and backward. The gradient is scaled by
// weight so a batch sums to the batch-mean loss gradient. It returns the
// sample mean squared error.
func (n *seq2seq) accumulate(x, target *mat.Dense, weight float64) float64 {
	y, tr := n.forward(x)
	diff := mat.NewDense(n.forecast, n.features, nil)
	diff.Sub(y, target)
	size := float64(n.forecast * n.features)
	loss := mat.Sum(mulElem(diff)) / size
	diff.Scale(2*weight/size, diff)
	n.backward(tr, diff)
	return loss
}

// loss returns the mean squared error of one sample without touching
// gradients.
func (n *seq2seq) loss(x, target *mat.Dense) float64 {
	y, _ := n.forward(x)
	diff := mat.NewDense(n.forecast, n.features, nil)
	diff.Sub(y, target)
	return mat.Sum(mulElem(diff)) / float64(n.forecast*n.features)
}

func mulElem(m *mat.Dense) *mat.Dense {
	var sq mat.Dense
	sq.MulElem(m, m)
	return &sq
}

type param struct {
	name  string
	value []float64
	grad  []float64
}

func (n *seq2seq) params() []param {
	return []param{
		{"encoder/kernel", n.enc.w.RawMatrix().Data, n.enc.dw.RawMatrix().Data},
		{"encoder/bias", n.enc.b.RawVector().Data, n.enc.db.RawVector().Data},
		{"decoder/kernel", n.dec.w.RawMatrix().Data, n.dec.dw.RawMatrix().Data},
		{"decoder/bias", n.dec.b.RawVector().Data, n.dec.db.RawVector().Data},
		{"output/kernel", n.out.w.RawMatrix().Data, n.out.dw.RawMatrix().Data},
		{"output/bias", n.out.b.RawVector().Data, n.out.db.RawVector().Data},
	}
}

func (n *seq2seq) zeroGrad() {
	n.enc.dw.Zero()
	n.enc.db.Zero()
	n.dec.dw.Zero()
	n.dec.db.Zero()
	n.out.dw.Zero()
	n.out.db.Zero()
}
