package forecast

import (
	"encoding"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

const (
	artifactFormat  = "smartcharge/seq2seq"
	artifactVersion = 1
)

// artifact is the on-disk form of a model: the architecture plus every
// parameter encoded with gonum's binary matrix format, which round-trips
// float64 values exactly.
type artifact struct {
	Format  string            `json:"format"`
	Version int               `json:"version"`
	Config  TrainingConfig    `json:"config"`
	Params  map[string][]byte `json:"params"`
}

type binaryParam interface {
	encoding.BinaryMarshaler
}

func (n *seq2seq) named() map[string]binaryParam {
	return map[string]binaryParam{
		"encoder/kernel": n.enc.w,
		"encoder/bias":   n.enc.b,
		"decoder/kernel": n.dec.w,
		"decoder/bias":   n.dec.b,
		"output/kernel":  n.out.w,
		"output/bias":    n.out.b,
	}
}

// WriteTo encodes the model to w.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	if m.State() == StateUntrained {
		return 0, ErrModelUninitialized
	}
	a := artifact{Format: artifactFormat, Version: artifactVersion, Config: m.cfg, Params: map[string][]byte{}}
	for name, p := range m.net.named() {
		b, err := p.MarshalBinary()
		if err != nil {
			return 0, fmt.Errorf("encode %s: %w", name, err)
		}
		a.Params[name] = b
	}
	b, err := json.Marshal(a)
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Save writes the model to path atomically.
func (m *Model) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := m.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Read decodes a model previously written with WriteTo.
func Read(r io.Reader) (*Model, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	if a.Format != artifactFormat || a.Version != artifactVersion {
		return nil, fmt.Errorf("%w: unsupported format %q v%d", ErrBadArtifact, a.Format, a.Version)
	}
	a.Config.SetDefaults()
	if err := a.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	net, err := newSeq2Seq(a.Config, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadArtifact, err)
	}
	if err := net.restore(a.Params); err != nil {
		return nil, err
	}
	return &Model{cfg: a.Config, net: net, state: StateLoaded}, nil
}

// Load reads a model from path.
func Load(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Read(f)
}

func (n *seq2seq) restore(params map[string][]byte) error {
	if err := restoreDense(params, "encoder/kernel", n.enc.w); err != nil {
		return err
	}
	if err := restoreVec(params, "encoder/bias", n.enc.b); err != nil {
		return err
	}
	if err := restoreDense(params, "decoder/kernel", n.dec.w); err != nil {
		return err
	}
	if err := restoreVec(params, "decoder/bias", n.dec.b); err != nil {
		return err
	}
	if err := restoreDense(params, "output/kernel", n.out.w); err != nil {
		return err
	}
	return restoreVec(params, "output/bias", n.out.b)
}

func restoreDense(params map[string][]byte, name string, dst *mat.Dense) error {
	b, ok := params[name]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrBadArtifact, name)
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(b); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadArtifact, name, err)
	}
	r, c := m.Dims()
	wr, wc := dst.Dims()
	if r != wr || c != wc {
		return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrBadArtifact, name, r, c, wr, wc)
	}
	dst.Copy(&m)
	return nil
}

func restoreVec(params map[string][]byte, name string, dst *mat.VecDense) error {
	b, ok := params[name]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrBadArtifact, name)
	}
	var v mat.VecDense
	if err := v.UnmarshalBinary(b); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadArtifact, name, err)
	}
	if v.Len() != dst.Len() {
		return fmt.Errorf("%w: %s has %d entries, want %d", ErrBadArtifact, name, v.Len(), dst.Len())
	}
	dst.CopyVec(&v)
	return nil
}
