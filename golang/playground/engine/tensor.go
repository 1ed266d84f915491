package engine

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//Arena accounts for every tensor and network it hands out. A tensor stays live until
//Release is called on it, so LiveTensors returning to a baseline means nothing leaked.
type Arena struct {
	liveTensors  atomic.Int64
	liveNetworks atomic.Int64
}

//NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

//LiveTensors is the number of allocated but not yet released tensors.
func (a *Arena) LiveTensors() int {
	return int(a.liveTensors.Load())
}

//LiveNetworks is the number of built but not yet released networks.
func (a *Arena) LiveNetworks() int {
	return int(a.liveNetworks.Load())
}

//Tensor is a dense rows x cols float64 matrix owned by an Arena.
type Tensor struct {
	arena    *Arena
	dense    *tensor.Dense
	rows     int
	cols     int
	released atomic.Bool
}

//NewTensor wraps data as a [rows, cols] tensor. The tensor takes ownership of data.
func (a *Arena) NewTensor(rows, cols int, data []float64) (*Tensor, error) {
	if rows <= 0 || cols <= 0 {
		return nil, errors.Errorf("invalid tensor shape [%d, %d]", rows, cols)
	}
	if data == nil {
		data = make([]float64, rows*cols)
	}
	if len(data) != rows*cols {
		return nil, errors.Errorf("tensor shape [%d, %d] needs %d values, got %d", rows, cols, rows*cols, len(data))
	}
	t := &Tensor{
		arena: a,
		dense: tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data)),
		rows:  rows,
		cols:  cols,
	}
	a.liveTensors.Add(1)
	return t, nil
}

//Shape returns [rows, cols].
func (t *Tensor) Shape() (rows, cols int) {
	return t.rows, t.cols
}

//Data returns the row-major backing slice.
func (t *Tensor) Data() []float64 {
	return t.dense.Data().([]float64)
}

//Matrix returns a gonum view sharing the tensor's storage.
func (t *Tensor) Matrix() *mat.Dense {
	return mat.NewDense(t.rows, t.cols, t.Data())
}

//Released reports whether Release has been called.
func (t *Tensor) Released() bool {
	return t.released.Load()
}

//Release returns the tensor to its arena. Calling it more than once is a no-op.
func (t *Tensor) Release() {
	if t == nil {
		return
	}
	if t.released.CompareAndSwap(false, true) {
		t.arena.liveTensors.Add(-1)
	}
}
