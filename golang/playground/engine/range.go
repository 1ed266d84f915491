package engine

//Window is the half interval [Begin, End) of one mini-batch inside an epoch permutation.
type Window struct {
	Begin, End int
}

//Len is the number of examples in the window.
func (w Window) Len() int {
	return w.End - w.Begin
}

//BatchRange is an iterator over consecutive mini-batch windows of [0, total). The last
//window is shorter when total is not a multiple of the batch size.
type BatchRange struct {
	total, size, pos int
}

//NewBatchRange initializes an iterator over total examples in batches of size.
func NewBatchRange(total, size int) *BatchRange {
	if size < 1 {
		size = 1
	}
	return &BatchRange{total: total, size: size}
}

//HasNext checks whether there are more windows in the iterator.
func (r *BatchRange) HasNext() bool {
	return r.pos < r.total
}

//GetNext returns the next window and moves the iterator past it.
func (r *BatchRange) GetNext() Window {
	end := r.pos + r.size
	if end > r.total {
		end = r.total
	}
	w := Window{Begin: r.pos, End: end}
	r.pos = end
	return w
}

//Count is the total number of windows the iterator yields.
func (r *BatchRange) Count() int {
	return (r.total + r.size - 1) / r.size
}
