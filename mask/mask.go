package mask

import "fmt"

// rows of the info block
const (
	rowDense  = 0
	rowSparse = 1
	rowOffset = 2
)

// Mask describes which variables and coordinates carry observed values at
// an observation. A variable is either dense (all of its coordinates are
// active), sparse (a recorded subset of coordinates is active) or absent.
//
// The per-variable metadata is packed into a single contiguous 3xV block
// rather than three separate slices: one row of dense sizes, one of sparse
// sizes and one of offsets into the serialised coordinate list. The packed
// layout keeps the metadata in a single allocation small enough to pass by
// value through tight kernel argument limits.
type Mask struct {
	// info is the 3xV metadata block, stored row-major
	info []int
	// ixs holds serialised coordinates of sparsely masked variables
	ixs []int
	// numVars is the number of variables V
	numVars int
	// denseSize is the total size of dense entries
	denseSize int
	// sparseSize is the total size of sparse entries
	sparseSize int
}

// New creates a new empty Mask over numVars variables and returns it.
// It returns error if numVars is negative.
func New(numVars int) (*Mask, error) {
	if numVars < 0 {
		return nil, fmt.Errorf("invalid variable count: %d", numVars)
	}

	return &Mask{
		info:    make([]int, 3*numVars),
		numVars: numVars,
	}, nil
}

// NumVars returns the number of variables the mask ranges over.
func (m *Mask) NumVars() int {
	return m.numVars
}

// Size returns the total number of active coordinates in the mask.
func (m *Mask) Size() int {
	return m.denseSize + m.sparseSize
}

// AddDense records variable id as dense over size coordinates.
// The variable must not already be recorded in the mask.
func (m *Mask) AddDense(id, size int) {
	if m.IsDense(id) || m.IsSparse(id) {
		panic(fmt.Sprintf("mask: variable %d already recorded", id))
	}

	m.info[rowDense*m.numVars+id] = size
	m.denseSize += size
}

// AddSparse records every variable in ids as sparse over the shared
// coordinate list indices. The indices are appended to the serialised
// coordinate store; each variable must not already be recorded in the mask.
func (m *Mask) AddSparse(ids, indices []int) {
	for _, id := range ids {
		if m.IsDense(id) || m.IsSparse(id) {
			panic(fmt.Sprintf("mask: variable %d already recorded", id))
		}
	}

	start := len(m.ixs)
	m.ixs = append(m.ixs, indices...)
	m.sparseSize += len(ids) * len(indices)

	for _, id := range ids {
		m.info[rowOffset*m.numVars+id] = start
		m.info[rowSparse*m.numVars+id] = len(indices)
	}
}

// IsDense reports whether variable id is active in the mask and dense.
func (m *Mask) IsDense(id int) bool {
	return m.info[rowDense*m.numVars+id] > 0
}

// IsSparse reports whether variable id is active in the mask and sparse.
func (m *Mask) IsSparse(id int) bool {
	return m.info[rowSparse*m.numVars+id] > 0
}

// VarSize returns the number of active coordinates of variable id,
// zero if the variable is absent from the mask.
func (m *Mask) VarSize(id int) int {
	if m.IsDense(id) {
		return m.info[rowDense*m.numVars+id]
	}
	if m.IsSparse(id) {
		return m.info[rowSparse*m.numVars+id]
	}
	return 0
}

// Index translates the i-th active coordinate of variable id into a dense
// coordinate index: the identity for dense variables, a lookup into the
// serialised coordinates for sparse ones.
func (m *Mask) Index(id, i int) int {
	if m.IsSparse(id) {
		return m.ixs[m.info[rowOffset*m.numVars+id]+i]
	}
	return i
}

// Indices returns the serialised coordinates of sparse variable id.
// The returned slice is a view into the mask, valid only until the mask
// is next modified.
func (m *Mask) Indices(id int) []int {
	start := m.info[rowOffset*m.numVars+id]
	size := m.info[rowSparse*m.numVars+id]

	return m.ixs[start : start+size]
}

// Clear resets the mask to empty, keeping the variable count.
func (m *Mask) Clear() {
	for i := range m.info {
		m.info[i] = 0
	}
	m.ixs = m.ixs[:0]
	m.denseSize = 0
	m.sparseSize = 0
}

// CopyFrom deep-copies o into m, resizing the metadata block and the
// serialised coordinates to match.
func (m *Mask) CopyFrom(o *Mask) {
	if len(m.info) != len(o.info) {
		m.info = make([]int, len(o.info))
	}
	if cap(m.ixs) < len(o.ixs) {
		m.ixs = make([]int, len(o.ixs))
	}
	m.ixs = m.ixs[:len(o.ixs)]

	copy(m.info, o.info)
	copy(m.ixs, o.ixs)
	m.numVars = o.numVars
	m.denseSize = o.denseSize
	m.sparseSize = o.sparseSize
}
