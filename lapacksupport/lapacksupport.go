// Package lapacksupport carries the state and property taxonomy shared by
// dense-matrix types: which decomposition currently occupies a matrix's
// storage, and its declared structural shape. The symbolic names and numeric
// values are part of the serialized container format and must not change.
package lapacksupport

import "fmt"

// State describes what the matrix storage currently holds. Most numeric
// operations destroy the plain-matrix content, so transitions are
// one-directional; see ValidTransition.
type State int

const (
	Matrix State = iota
	InverseMatrix
	LU
	Cholesky
	Eigenvalues
	SVD
	InverseSVD
	Unusable State = 0x8000
)

// Property is the declared structural shape, used to pick specialized
// routines. Diagonal is both upper and lower triangular.
type Property int

const (
	General         Property = 0
	Symmetric       Property = 1
	UpperTriangular Property = 2
	LowerTriangular Property = 4
	Diagonal        Property = 6
	Hessenberg      Property = 8
)

func (s State) String() string {
	switch s {
	case Matrix:
		return "matrix"
	case InverseMatrix:
		return "inverse_matrix"
	case LU:
		return "lu"
	case Cholesky:
		return "cholesky"
	case Eigenvalues:
		return "eigenvalues"
	case SVD:
		return "svd"
	case InverseSVD:
		return "inverse_svd"
	case Unusable:
		return "unusable"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (p Property) String() string {
	switch p {
	case General:
		return "general"
	case Symmetric:
		return "symmetric"
	case UpperTriangular:
		return "upper_triangular"
	case LowerTriangular:
		return "lower_triangular"
	case Diagonal:
		return "diagonal"
	case Hessenberg:
		return "hessenberg"
	}
	return fmt.Sprintf("Property(%d)", int(p))
}

// EnumMember is one name/value pair of the persisted enum schema.
type EnumMember struct {
	Name  string
	Value int
}

// StateMembers returns the full state schema in the fixed (alphabetical)
// container order.
func StateMembers() []EnumMember {
	return []EnumMember{
		{"cholesky", int(Cholesky)},
		{"eigenvalues", int(Eigenvalues)},
		{"inverse_matrix", int(InverseMatrix)},
		{"inverse_svd", int(InverseSVD)},
		{"lu", int(LU)},
		{"matrix", int(Matrix)},
		{"svd", int(SVD)},
		{"unusable", int(Unusable)},
	}
}

// PropertyMembers returns the full property schema in the fixed
// (alphabetical) container order.
func PropertyMembers() []EnumMember {
	return []EnumMember{
		{"diagonal", int(Diagonal)},
		{"general", int(General)},
		{"hessenberg", int(Hessenberg)},
		{"lower_triangular", int(LowerTriangular)},
		{"symmetric", int(Symmetric)},
		{"upper_triangular", int(UpperTriangular)},
	}
}

func StateFromName(name string) (State, bool) {
	for _, m := range StateMembers() {
		if m.Name == name {
			return State(m.Value), true
		}
	}
	return Unusable, false
}

func PropertyFromName(name string) (Property, bool) {
	for _, m := range PropertyMembers() {
		if m.Name == name {
			return Property(m.Value), true
		}
	}
	return General, false
}

// ValidTransition reports whether a mutating operation may move a matrix
// from one state to another. Content assignment returns any state to Matrix,
// and any state may be abandoned as Unusable; beyond that only the plain
// matrix state feeds the decompositions, and only factored states feed the
// inverses.
func ValidTransition(from, to State) bool {
	if to == Matrix || to == Unusable || from == to {
		return true
	}
	switch from {
	case Matrix:
		return to == Cholesky || to == LU || to == Eigenvalues || to == SVD
	case Cholesky, LU:
		return to == InverseMatrix
	case SVD:
		return to == InverseSVD
	}
	return false
}

// ErrorCode reports a numeric backend routine failing with a non-zero
// status. Status carries the backend's code where it reports one, or 1 when
// the backend reports only success/failure.
type ErrorCode struct {
	Routine string
	Status  int
}

func (e ErrorCode) Error() string {
	return fmt.Sprintf("lapack routine %s failed with status %d", e.Routine, e.Status)
}
