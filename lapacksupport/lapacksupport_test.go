package lapacksupport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNames(t *testing.T) {
	// Round trip every member through its container name
	{
		for _, m := range StateMembers() {
			s, ok := StateFromName(m.Name)
			assert.True(t, ok)
			assert.Equal(t, m.Value, int(s))
			assert.Equal(t, m.Name, s.String())
		}
		for _, m := range PropertyMembers() {
			p, ok := PropertyFromName(m.Name)
			assert.True(t, ok)
			assert.Equal(t, m.Value, int(p))
			assert.Equal(t, m.Name, p.String())
		}
	}
	// Unknown names are rejected
	{
		_, ok := StateFromName("hermitian")
		assert.False(t, ok)
		_, ok = PropertyFromName("banded")
		assert.False(t, ok)
	}
	// Container values are fixed
	{
		assert.Equal(t, 0, int(Matrix))
		assert.Equal(t, 3, int(Cholesky))
		assert.Equal(t, 0x8000, int(Unusable))
		assert.Equal(t, 6, int(Diagonal))
	}
}

func TestValidTransition(t *testing.T) {
	legal := [][2]State{
		{Matrix, Cholesky},
		{Matrix, LU},
		{Matrix, Eigenvalues},
		{Matrix, SVD},
		{Cholesky, InverseMatrix},
		{LU, InverseMatrix},
		{SVD, InverseSVD},
		{Cholesky, Matrix}, // reassignment
		{Eigenvalues, Unusable},
	}
	for _, tr := range legal {
		assert.True(t, ValidTransition(tr[0], tr[1]), "%v -> %v", tr[0], tr[1])
	}
	illegal := [][2]State{
		{Cholesky, Eigenvalues},
		{Cholesky, SVD},
		{Unusable, Cholesky},
		{Eigenvalues, InverseMatrix},
		{InverseMatrix, Cholesky},
	}
	for _, tr := range illegal {
		assert.False(t, ValidTransition(tr[0], tr[1]), "%v -> %v", tr[0], tr[1])
	}
}
