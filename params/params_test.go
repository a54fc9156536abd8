package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionParameters(t *testing.T) {
	fileInput := []byte(`
Title: "Factorization Session"
Processes: 6
GridRows: 2
GridColumns: 2
MatrixSize: 64
BlockSize: 8
SaveMode: chunked
ChunkRows: 16
ChunkColumns: 2
Seed: 42
`)
	var sp SessionParameters
	assert.NoError(t, sp.Parse(fileInput))
	assert.Equal(t, "Factorization Session", sp.Title)
	assert.Equal(t, 6, sp.Processes)
	assert.Equal(t, 2, sp.GridRows)
	assert.Equal(t, 64, sp.MatrixSize)
	assert.Equal(t, "chunked", sp.SaveMode)
	assert.Equal(t, int64(42), sp.Seed)
	sp.Complete()
	assert.NoError(t, sp.Validate())
	sp.Print()

	{ // Omitted fields are filled with runnable defaults.
		minimal := SessionParameters{MatrixSize: 10}
		minimal.Complete()
		assert.Equal(t, 1, minimal.Processes)
		assert.Equal(t, 1, minimal.GridRows)
		assert.Equal(t, 10, minimal.BlockSize)
		assert.Equal(t, "serial", minimal.SaveMode)
		assert.Equal(t, 10, minimal.ChunkRows)
		assert.Equal(t, 1, minimal.ChunkColumns)
		assert.NoError(t, minimal.Validate())
	}
	{ // An oversized block is clipped to the matrix.
		clipped := SessionParameters{MatrixSize: 5, BlockSize: 64}
		clipped.Complete()
		assert.Equal(t, 5, clipped.BlockSize)
	}
	{ // Inconsistent sessions are rejected.
		bad := SessionParameters{MatrixSize: 0}
		bad.Complete()
		assert.Error(t, bad.Validate())

		bad = SessionParameters{MatrixSize: 8, GridRows: 2, GridColumns: 3, Processes: 4}
		assert.Error(t, bad.Validate())

		bad = SessionParameters{MatrixSize: 8, GridRows: 1, GridColumns: 1, Processes: 1, SaveMode: "parallel"}
		bad.Complete()
		assert.Error(t, bad.Validate())
	}
}
