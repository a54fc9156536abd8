package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/magiconair/properties/assert"

	"github.com/notargets/godense/params"
)

func TestRunFactor(t *testing.T) {
	var (
		err error
	)
	fileInput := []byte(`
Title: Test Session
Processes: 4
GridRows: 2
GridColumns: 2
MatrixSize: 24
BlockSize: 4
SaveMode: chunked
ChunkRows: 8
ChunkColumns: 2
Seed: 7
`)
	var sp params.SessionParameters
	if err = sp.Parse(fileInput); err != nil {
		panic(err)
	}
	// Check the session fields made it through the YAML layer
	assert.Equal(t, sp.MatrixSize, 24)
	assert.Equal(t, sp.GridRows, 2)
	assert.Equal(t, sp.SaveMode, "chunked")
	sp.Complete()
	if err = sp.Validate(); err != nil {
		panic(err)
	}
	sp.Print()

	outFile := filepath.Join(t.TempDir(), "factor.mat")
	mf := &ModelFactor{OutFile: outFile}
	RunFactor(mf, &sp)
	if _, err = os.Stat(outFile); err != nil {
		panic(err)
	}
	if err = RunInfo(outFile); err != nil {
		panic(err)
	}
}

func TestRunBench(t *testing.T) {
	mb := &ModelBench{
		N: 16, BlockSize: 4, Processes: 2, Iterations: 1, Op: B_Multiply,
	}
	RunBench(mb)
	mb.Op = B_Cholesky
	RunBench(mb)
}
