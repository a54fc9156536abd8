/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/notargets/godense/dmat"
	"github.com/notargets/godense/grid"
	"github.com/notargets/godense/lapacksupport"
	"github.com/notargets/godense/params"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

type ModelFactor struct {
	SessionFile string
	OutFile     string
}

// FactorCmd represents the factor command
var FactorCmd = &cobra.Command{
	Use:   "factor",
	Short: "Distribute a test matrix over a process grid and factorize it",
	Long: `
Builds a symmetric positive definite test matrix from the session parameters,
distributes it block-cyclically over the process grid, computes its Cholesky
factorization and condition number, and optionally writes the factorization
to a matrix container file,

godense factor `,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("factor called")
		mf := &ModelFactor{}
		if mf.SessionFile, err = cmd.Flags().GetString("sessionFile"); err != nil {
			panic(err)
		}
		mf.OutFile, _ = cmd.Flags().GetString("outFile")
		sp := processSession(mf)
		RunFactor(mf, sp)
	},
}

func processSession(mf *ModelFactor) (sp *params.SessionParameters) {
	var (
		err error
	)
	if len(mf.SessionFile) == 0 {
		err := fmt.Errorf("must supply a session file (-I, --sessionFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Test Session"
Processes: 4
GridRows: 2
GridColumns: 2
MatrixSize: 256
BlockSize: 16
SaveMode: chunked # Can be "serial"
ChunkRows: 64
ChunkColumns: 4
Seed: 42
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	if data, err = os.ReadFile(mf.SessionFile); err != nil {
		panic(err)
	}
	sp = &params.SessionParameters{}
	if err = sp.Parse(data); err != nil {
		panic(err)
	}
	sp.Complete()
	if err = sp.Validate(); err != nil {
		fmt.Printf("error: %s\n", err.Error())
		os.Exit(1)
	}
	return
}

func init() {
	rootCmd.AddCommand(FactorCmd)
	FactorCmd.Flags().StringP("sessionFile", "I", "", "YAML file for session parameters like:\n\t- MatrixSize\n\t- GridRows / GridColumns")
	FactorCmd.Flags().StringP("outFile", "o", "", "matrix container file to write the factorization to")
}

func RunFactor(mf *ModelFactor, sp *params.SessionParameters) {
	sp.Print()
	var (
		w = grid.NewWorld(sp.Processes)
		d = sessionMatrix(sp.MatrixSize, sp.Seed)
	)
	w.Run(func(c *grid.Comm) {
		var (
			pg   = grid.NewProcessGrid(c, sp.GridRows, sp.GridColumns)
			a    = dmat.NewSquare(sp.MatrixSize, pg, sp.BlockSize, lapacksupport.Symmetric)
			err  error
			root = c.Rank() == 0
		)
		a.Assign(d)
		aNorm := a.L1Norm()
		start := time.Now()
		if err = a.ComputeCholeskyFactorization(); err != nil {
			if root {
				fmt.Printf("error: %s\n", err.Error())
			}
			return
		}
		elapsed := time.Since(start)
		rcond := a.ReciprocalConditionNumber(aNorm)
		if root {
			fmt.Printf("%8.5f\t\t= Cholesky Time (s)\n", elapsed.Seconds())
			fmt.Printf("%8.5g\t\t= L1 Norm\n", aNorm)
			fmt.Printf("%8.5g\t\t= Reciprocal Condition Number\n", rcond)
		}
		if len(mf.OutFile) != 0 {
			if sp.SaveMode == "chunked" {
				err = a.SaveChunked(mf.OutFile, sp.ChunkRows, sp.ChunkColumns)
			} else {
				err = a.Save(mf.OutFile)
			}
			if root {
				if err != nil {
					fmt.Printf("error: %s\n", err.Error())
				} else {
					fmt.Printf("wrote factorization to %s\n", mf.OutFile)
				}
			}
		}
	})
}

// sessionMatrix builds the symmetric positive definite test matrix for a
// session: a seeded random symmetric matrix made diagonally dominant. It is
// built once and read concurrently by every process of the run.
func sessionMatrix(n int, seed int64) (d *mat.Dense) {
	var (
		rnd = rand.New(rand.NewSource(seed))
	)
	d = mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			v := rnd.Float64()
			d.Set(i, j, v)
			d.Set(j, i, v)
		}
	}
	for i := 0; i < n; i++ {
		d.Set(i, i, d.At(i, i)+float64(n))
	}
	return
}
