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
	"time"

	"github.com/notargets/godense/dmat"
	"github.com/notargets/godense/grid"
	"github.com/notargets/godense/lapacksupport"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
)

// BenchCmd represents the bench command
var BenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Time distributed matrix operations",
	Long: `
Times repeated runs of a distributed matrix operation over a process grid
and reports the throughput,

godense bench `,
	Run: func(cmd *cobra.Command, args []string) {
		mb := &ModelBench{}
		fmt.Println("bench called")
		op, _ := cmd.Flags().GetInt("op")
		mb.Op = BenchType(op)
		mb.N, _ = cmd.Flags().GetInt("n")
		mb.BlockSize, _ = cmd.Flags().GetInt("blockSize")
		mb.Processes, _ = cmd.Flags().GetInt("processes")
		mb.Iterations, _ = cmd.Flags().GetInt("iterations")
		mb.Profile, _ = cmd.Flags().GetBool("profile")
		mb.Counters, _ = cmd.Flags().GetBool("counters")
		RunBench(mb)
	},
}

func init() {
	rootCmd.AddCommand(BenchCmd)
	var (
		Op = B_Multiply
	)
	N, BlockSize, Iterations := BenchDefaults(Op)
	BenchCmd.Flags().IntP("op", "m", int(Op), "operation to time: 0 = Multiply, 1 = Cholesky")
	BenchCmd.Flags().IntP("n", "n", N, "matrix dimension")
	BenchCmd.Flags().IntP("blockSize", "b", BlockSize, "block size of the cyclic distribution")
	BenchCmd.Flags().IntP("processes", "p", 4, "number of processes in the pool")
	BenchCmd.Flags().IntP("iterations", "i", Iterations, "timed repetitions")
	BenchCmd.Flags().Bool("profile", false, "write a CPU profile for the run")
	BenchCmd.Flags().Bool("counters", false, "report hardware instruction and cycle counters (linux)")
}

type ModelBench struct {
	N, BlockSize int
	Processes    int
	Iterations   int
	Profile      bool
	Counters     bool
	Op           BenchType
}

type BenchType uint8

const (
	B_Multiply BenchType = iota
	B_Cholesky
)

var (
	def_N    = []int{256, 512}
	def_NB   = []int{16, 32}
	def_ITER = []int{5, 3}
)

func BenchDefaults(op BenchType) (N, BlockSize, Iterations int) {
	return def_N[op], def_NB[op], def_ITER[op]
}

func RunBench(mb *ModelBench) {
	if mb.Profile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}
	var (
		w = grid.NewWorld(mb.Processes)
		d = sessionMatrix(mb.N, 1)
	)
	w.Run(func(c *grid.Comm) {
		var (
			pg   = grid.NewProcessGridForMatrix(c, mb.N, mb.N, mb.BlockSize, mb.BlockSize)
			a    = dmat.NewSquare(mb.N, pg, mb.BlockSize, lapacksupport.General)
			root = c.Rank() == 0
			work func()
		)
		a.Assign(d)
		switch mb.Op {
		case B_Cholesky:
			spd := dmat.NewSquare(mb.N, pg, mb.BlockSize, lapacksupport.Symmetric)
			work = func() {
				a.CopyTo(spd)
				spd.SetProperty(lapacksupport.Symmetric)
				if err := spd.ComputeCholeskyFactorization(); err != nil {
					panic(err)
				}
			}
		case B_Multiply:
			fallthrough
		default:
			b := dmat.NewSquare(mb.N, pg, mb.BlockSize, lapacksupport.General)
			cm := dmat.NewSquare(mb.N, pg, mb.BlockSize, lapacksupport.General)
			a.CopyTo(b)
			work = func() { a.MMult(cm, b, false) }
		}
		work() // warm up
		start := time.Now()
		for i := 0; i < mb.Iterations; i++ {
			work()
		}
		elapsed := time.Since(start)
		if root {
			perIter := elapsed.Seconds() / float64(mb.Iterations)
			fmt.Printf("%8.5f\t\t= Seconds / Iteration\n", perIter)
			fmt.Printf("%8.3f\t\t= GFlops\n", benchFlops(mb.Op, mb.N)/perIter/1.e9)
		}
		if mb.Counters {
			reportCounters(work, root)
		}
	})
}

// benchFlops is the nominal floating point operation count of one iteration.
func benchFlops(op BenchType, n int) float64 {
	nf := float64(n)
	switch op {
	case B_Cholesky:
		return nf * nf * nf / 3
	default:
		return 2 * nf * nf * nf
	}
}
