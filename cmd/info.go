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
	"os"

	"github.com/notargets/godense/lapacksupport"
	"github.com/notargets/godense/matio"

	"github.com/spf13/cobra"
)

// InfoCmd represents the info command
var InfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe a saved matrix container file",
	Long: `
Prints the dimensions, storage chunking and matrix metadata of a container
file written by the factor command or the matrix Save operations,

godense info `,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err  error
			file string
		)
		if file, err = cmd.Flags().GetString("matrixFile"); err != nil {
			panic(err)
		}
		if len(file) == 0 {
			fmt.Printf("error: must supply a matrix container file (-F, --matrixFile)\n")
			os.Exit(1)
		}
		if err = RunInfo(file); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(InfoCmd)
	InfoCmd.Flags().StringP("matrixFile", "F", "", "matrix container file to describe")
}

func RunInfo(filename string) (err error) {
	var (
		f *os.File
		h matio.Header
	)
	if f, h, err = matio.Open(filename); err != nil {
		return
	}
	defer f.Close()
	var (
		state    = enumSet("/state", lapacksupport.StateMembers())
		property = enumSet("/property", lapacksupport.PropertyMembers())
	)
	if err = matio.ReadEnums(f, h, &state, &property); err != nil {
		return
	}
	fmt.Printf("\"%s\"\t\t= File\n", filename)
	fmt.Printf("[%d x %d]\t\t= Dimensions\n", h.Rows, h.Cols)
	fmt.Printf("[%d x %d]\t\t= Storage Chunks\n", h.ChunkRows, h.ChunkCols)
	fmt.Printf("[%s]\t\t= State\n", lapacksupport.State(state.Value))
	fmt.Printf("[%s]\t\t= Property\n", lapacksupport.Property(property.Value))
	return
}

func enumSet(name string, members []lapacksupport.EnumMember) (set matio.EnumSet) {
	set.Name = name
	for _, m := range members {
		set.Members = append(set.Members, matio.EnumMember{Name: m.Name, Value: m.Value})
	}
	return
}
