package params

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML session file
type SessionParameters struct {
	Title        string `yaml:"Title"`
	Processes    int    `yaml:"Processes"`
	GridRows     int    `yaml:"GridRows"`
	GridColumns  int    `yaml:"GridColumns"`
	MatrixSize   int    `yaml:"MatrixSize"`
	BlockSize    int    `yaml:"BlockSize"`
	SaveMode     string `yaml:"SaveMode"` // "serial" or "chunked"
	ChunkRows    int    `yaml:"ChunkRows"`
	ChunkColumns int    `yaml:"ChunkColumns"`
	Seed         int64  `yaml:"Seed"`
}

func (sp *SessionParameters) Parse(data []byte) error {
	return yaml.Unmarshal(data, sp)
}

// Complete fills the values a session file may omit: the process count
// defaults to the grid size, the save mode to serial with whole-column
// chunks.
func (sp *SessionParameters) Complete() {
	if sp.GridRows == 0 {
		sp.GridRows = 1
	}
	if sp.GridColumns == 0 {
		sp.GridColumns = 1
	}
	if sp.Processes == 0 {
		sp.Processes = sp.GridRows * sp.GridColumns
	}
	if sp.BlockSize == 0 || sp.BlockSize > sp.MatrixSize {
		sp.BlockSize = max(1, min(32, sp.MatrixSize))
	}
	if len(sp.SaveMode) == 0 {
		sp.SaveMode = "serial"
	}
	if sp.ChunkRows == 0 {
		sp.ChunkRows = sp.MatrixSize
	}
	if sp.ChunkColumns == 0 {
		sp.ChunkColumns = 1
	}
}

// Validate rejects a session the solver cannot run.
func (sp *SessionParameters) Validate() error {
	if sp.MatrixSize < 1 {
		return fmt.Errorf("MatrixSize must be positive, have %d", sp.MatrixSize)
	}
	if sp.GridRows < 1 || sp.GridColumns < 1 {
		return fmt.Errorf("process grid must be positive, have %dx%d", sp.GridRows, sp.GridColumns)
	}
	if sp.Processes < sp.GridRows*sp.GridColumns {
		return fmt.Errorf("a %dx%d grid needs at least %d processes, have %d",
			sp.GridRows, sp.GridColumns, sp.GridRows*sp.GridColumns, sp.Processes)
	}
	if sp.SaveMode != "serial" && sp.SaveMode != "chunked" {
		return fmt.Errorf("SaveMode must be \"serial\" or \"chunked\", have %q", sp.SaveMode)
	}
	if sp.ChunkRows < 1 || sp.ChunkRows > sp.MatrixSize ||
		sp.ChunkColumns < 1 || sp.ChunkColumns > sp.MatrixSize {
		return fmt.Errorf("save chunks %dx%d out of range for a %d matrix",
			sp.ChunkRows, sp.ChunkColumns, sp.MatrixSize)
	}
	return nil
}

func (sp *SessionParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", sp.Title)
	fmt.Printf("[%d]\t\t\t= Processes\n", sp.Processes)
	fmt.Printf("[%d x %d]\t\t\t= Process Grid\n", sp.GridRows, sp.GridColumns)
	fmt.Printf("[%d]\t\t\t= Matrix Size\n", sp.MatrixSize)
	fmt.Printf("[%d]\t\t\t= Block Size\n", sp.BlockSize)
	fmt.Printf("[%s]\t\t= Save Mode\n", sp.SaveMode)
	fmt.Printf("[%d x %d]\t\t\t= Save Chunks\n", sp.ChunkRows, sp.ChunkColumns)
	fmt.Printf("[%d]\t\t\t= Seed\n", sp.Seed)
}
