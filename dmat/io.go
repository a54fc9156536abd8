package dmat

import (
	"fmt"
	"os"

	"github.com/notargets/godense/grid"
	"github.com/notargets/godense/lapacksupport"
	"github.com/notargets/godense/matio"
)

// Save writes the matrix, its state and its property to a container file
// with the default chunk shape of one full column. With more than one
// process the column ranges are written concurrently; a single process
// writes the whole file. Collective.
func (m *Matrix) Save(filename string) error {
	return m.SaveChunked(filename, m.rows, 1)
}

// SaveChunked is Save with an explicit chunk shape recorded in the file.
func (m *Matrix) SaveChunked(filename string, chunkRows, chunkCols int) error {
	if chunkRows < 1 || chunkRows > m.rows {
		panic(fmt.Errorf("chunk rows %d out of range [1,%d]", chunkRows, m.rows))
	}
	if chunkCols < 1 || chunkCols > m.cols {
		panic(fmt.Errorf("chunk columns %d out of range [1,%d]", chunkCols, m.cols))
	}
	if m.grid.Comm().Size() > 1 {
		return m.saveParallel(filename, chunkRows, chunkCols)
	}
	return m.saveSerial(filename, chunkRows, chunkCols)
}

// Load overwrites the matrix, its state and its property from a container
// file written by Save. The stored extents must match exactly. Collective.
func (m *Matrix) Load(filename string) error {
	if m.grid.Comm().Size() > 1 {
		return m.loadParallel(filename)
	}
	return m.loadSerial(filename)
}

func (m *Matrix) saveSerial(filename string, chunkRows, chunkCols int) error {
	tmp := m.newRootMirror()
	m.CopyTo(tmp)
	var err error
	if tmp.grid.IsActive() {
		err = writeContainer(filename, tmp, chunkRows, chunkCols)
	}
	return m.agreeError(err, "save")
}

// saveParallel redistributes onto a 1 x P grid so that each process owns
// one contiguous column range, then writes the ranges concurrently. The
// root writes the header first and the metadata section last.
func (m *Matrix) saveParallel(filename string, chunkRows, chunkCols int) error {
	comm := m.grid.Comm()
	nb := ceilDiv(m.cols, comm.Size())
	pg := grid.NewProcessGrid(comm, 1, comm.Size())
	tmp := New(m.rows, m.cols, pg, m.rows, nb, m.property)
	m.CopyTo(tmp)

	h := matio.Header{Rows: m.rows, Cols: m.cols, ChunkRows: chunkRows, ChunkCols: chunkCols}
	var err error
	if comm.Rank() == 0 {
		var f *os.File
		if f, err = matio.Create(filename, h); err == nil {
			err = f.Close()
		}
	}
	// agreement doubles as the barrier: the file exists before anyone
	// writes into it
	if err := m.agreeError(err, "save"); err != nil {
		return err
	}

	counts := comm.AllgatherInt(tmp.localCols)
	first := 0
	for r := 0; r < comm.Rank(); r++ {
		first += counts[r]
	}
	if tmp.localCols > 0 {
		var f *os.File
		if f, err = os.OpenFile(filename, os.O_WRONLY, 0); err == nil {
			err = matio.WriteColumns(f, h, first, tmp.values)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
	}
	if err := m.agreeError(err, "save"); err != nil {
		return err
	}

	if comm.Rank() == 0 {
		var f *os.File
		if f, err = os.OpenFile(filename, os.O_WRONLY, 0); err == nil {
			err = matio.WriteEnums(f, h, stateEnumSet(tmp.state), propertyEnumSet(tmp.property))
			if cerr := f.Close(); err == nil {
				err = cerr
			}
		}
	}
	return m.agreeError(err, "save")
}

func (m *Matrix) loadSerial(filename string) error {
	tmp := m.newRootMirror()
	var err error
	meta := []int{0, 0}
	if tmp.grid.IsActive() {
		err = readContainer(filename, tmp, meta)
	}
	if err := m.agreeError(err, "load"); err != nil {
		return err
	}
	tmp.grid.SendToInactiveInts(meta)
	tmp.state = lapacksupport.State(meta[0])
	tmp.property = lapacksupport.Property(meta[1])
	tmp.CopyTo(m)
	return nil
}

// loadParallel mirrors saveParallel: every process opens the file, reads
// its own column range and the metadata section, and the content is
// redistributed onto the caller's grid.
func (m *Matrix) loadParallel(filename string) error {
	comm := m.grid.Comm()
	nb := ceilDiv(m.cols, comm.Size())
	pg := grid.NewProcessGrid(comm, 1, comm.Size())
	tmp := New(m.rows, m.cols, pg, m.rows, nb, lapacksupport.General)

	counts := comm.AllgatherInt(tmp.localCols)
	first := 0
	for r := 0; r < comm.Rank(); r++ {
		first += counts[r]
	}

	meta := []int{0, 0}
	err := readColumnRange(filename, tmp, first, meta)
	if err := m.agreeError(err, "load"); err != nil {
		return err
	}
	tmp.state = lapacksupport.State(meta[0])
	tmp.property = lapacksupport.Property(meta[1])
	tmp.CopyTo(m)
	return nil
}

// writeContainer writes the whole file from a fully local mirror.
func writeContainer(filename string, tmp *Matrix, chunkRows, chunkCols int) error {
	h := matio.Header{Rows: tmp.rows, Cols: tmp.cols, ChunkRows: chunkRows, ChunkCols: chunkCols}
	f, err := matio.Create(filename, h)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := matio.WriteColumns(f, h, 0, tmp.values); err != nil {
		return err
	}
	return matio.WriteEnums(f, h, stateEnumSet(tmp.state), propertyEnumSet(tmp.property))
}

// readContainer reads the whole file into a fully local mirror.
func readContainer(filename string, tmp *Matrix, meta []int) error {
	f, h, err := matio.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	if h.Rows != tmp.rows || h.Cols != tmp.cols {
		return fmt.Errorf("load: file holds a %dx%d matrix, want %dx%d", h.Rows, h.Cols, tmp.rows, tmp.cols)
	}
	if err := matio.ReadColumns(f, h, 0, h.Cols, tmp.values); err != nil {
		return err
	}
	return readMeta(f, h, meta)
}

// readColumnRange reads this process' column range of the payload plus
// the metadata section.
func readColumnRange(filename string, tmp *Matrix, firstCol int, meta []int) error {
	f, h, err := matio.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	if h.Rows != tmp.rows || h.Cols != tmp.cols {
		return fmt.Errorf("load: file holds a %dx%d matrix, want %dx%d", h.Rows, h.Cols, tmp.rows, tmp.cols)
	}
	if tmp.localCols > 0 {
		if err := matio.ReadColumns(f, h, firstCol, tmp.localCols, tmp.values); err != nil {
			return err
		}
	}
	return readMeta(f, h, meta)
}

func readMeta(f *os.File, h matio.Header, meta []int) error {
	st := stateEnumSet(lapacksupport.Matrix)
	pr := propertyEnumSet(lapacksupport.General)
	if err := matio.ReadEnums(f, h, &st, &pr); err != nil {
		return err
	}
	meta[0], meta[1] = st.Value, pr.Value
	return nil
}

// agreeError makes an error outcome collective: if any process failed,
// every process returns an error.
func (m *Matrix) agreeError(err error, op string) error {
	flag := 0
	if err != nil {
		flag = 1
	}
	for _, other := range m.grid.Comm().AllgatherInt(flag) {
		if other != 0 {
			if err != nil {
				return err
			}
			return fmt.Errorf("%s %dx%d matrix: failed on another process", op, m.rows, m.cols)
		}
	}
	return nil
}

func stateEnumSet(v lapacksupport.State) matio.EnumSet {
	ms := lapacksupport.StateMembers()
	out := make([]matio.EnumMember, len(ms))
	for i, em := range ms {
		out[i] = matio.EnumMember{Name: em.Name, Value: em.Value}
	}
	return matio.EnumSet{Name: "/state", Members: out, Value: int(v)}
}

func propertyEnumSet(v lapacksupport.Property) matio.EnumSet {
	ms := lapacksupport.PropertyMembers()
	out := make([]matio.EnumMember, len(ms))
	for i, em := range ms {
		out[i] = matio.EnumMember{Name: em.Name, Value: em.Value}
	}
	return matio.EnumSet{Name: "/property", Members: out, Value: int(v)}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
