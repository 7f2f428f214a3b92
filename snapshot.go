package cmaes

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nsurkov/cmaes/rng"
)

// snapshotHeader states the format version, endianness and float encoding.
// Backward-incompatible changes to the payload must bump the version.
const snapshotHeader = "cmaes-snapshot v1 little-endian float64-ieee754\n"

var (
	// ErrSnapshotFormat is returned when a resume file is not a snapshot or
	// carries an incompatible version.
	ErrSnapshotFormat = errors.New("cmaes: unrecognized snapshot format")
	// ErrSnapshotMismatch is returned when a snapshot does not fit the
	// problem it is resumed into.
	ErrSnapshotMismatch = errors.New("cmaes: snapshot does not match problem")
)

// Snapshot is a complete, deterministic copy of the distribution state of a
// run.  A Solver restored from a snapshot continues bit-identically to the
// run that wrote it.
type Snapshot struct {
	N            int
	Gen          int
	Neval        int
	LastEigenGen int
	Sigma        float64
	Sigma0       float64
	Mean         []float64
	Psigma       []float64
	Pc           []float64
	D            []float64
	B            []float64 // row-major n*n
	CLower       []float64 // lower triangle of C, rows, n*(n+1)/2
	RNG          rng.State
	BestVal      float64
	BestX        []float64
	Hist         []float64 // best-of-generation history, oldest first
}

type binWriter struct {
	w   io.Writer
	err error
}

func (b *binWriter) write(v any) {
	if b.err == nil {
		b.err = binary.Write(b.w, binary.LittleEndian, v)
	}
}

type binReader struct {
	r   io.Reader
	err error
}

func (b *binReader) read(v any) {
	if b.err == nil {
		b.err = binary.Read(b.r, binary.LittleEndian, v)
	}
}

func (b *binReader) readFloats(n int) []float64 {
	v := make([]float64, n)
	b.read(v)
	return v
}

// WriteTo encodes the snapshot in its versioned binary format.
func (s *Snapshot) WriteTo(w io.Writer) error {
	if _, err := io.WriteString(w, snapshotHeader); err != nil {
		return err
	}
	bw := &binWriter{w: w}
	bw.write(int64(s.N))
	bw.write(int64(s.Gen))
	bw.write(int64(s.Neval))
	bw.write(int64(s.LastEigenGen))
	bw.write(s.Sigma)
	bw.write(s.Sigma0)
	bw.write(s.Mean)
	bw.write(s.Psigma)
	bw.write(s.Pc)
	bw.write(s.D)
	bw.write(s.B)
	bw.write(s.CLower)
	bw.write(s.RNG.Seed)
	bw.write(s.RNG.Akt)
	bw.write(s.RNG.Prev)
	bw.write(s.RNG.Table[:])
	bw.write(s.RNG.Hold)
	bw.write(s.RNG.Held)
	bw.write(s.BestVal)
	bw.write(s.BestX)
	bw.write(int64(len(s.Hist)))
	bw.write(s.Hist)
	return bw.err
}

// ReadSnapshotFrom decodes a snapshot written by WriteTo.
func ReadSnapshotFrom(r io.Reader) (*Snapshot, error) {
	head := make([]byte, len(snapshotHeader))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotFormat, err)
	}
	if string(head) != snapshotHeader {
		return nil, fmt.Errorf("%w: header %q", ErrSnapshotFormat, string(head))
	}

	br := &binReader{r: r}
	var n, gen, neval, eigenGen int64
	br.read(&n)
	br.read(&gen)
	br.read(&neval)
	br.read(&eigenGen)
	if br.err == nil && (n < 2 || n > 1<<20) {
		return nil, fmt.Errorf("%w: dimension %v", ErrSnapshotFormat, n)
	}

	snap := &Snapshot{
		N:            int(n),
		Gen:          int(gen),
		Neval:        int(neval),
		LastEigenGen: int(eigenGen),
	}
	br.read(&snap.Sigma)
	br.read(&snap.Sigma0)
	snap.Mean = br.readFloats(snap.N)
	snap.Psigma = br.readFloats(snap.N)
	snap.Pc = br.readFloats(snap.N)
	snap.D = br.readFloats(snap.N)
	snap.B = br.readFloats(snap.N * snap.N)
	snap.CLower = br.readFloats(snap.N * (snap.N + 1) / 2)
	br.read(&snap.RNG.Seed)
	br.read(&snap.RNG.Akt)
	br.read(&snap.RNG.Prev)
	br.read(snap.RNG.Table[:])
	br.read(&snap.RNG.Hold)
	br.read(&snap.RNG.Held)
	br.read(&snap.BestVal)
	snap.BestX = br.readFloats(snap.N)
	var histLen int64
	br.read(&histLen)
	if br.err == nil && (histLen < 0 || histLen > 1<<20) {
		return nil, fmt.Errorf("%w: history length %v", ErrSnapshotFormat, histLen)
	}
	snap.Hist = br.readFloats(int(histLen))
	if br.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotFormat, br.err)
	}
	return snap, nil
}

// ReadSnapshot loads a snapshot file.
func ReadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSnapshotFrom(bufio.NewReader(f))
}

// WriteSnapshot saves the snapshot to path atomically (temp file plus
// rename), so a crash mid-write never corrupts an existing snapshot.
func WriteSnapshot(path string, snap *Snapshot) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := snap.WriteTo(bw); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Snapshot captures the current distribution state of the run.
func (s *Solver) Snapshot() *Snapshot {
	st := s.st
	n := st.n
	snap := &Snapshot{
		N:            n,
		Gen:          st.gen,
		Neval:        st.neval,
		LastEigenGen: st.lastEigenGen,
		Sigma:        st.sigma,
		Sigma0:       st.sigma0,
		Mean:         append([]float64{}, st.mean...),
		Psigma:       append([]float64{}, st.psigma...),
		Pc:           append([]float64{}, st.pc...),
		D:            append([]float64{}, st.d...),
		B:            make([]float64, n*n),
		CLower:       make([]float64, 0, n*(n+1)/2),
		RNG:          st.rng.State(),
		BestVal:      st.best.Val,
		BestX:        st.best.Pos(),
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			snap.B[i*n+j] = st.b.At(i, j)
		}
		for j := 0; j <= i; j++ {
			snap.CLower = append(snap.CLower, st.cov.At(i, j))
		}
	}
	// Ring buffer linearized oldest first.
	m := s.mon
	start := m.next - m.count
	if start < 0 {
		start += len(m.hist)
	}
	for i := 0; i < m.count; i++ {
		snap.Hist = append(snap.Hist, m.hist[(start+i)%len(m.hist)])
	}
	return snap
}

// WriteSnapshot saves the current state to path.
func (s *Solver) WriteSnapshot(path string) error {
	return WriteSnapshot(path, s.Snapshot())
}

// restore overwrites the freshly initialized state with snap.
func (s *Solver) restore(snap *Snapshot) error {
	if snap.N != s.st.n {
		return fmt.Errorf("%w: snapshot dimension %v, problem dimension %v",
			ErrSnapshotMismatch, snap.N, s.st.n)
	}
	st := s.st
	st.gen = snap.Gen
	st.neval = snap.Neval
	st.lastEigenGen = snap.LastEigenGen
	st.sigma = snap.Sigma
	st.sigma0 = snap.Sigma0
	copy(st.mean, snap.Mean)
	copy(st.psigma, snap.Psigma)
	copy(st.pc, snap.Pc)
	copy(st.d, snap.D)
	n := st.n
	k := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			st.b.Set(i, j, snap.B[i*n+j])
		}
		for j := 0; j <= i; j++ {
			st.cov.SetSym(i, j, snap.CLower[k])
			k++
		}
	}
	st.rng.Restore(snap.RNG)
	st.best = NewPoint(snap.BestX, snap.BestVal)
	for _, v := range snap.Hist {
		s.mon.push(v)
	}
	return nil
}
