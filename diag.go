package cmaes

import (
	"database/sql"
	"fmt"
	"io"
	"os"
)

const (
	// TblGens is the sql table holding one row per generation: counters,
	// best fitness, sigma, condition number, and the mean position.
	TblGens = "cmaesgen"
	// TblBest is the sql table holding the best-ever point per generation.
	TblBest = "cmaesbest"
)

// Recorder observes a solver once per completed generation and once at
// termination.  Recorder errors are reported through Solver.Err but do not
// themselves stop the run.
type Recorder interface {
	Record(s *Solver) error
	Close(s *Solver, r Reason) error
}

// textRecorder appends a human-readable line per generation and writes
// resume plus final dumps at termination.  It backs diagnostics bit 1.
type textRecorder struct {
	prefix string
	f      *os.File
}

func newTextRecorder(prefix string) *textRecorder {
	return &textRecorder{prefix: prefix}
}

func (tr *textRecorder) Record(s *Solver) error {
	if tr.f == nil {
		f, err := os.Create(tr.prefix + ".log")
		if err != nil {
			return err
		}
		tr.f = f
		fmt.Fprintln(tr.f, "# gen neval fbest sigma cond mean... diagC...")
	}
	st := s.st
	fmt.Fprintf(tr.f, "%v %v %.18e %.6e %.6e", st.gen, st.neval, st.best.Val, st.sigma, st.condition())
	for _, v := range st.mean {
		fmt.Fprintf(tr.f, " %.6e", v)
	}
	for i := 0; i < st.n; i++ {
		fmt.Fprintf(tr.f, " %.6e", st.cov.At(i, i))
	}
	fmt.Fprintln(tr.f)
	return nil
}

func (tr *textRecorder) Close(s *Solver, r Reason) error {
	if tr.f != nil {
		tr.f.Close()
		tr.f = nil
	}
	if err := s.WriteSnapshot(tr.prefix + "-resume.dat"); err != nil {
		return err
	}
	f, err := os.Create(tr.prefix + "-all.dat")
	if err != nil {
		return err
	}
	defer f.Close()

	st := s.st
	fmt.Fprintf(f, "stop: %v\n", r)
	fmt.Fprintf(f, "generations: %v\nevaluations: %v\n", st.gen, st.neval)
	fmt.Fprintf(f, "sigma: %v\ncondition: %v\n", st.sigma, st.condition())
	fmt.Fprintf(f, "fbest: %v\n", st.best.Val)
	fmt.Fprintf(f, "xbest:")
	for _, v := range st.best.Pos() {
		fmt.Fprintf(f, " %v", v)
	}
	fmt.Fprintf(f, "\nmean:")
	for _, v := range st.mean {
		fmt.Fprintf(f, " %v", v)
	}
	fmt.Fprintf(f, "\ndiagC:")
	for i := 0; i < st.n; i++ {
		fmt.Fprintf(f, " %v", st.cov.At(i, i))
	}
	fmt.Fprintln(f)
	return nil
}

// dbRecorder streams per-generation rows into a database/sql backend.  The
// schema is created lazily on first record; the caller owns the connection
// and registers whatever driver it likes.
type dbRecorder struct {
	db    *sql.DB
	run   string
	ready bool
}

// NewDBRecorder returns a Recorder writing rows tagged with run id run.
func NewDBRecorder(db *sql.DB, run string) Recorder {
	return &dbRecorder{db: db, run: run}
}

func (dr *dbRecorder) initdb(n int) error {
	s := "CREATE TABLE IF NOT EXISTS " + TblGens + " (run TEXT, gen INTEGER, neval INTEGER, fbest REAL, sigma REAL, cond REAL"
	s += xdbsql("define", n)
	s += ");"
	if _, err := dr.db.Exec(s); err != nil {
		return err
	}

	s = "CREATE TABLE IF NOT EXISTS " + TblBest + " (run TEXT, gen INTEGER, fbest REAL"
	s += xdbsql("define", n)
	s += ");"
	if _, err := dr.db.Exec(s); err != nil {
		return err
	}
	dr.ready = true
	return nil
}

func (dr *dbRecorder) Record(s *Solver) error {
	st := s.st
	if !dr.ready {
		if err := dr.initdb(st.n); err != nil {
			return err
		}
	}

	// Both tables get their row or neither does.
	tx, err := dr.db.Begin()
	if err != nil {
		return err
	}

	s1 := "INSERT INTO " + TblGens + " (run,gen,neval,fbest,sigma,cond" + xdbsql("x", st.n) +
		") VALUES (?,?,?,?,?,?" + xdbsql("?", st.n) + ");"
	args := []interface{}{dr.run, st.gen, st.neval, st.best.Val, st.sigma, st.condition()}
	args = append(args, pos2iface(st.mean)...)
	if _, err := tx.Exec(s1, args...); err != nil {
		tx.Rollback()
		return err
	}

	s2 := "INSERT INTO " + TblBest + " (run,gen,fbest" + xdbsql("x", st.n) +
		") VALUES (?,?,?" + xdbsql("?", st.n) + ");"
	args = []interface{}{dr.run, st.gen, st.best.Val}
	args = append(args, pos2iface(st.best.Pos())...)
	if _, err := tx.Exec(s2, args...); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (dr *dbRecorder) Close(s *Solver, r Reason) error { return nil }

func xdbsql(op string, n int) string {
	s := ""
	for i := 0; i < n; i++ {
		switch op {
		case "?":
			s += ",?"
		case "define":
			s += fmt.Sprintf(",x%v REAL", i)
		case "x":
			s += fmt.Sprintf(",x%v", i)
		default:
			panic("invalid db op " + op)
		}
	}
	return s
}

func pos2iface(pos []float64) []interface{} {
	iface := []interface{}{}
	for _, v := range pos {
		iface = append(iface, v)
	}
	return iface
}

func (s *Solver) banner(w io.Writer) {
	fmt.Fprintf(w, "cmaes: n=%v lambda=%v mu=%v sigma=%v seed=%v\n",
		s.strat.n, s.strat.lambda, s.strat.mu, s.st.sigma, s.st.rng.Seed())
}

func (s *Solver) report(w io.Writer) {
	fmt.Fprintf(w, "cmaes: stop %v after %v generations, %v evaluations, fbest=%v\n",
		s.reason, s.st.gen, s.st.neval, s.st.best.Val)
}
