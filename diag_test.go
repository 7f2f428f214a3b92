package cmaes

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestTextRecorderFiles(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "run")
	s, err := New(Func(sphere), ones(3), Seed(42), Sigma(0.5), MaxIter(10),
		Diagnostics(DiagFiles), DiagPrefix(prefix))
	if err != nil {
		t.Fatal(err)
	}
	for s.Next() {
	}
	if s.Err() != nil {
		t.Fatal(s.Err())
	}

	logdata, err := os.ReadFile(prefix + ".log")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(logdata), "\n"), "\n")
	if len(lines) != 11 { // header plus one line per generation
		t.Errorf("expected 11 log lines, got %v", len(lines))
	}
	if !strings.HasPrefix(lines[0], "# gen neval fbest") {
		t.Errorf("unexpected log header: %q", lines[0])
	}

	snap, err := ReadSnapshot(prefix + "-resume.dat")
	if err != nil {
		t.Fatalf("resume snapshot unreadable: %v", err)
	}
	if snap.Gen != 10 || snap.N != 3 {
		t.Errorf("resume snapshot gen=%v n=%v, expected 10/3", snap.Gen, snap.N)
	}

	alldata, err := os.ReadFile(prefix + "-all.dat")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"stop: MaxIter", "generations: 10", "fbest:", "xbest:"} {
		if !strings.Contains(string(alldata), want) {
			t.Errorf("final dump missing %q:\n%s", want, alldata)
		}
	}
}

func TestDBRecorder(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "diag.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s, err := New(Func(sphere), ones(3), Seed(42), Sigma(0.5), MaxIter(8), DB(db))
	if err != nil {
		t.Fatal(err)
	}
	for s.Next() {
	}
	if s.Err() != nil {
		t.Fatal(s.Err())
	}

	var rows int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + TblGens).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 8 {
		t.Errorf("expected 8 generation rows, got %v", rows)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM " + TblBest).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 8 {
		t.Errorf("expected 8 best rows, got %v", rows)
	}

	var fbest float64
	var run string
	err = db.QueryRow("SELECT run, fbest FROM " + TblBest + " ORDER BY gen DESC LIMIT 1").
		Scan(&run, &fbest)
	if err != nil {
		t.Fatal(err)
	}
	if fbest != s.Best().Val {
		t.Errorf("last recorded fbest %v, solver reports %v", fbest, s.Best().Val)
	}
	if run != "seed42" {
		t.Errorf("expected run id seed42, got %q", run)
	}
}

func TestDBRecorderAtomicRows(t *testing.T) {
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "atomic.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	s, err := New(Func(sphere), ones(3), Seed(42), MaxIter(1))
	if err != nil {
		t.Fatal(err)
	}
	for s.Next() {
	}

	rec := NewDBRecorder(db, "t")
	if err := rec.Record(s); err != nil {
		t.Fatal(err)
	}

	// With the best table gone the second insert fails; the generation row
	// from the same record must not survive.
	if _, err := db.Exec("DROP TABLE " + TblBest); err != nil {
		t.Fatal(err)
	}
	if err := rec.Record(s); err == nil {
		t.Fatal("expected an error once the best table is missing")
	}

	var rows int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + TblGens).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 1 {
		t.Errorf("expected 1 generation row after the failed record, got %v", rows)
	}
}

func TestStdoutDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	s, err := New(Func(sphere), ones(3), Seed(42), Sigma(0.5), MaxIter(5),
		Diagnostics(DiagStdout), LogTo(&buf))
	if err != nil {
		t.Fatal(err)
	}
	for s.Next() {
	}
	out := buf.String()
	if !strings.Contains(out, "cmaes: n=3 lambda=") {
		t.Errorf("missing banner in %q", out)
	}
	if !strings.Contains(out, "stop MaxIter") {
		t.Errorf("missing final report in %q", out)
	}
}

type countingRecorder struct {
	records int
	closed  bool
	reason  Reason
}

func (c *countingRecorder) Record(s *Solver) error { c.records++; return nil }
func (c *countingRecorder) Close(s *Solver, r Reason) error {
	c.closed = true
	c.reason = r
	return nil
}

func TestCustomRecorder(t *testing.T) {
	rec := &countingRecorder{}
	s, err := New(Func(sphere), ones(3), Seed(42), MaxIter(7), WithRecorder(rec))
	if err != nil {
		t.Fatal(err)
	}
	for s.Next() {
	}
	if rec.records != 7 {
		t.Errorf("expected 7 Record calls, got %v", rec.records)
	}
	if !rec.closed || rec.reason&StopMaxIter == 0 {
		t.Errorf("Close not delivered with reason: closed=%v reason=%v", rec.closed, rec.reason)
	}
}
