package cmd

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag in the command tree to its default so
// package-level flag variables do not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		_ = fl.Value.Set(fl.DefValue)
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd executes the root command with args and returns its stdout.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// runCmd is a helper to execute the root command with args.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestCLI_CollectRelational(t *testing.T) {
	home := isolateHome(t)
	work := filepath.Join(home, "ApsimX", "Tests", "Validation")
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatal(err)
	}
	db, err := sql.Open("sqlite", filepath.Join(work, "Wheat.db"))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{
		`CREATE TABLE Simulations (ID INTEGER, Name TEXT)`,
		`CREATE TABLE PredictedObserved ("Observed.Yield" REAL, "Predicted.Yield" REAL, "Observed.LAI" REAL)`,
		`INSERT INTO PredictedObserved VALUES (10, 11, 1), (20, 19, 2)`,
	} {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	_ = db.Close()

	export := filepath.Join(home, "out")
	out := runCmd(t, "collect", work, "--export-dir", export)
	if !strings.Contains(out, "✓ Collected 2 rows from 1 relational artifact(s)") {
		t.Fatalf("unexpected output: %q", out)
	}
	b, err := os.ReadFile(filepath.Join(export, "CombinedNextGen.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "FileName,VariableName,Predicted,Observed\nwheatNextGen,Yield,11,10\nwheatNextGen,Yield,19,20\n"
	if string(b) != want {
		t.Fatalf("output mismatch:\n%s", b)
	}
}

func TestCLI_CollectLegacyWithRunnerScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	home := isolateHome(t)
	work := filepath.Join(home, "Apsim", "Tests")
	writeFile(t, filepath.Join(work, "Wheat_Validation.apsim"), "<folder/>")
	tool := filepath.Join(home, "tool.sh")
	writeFile(t, tool, "#!/bin/sh\nprintf '100\\t110\\n200\\t190\\n' > \"$3/YieldPredictedvsObserved.txt\"\n")
	if err := os.Chmod(tool, 0o755); err != nil {
		t.Fatal(err)
	}
	export := filepath.Join(home, "out")
	runCmd(t, "collect", work, "--mode", "legacy", "--runner", tool, "--export-dir", export)

	b, err := os.ReadFile(filepath.Join(export, "Combined.csv"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	want := "FileName,VariableName,Predicted,Observed\nwheat,yield,110,100\nwheat,yield,190,200\n"
	if string(b) != want {
		t.Fatalf("output mismatch:\n%s", b)
	}
}

func TestCLI_CollectMissingWorkDir(t *testing.T) {
	home := isolateHome(t)
	export := filepath.Join(home, "out")
	if _, err := execCmd(t, "collect", filepath.Join(home, "missing"), "--export-dir", export); err == nil {
		t.Fatal("expected error for missing work dir")
	}
	if _, err := os.Stat(filepath.Join(export, "Combined.csv")); !os.IsNotExist(err) {
		t.Fatalf("no output expected, stat err=%v", err)
	}
}

func TestCLI_CollectRejectsBadMode(t *testing.T) {
	home := isolateHome(t)
	if _, err := execCmd(t, "collect", home, "--mode", "csv"); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func writeComparisonFixtures(t *testing.T, dir string) (string, string) {
	t.Helper()
	newer := filepath.Join(dir, "new.csv")
	older := filepath.Join(dir, "old.csv")
	writeFile(t, newer, "FileName,VariableName,Predicted,Observed\nwheat,lai,1,1\nwheat,lai,2,2\nwheat,lai,4,3\nmaize,yield,5,5\n")
	writeFile(t, older, "FileName,VariableName,Predicted,Observed\nwheat,lai,1,1\nwheat,lai,2,2\nwheat,lai,3,3\n")
	return newer, older
}

func TestCLI_StatsFlagsRegression(t *testing.T) {
	home := isolateHome(t)
	newer, older := writeComparisonFixtures(t, home)

	out := runCmd(t, "stats", older, newer, "--model", "wheat")
	if !strings.Contains(out, "| Variable | Stat | new | old | Diff |") {
		t.Fatalf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "| lai | RMSE |") || !strings.Contains(out, "**") {
		t.Fatalf("expected flagged RMSE row:\n%s", out)
	}

	if _, err := execCmd(t, "stats", older, newer, "--model", "wheat", "--strict"); err == nil {
		t.Fatal("expected --strict to fail on flagged statistics")
	}
}

func TestCLI_StatsCSVToFile(t *testing.T) {
	home := isolateHome(t)
	newer, older := writeComparisonFixtures(t, home)
	dest := filepath.Join(home, "cmp.csv")
	runCmd(t, "stats", newer, older, "--format", "csv", "-o", dest)
	b, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.HasPrefix(s, "Model,Variable,Stat,new,old,Diff,Flagged\n") {
		t.Fatalf("unexpected header:\n%s", s)
	}
	if !strings.Contains(s, "maize,yield,n,1,,,false") || !strings.Contains(s, "wheat,lai,n,3,3,0,false") {
		t.Fatalf("missing rows:\n%s", s)
	}
}

func TestCLI_StatsRejectsDuplicateSources(t *testing.T) {
	home := isolateHome(t)
	a := filepath.Join(home, "a", "Combined.csv")
	b := filepath.Join(home, "b", "Combined.csv")
	writeFile(t, a, "FileName,VariableName,Predicted,Observed\n")
	writeFile(t, b, "FileName,VariableName,Predicted,Observed\n")
	if _, err := execCmd(t, "stats", a, b); err == nil {
		t.Fatal("expected duplicate source error")
	}
}

func TestCLI_List(t *testing.T) {
	home := isolateHome(t)
	newer, older := writeComparisonFixtures(t, home)
	out := runCmd(t, "list", "models", newer, older)
	if out != "- maize\n- wheat\n" {
		t.Fatalf("models: %q", out)
	}
	out = runCmd(t, "list", "variables", newer, older, "--model", "wheat")
	if out != "- lai\n" {
		t.Fatalf("variables: %q", out)
	}
	out = runCmd(t, "list", "sources", newer, older)
	if out != "- new\n- old\n" {
		t.Fatalf("sources: %q", out)
	}
}

func TestCLI_Plot(t *testing.T) {
	home := isolateHome(t)
	newer, older := writeComparisonFixtures(t, home)
	dest := filepath.Join(home, "lai.png")
	runCmd(t, "plot", newer, "--model", "wheat", "--variable", "lai", "-o", dest)
	b, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("\x89PNG")) {
		t.Fatal("output is not a PNG")
	}
	if _, err := execCmd(t, "plot", newer, older, "--model", "wheat", "--variable", "lai"); err == nil {
		t.Fatal("expected --source to be required with two sources")
	}
}

func TestCLI_ConfigSetShow(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(home, "predobs.yaml")
	runCmd(t, "--config", path, "config", "set", "mode", "Relational")
	runCmd(t, "--config", path, "config", "set", "reserved_tables", "Simulations, _Units")
	out := runCmd(t, "--config", path, "config", "show")
	if !strings.Contains(out, "mode: relational\n") || !strings.Contains(out, "reserved_tables: Simulations,_Units\n") {
		t.Fatalf("unexpected config:\n%s", out)
	}
	if _, err := execCmd(t, "--config", path, "config", "set", "nope", "x"); err == nil {
		t.Fatal("expected unknown key error")
	}
	if _, err := execCmd(t, "--config", path, "config", "set", "mode", "csv"); err == nil {
		t.Fatal("expected invalid mode error")
	}
}
