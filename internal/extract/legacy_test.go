package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeRunner writes canned output files instead of spawning the run tool.
type fakeRunner struct {
	files map[string]string
	err   error
	calls []string
}

func (f *fakeRunner) Run(_ context.Context, artifactPath, mode, outputDir string) ([]string, error) {
	f.calls = append(f.calls, artifactPath+"|"+mode)
	if f.err != nil {
		return nil, f.err
	}
	for name, body := range f.files {
		if err := os.WriteFile(filepath.Join(outputDir, name), []byte(body), 0o644); err != nil {
			return nil, err
		}
	}
	return OutputFiles(outputDir)
}

func TestLegacyExtract(t *testing.T) {
	out := t.TempDir()
	runner := &fakeRunner{files: map[string]string{
		"LAIPredictedvsObserved.txt": "1.5\t1.4\n2.5\t2.75\n\nignored\tafter blank\n",
		"Yield.txt":                  "100\t110\nheader only\n300\t280\n",
	}}
	ex := &LegacyExtractor{Runner: runner, OutputDir: out}
	obs, err := Collect(ex.Extract(context.Background(), "/runs/Wheat_Validation.apsim"))
	require.NoError(t, err)
	require.Equal(t, []Observation{
		{Source: "/runs/Wheat_Validation.apsim", Model: "wheat", Variable: "lai", Predicted: 1.4, Observed: 1.5},
		{Source: "/runs/Wheat_Validation.apsim", Model: "wheat", Variable: "lai", Predicted: 2.75, Observed: 2.5},
		{Source: "/runs/Wheat_Validation.apsim", Model: "wheat", Variable: "yield", Predicted: 110, Observed: 100},
		{Source: "/runs/Wheat_Validation.apsim", Model: "wheat", Variable: "yield", Predicted: 280, Observed: 300},
	}, obs)
	require.Equal(t, []string{"/runs/Wheat_Validation.apsim|" + DefaultMode}, runner.calls)

	left, err := OutputFiles(out)
	require.NoError(t, err)
	require.Empty(t, left, "consumed output files are removed")
}

func TestLegacyExtractIsRestartable(t *testing.T) {
	runner := &fakeRunner{files: map[string]string{"Biomass.txt": "1\t2\n"}}
	ex := &LegacyExtractor{Runner: runner, OutputDir: t.TempDir()}
	seq := ex.Extract(context.Background(), "maize.apsim")
	first, err := Collect(seq)
	require.NoError(t, err)
	second, err := Collect(seq)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, runner.calls, 2)
}

func TestLegacyExtractShapeMismatch(t *testing.T) {
	runner := &fakeRunner{files: map[string]string{"Biomass.txt": "1\t2\n3\t\n"}}
	ex := &LegacyExtractor{Runner: runner, OutputDir: t.TempDir()}
	_, err := Collect(ex.Extract(context.Background(), "maize.apsim"))
	var sm *ShapeMismatchError
	require.True(t, errors.As(err, &sm), "got %v", err)
	require.Equal(t, 1, sm.Predicted)
	require.Equal(t, 2, sm.Observed)
}

func TestLegacyExtractFailureCleansOutputs(t *testing.T) {
	out := t.TempDir()
	runner := &fakeRunner{files: map[string]string{
		"A.txt": "1\t2\n3\t\n",
		"B.txt": "1\t2\n",
	}}
	ex := &LegacyExtractor{Runner: runner, OutputDir: out}
	_, err := Collect(ex.Extract(context.Background(), "maize.apsim"))
	require.Error(t, err)
	left, err := OutputFiles(out)
	require.NoError(t, err)
	require.Empty(t, left)
}

func TestReadPairsCountsSkippedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Yield.txt")
	require.NoError(t, os.WriteFile(path, []byte("header only\n1\t2\nnote\n3\t4\n\ntrailing\n"), 0o644))
	predicted, observed, skipped, err := ReadPairs(path)
	require.NoError(t, err)
	require.Equal(t, []float64{2, 4}, predicted)
	require.Equal(t, []float64{1, 3}, observed)
	require.Equal(t, 2, skipped)
}

func TestLegacyExtractLogsSkippedLines(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	runner := &fakeRunner{files: map[string]string{"Yield.txt": "junk\n1\t2\n"}}
	ex := &LegacyExtractor{Runner: runner, OutputDir: t.TempDir(), Logger: zap.New(core)}
	obs, err := Collect(ex.Extract(context.Background(), "wheat.apsim"))
	require.NoError(t, err)
	require.Len(t, obs, 1)

	entries := logs.FilterMessage("skipped lines without two fields").All()
	require.Len(t, entries, 1)
	require.Equal(t, int64(1), entries[0].ContextMap()["lines"])
}

func TestLegacyExtractMalformedNumber(t *testing.T) {
	runner := &fakeRunner{files: map[string]string{"Biomass.txt": "1\t2\n3\tfour\n"}}
	ex := &LegacyExtractor{Runner: runner, OutputDir: t.TempDir()}
	_, err := Collect(ex.Extract(context.Background(), "maize.apsim"))
	var mn *MalformedNumericError
	require.True(t, errors.As(err, &mn), "got %v", err)
	require.Equal(t, 2, mn.Line)
	require.Equal(t, "four", mn.Value)
}

func TestLegacyExtractRunnerError(t *testing.T) {
	runner := &fakeRunner{err: &ExternalProcessError{Artifact: "maize.apsim", ExitCode: 2, Err: errors.New("boom")}}
	ex := &LegacyExtractor{Runner: runner, OutputDir: t.TempDir()}
	_, err := Collect(ex.Extract(context.Background(), "maize.apsim"))
	var pe *ExternalProcessError
	require.True(t, errors.As(err, &pe))
	require.Equal(t, 2, pe.ExitCode)
	require.Contains(t, err.Error(), "maize.apsim")
}

func TestLegacyExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{}
	ex := &LegacyExtractor{Runner: runner, OutputDir: t.TempDir()}
	_, err := Collect(ex.Extract(ctx, "maize.apsim"))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, runner.calls)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExecRunner(t *testing.T) {
	bin := writeScript(t, `printf '1\t2\n' > "$3/Yield.txt"`)
	out := t.TempDir()
	r := &ExecRunner{Binary: bin, Timeout: 10 * time.Second}
	files, err := r.Run(context.Background(), "wheat.apsim", DefaultMode, out)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(out, "Yield.txt")}, files)
}

func TestExecRunnerFailures(t *testing.T) {
	t.Run("exit code", func(t *testing.T) {
		bin := writeScript(t, "echo broken >&2\nexit 3")
		r := &ExecRunner{Binary: bin}
		_, err := r.Run(context.Background(), "wheat.apsim", DefaultMode, t.TempDir())
		var pe *ExternalProcessError
		require.True(t, errors.As(err, &pe))
		require.Equal(t, 3, pe.ExitCode)
		require.Equal(t, "wheat.apsim", pe.Artifact)
	})
	t.Run("no output", func(t *testing.T) {
		bin := writeScript(t, "exit 0")
		r := &ExecRunner{Binary: bin}
		_, err := r.Run(context.Background(), "wheat.apsim", DefaultMode, t.TempDir())
		var pe *ExternalProcessError
		require.True(t, errors.As(err, &pe))
		require.Equal(t, 0, pe.ExitCode)
		require.True(t, strings.Contains(err.Error(), "no output"))
	})
	t.Run("timeout", func(t *testing.T) {
		bin := writeScript(t, "exec sleep 5")
		r := &ExecRunner{Binary: bin, Timeout: 100 * time.Millisecond}
		_, err := r.Run(context.Background(), "wheat.apsim", DefaultMode, t.TempDir())
		var pe *ExternalProcessError
		require.True(t, errors.As(err, &pe))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
