package extract

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/predobs-cli/internal/normalize"
	"go.uber.org/zap"
)

// DefaultMode is the mode argument the legacy run tool expects for
// predicted/observed export.
const DefaultMode = "PredictedObserved"

// Runner runs the legacy tool for one artifact and returns the paths of the
// text files it left in outputDir.
type Runner interface {
	Run(ctx context.Context, artifactPath, mode, outputDir string) ([]string, error)
}

// ExecRunner runs the tool as `Binary <artifact> <mode> <outputDir>` and
// waits for it to exit.
type ExecRunner struct {
	Binary string
	// Timeout bounds a single run; 0 means no limit beyond ctx.
	Timeout time.Duration
	Logger  *zap.Logger
}

func (r *ExecRunner) Run(ctx context.Context, artifactPath, mode, outputDir string) ([]string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	log := nopIfNil(r.Logger)
	start := time.Now()
	cmd := exec.CommandContext(ctx, r.Binary, artifactPath, mode, outputDir)
	cmd.WaitDelay = 5 * time.Second
	out, err := cmd.CombinedOutput()
	log.Debug("run tool finished",
		zap.String("artifact", artifactPath),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("output_bytes", len(out)))
	if err != nil {
		code := -1
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		if tail := strings.TrimSpace(string(out)); tail != "" {
			log.Warn("run tool output", zap.String("artifact", artifactPath), zap.String("output", truncate(tail, 2000)))
		}
		return nil, &ExternalProcessError{Artifact: artifactPath, ExitCode: code, Err: err}
	}
	files, err := OutputFiles(outputDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &ExternalProcessError{Artifact: artifactPath}
	}
	return files, nil
}

// OutputFiles lists the *.txt files in dir in name order.
func OutputFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, fmt.Errorf("list output files: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// LegacyExtractor runs the legacy tool per artifact and reads the
// predicted/observed text files it produces.
type LegacyExtractor struct {
	Runner    Runner
	Mode      string
	OutputDir string
	// KeepOutputs leaves consumed text files in OutputDir.
	KeepOutputs bool
	Logger      *zap.Logger
}

func (e *LegacyExtractor) Extract(ctx context.Context, artifactPath string) iter.Seq2[Observation, error] {
	return func(yield func(Observation, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(Observation{}, err)
			return
		}
		mode := e.Mode
		if mode == "" {
			mode = DefaultMode
		}
		log := nopIfNil(e.Logger)
		files, err := e.Runner.Run(ctx, artifactPath, mode, e.OutputDir)
		if err != nil {
			yield(Observation{}, err)
			return
		}
		if !e.KeepOutputs {
			// Consumed or not, outputs must not leak into the next artifact's run.
			defer func() {
				for _, f := range files {
					if err := os.Remove(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
						log.Warn("remove output file", zap.String("file", f), zap.Error(err))
					}
				}
			}()
		}
		model := normalize.GroupName(artifactPath)
		for _, f := range files {
			predicted, observed, skipped, err := ReadPairs(f)
			if err != nil {
				yield(Observation{}, err)
				return
			}
			if skipped > 0 {
				log.Warn("skipped lines without two fields",
					zap.String("artifact", artifactPath),
					zap.String("file", f),
					zap.Int("lines", skipped))
			}
			variable := normalize.VariableName(f)
			log.Debug("read output file",
				zap.String("artifact", artifactPath),
				zap.String("variable", variable),
				zap.Int("pairs", len(predicted)))
			for i := range predicted {
				o := Observation{Source: artifactPath, Model: model, Variable: variable, Predicted: predicted[i], Observed: observed[i]}
				if !yield(o, nil) {
					return
				}
			}
		}
	}
}

// ReadPairs reads `observed<TAB>predicted` lines until the first empty line.
// Lines with fewer than two fields are not read and are counted in skipped;
// an empty field contributes no value to its series, which surfaces as a
// ShapeMismatchError.
func ReadPairs(path string) (predicted, observed []float64, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("open output file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		if text == "" {
			break
		}
		words := strings.Split(text, "\t")
		if len(words) < 2 {
			skipped++
			continue
		}
		for i, dst := range []*[]float64{&observed, &predicted} {
			raw := strings.TrimSpace(words[i])
			if raw == "" {
				continue
			}
			v, perr := strconv.ParseFloat(raw, 64)
			if perr != nil {
				return nil, nil, skipped, &MalformedNumericError{Path: path, Line: line, Value: raw, Err: perr}
			}
			*dst = append(*dst, v)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, skipped, fmt.Errorf("read output file: %w", err)
	}
	if len(predicted) != len(observed) {
		return nil, nil, skipped, &ShapeMismatchError{Path: path, Predicted: len(predicted), Observed: len(observed)}
	}
	return predicted, observed, skipped, nil
}

func nopIfNil(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
