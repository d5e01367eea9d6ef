// Package pipeline drives one collection run: discover artifacts under a work
// directory, extract each one in turn and write the canonical table.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/predobs-cli/internal/canonical"
	"github.com/KaramelBytes/predobs-cli/internal/extract"
	"github.com/KaramelBytes/predobs-cli/internal/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mode selects the artifact format.
type Mode string

const (
	ModeAuto       Mode = "auto"
	ModeLegacy     Mode = "legacy"
	ModeRelational Mode = "relational"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeLegacy, ModeRelational:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode: %s (use auto, legacy or relational)", s)
	}
}

const (
	DefaultLegacyExt     = ".apsim"
	DefaultRelationalExt = ".db"
	DefaultLegacyOutput  = "Combined.csv"
	DefaultNextGenOutput = "CombinedNextGen.csv"
	// DefaultRunnerName is the legacy tool looked up in the nearest Model directory.
	DefaultRunnerName = "ApsimUI.exe"
	binDirName        = "Model"
)

// Config is everything a run needs. There is no ambient state.
type Config struct {
	WorkDir   string
	ExportDir string
	Mode      Mode
	// Output is the canonical file name inside ExportDir; empty picks the
	// mode's default.
	Output        string
	LegacyExt     string
	RelationalExt string

	RunnerBinary  string
	RunnerMode    string
	RunnerTimeout time.Duration

	GroupSuffix string
	Reserved    []string
}

// Failure records an artifact whose extraction failed.
type Failure struct {
	Artifact string
	Err      error
}

// Result summarizes a completed run.
type Result struct {
	RunID     string
	Mode      Mode
	Output    string
	Artifacts int
	Rows      int
	Failures  []Failure
}

// Pipeline owns the dataset writer for the duration of a run.
type Pipeline struct {
	cfg       Config
	log       *zap.Logger
	runner    extract.Runner
	extractor extract.Extractor
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// WithRunner replaces the legacy run tool.
func WithRunner(r extract.Runner) Option { return func(p *Pipeline) { p.runner = r } }

// WithExtractor replaces the extractor chosen by mode.
func WithExtractor(e extract.Extractor) Option { return func(p *Pipeline) { p.extractor = e } }

// New constructs a pipeline for cfg.
func New(cfg Config, opts ...Option) *Pipeline {
	if cfg.LegacyExt == "" {
		cfg.LegacyExt = DefaultLegacyExt
	}
	if cfg.RelationalExt == "" {
		cfg.RelationalExt = DefaultRelationalExt
	}
	if cfg.RunnerMode == "" {
		cfg.RunnerMode = extract.DefaultMode
	}
	if cfg.GroupSuffix == "" {
		cfg.GroupSuffix = extract.DefaultGroupSuffix
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "."
	}
	p := &Pipeline{cfg: cfg, log: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ResolveMode turns auto into a concrete mode: work directories of the newer
// engine carry "ApsimX" in their path.
func ResolveMode(m Mode, workDir string) Mode {
	if m != ModeAuto && m != "" {
		return m
	}
	if strings.Contains(workDir, "ApsimX") {
		return ModeRelational
	}
	return ModeLegacy
}

// Run performs one collection pass. Per-artifact extraction errors are
// recorded in Result.Failures; errors opening the work directory or writing
// the output abort the run and leave no output file.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	info, err := os.Stat(p.cfg.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("open work dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open work dir: %s is not a directory", p.cfg.WorkDir)
	}
	mode := ResolveMode(p.cfg.Mode, p.cfg.WorkDir)
	res := &Result{RunID: uuid.NewString(), Mode: mode}
	log := p.log.With(zap.String("run_id", res.RunID), zap.String("mode", string(mode)))

	ext, output := p.cfg.LegacyExt, DefaultLegacyOutput
	if mode == ModeRelational {
		ext, output = p.cfg.RelationalExt, DefaultNextGenOutput
	}
	if p.cfg.Output != "" {
		output = p.cfg.Output
	}
	res.Output = filepath.Join(p.cfg.ExportDir, output)

	artifacts, err := Discover(p.cfg.WorkDir, ext)
	if err != nil {
		return nil, err
	}
	res.Artifacts = len(artifacts)
	log.Info("discovered artifacts", zap.String("work_dir", p.cfg.WorkDir), zap.Int("count", len(artifacts)))

	if err := os.MkdirAll(p.cfg.ExportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	ex := p.extractor
	if ex == nil && mode == ModeRelational {
		ex = &extract.RelationalExtractor{Reserved: p.reserved(), GroupSuffix: p.cfg.GroupSuffix, Logger: log}
	}
	if ex == nil {
		scratch, err := os.MkdirTemp(p.cfg.ExportDir, ".predobs-run-")
		if err != nil {
			return nil, fmt.Errorf("create scratch dir: %w", err)
		}
		defer os.RemoveAll(scratch)
		runner := p.runner
		if runner == nil && len(artifacts) > 0 {
			bin, err := p.runnerBinary()
			if err != nil {
				return nil, err
			}
			runner = &extract.ExecRunner{Binary: bin, Timeout: p.cfg.RunnerTimeout, Logger: log}
		}
		ex = &extract.LegacyExtractor{Runner: runner, Mode: p.cfg.RunnerMode, OutputDir: scratch, Logger: log}
	}

	w, err := canonical.Create(res.Output)
	if err != nil {
		return nil, err
	}
	defer w.Abort()

	for i, art := range artifacts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		alog := log.With(zap.String("artifact", art), zap.Int("index", i+1), zap.Int("total", len(artifacts)))
		// Buffer per artifact so a failure mid-file contributes no rows.
		rows, err := extract.Collect(ex.Extract(ctx, art))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			alog.Warn("extraction failed", zap.Error(err))
			res.Failures = append(res.Failures, Failure{Artifact: art, Err: err})
			continue
		}
		for _, o := range rows {
			if err := w.Write(o); err != nil {
				return nil, err
			}
		}
		alog.Debug("extracted artifact", zap.Int("rows", len(rows)))
	}
	if err := w.Commit(); err != nil {
		return nil, err
	}
	res.Rows = w.Rows()
	log.Info("wrote canonical table", zap.String("output", res.Output), zap.Int("rows", res.Rows), zap.Int("failures", len(res.Failures)))
	return res, nil
}

func (p *Pipeline) reserved() []string {
	if p.cfg.Reserved != nil {
		return p.cfg.Reserved
	}
	return extract.DefaultReserved
}

func (p *Pipeline) runnerBinary() (string, error) {
	if p.cfg.RunnerBinary != "" {
		return p.cfg.RunnerBinary, nil
	}
	bin, err := utils.FindDirUp(p.cfg.WorkDir, binDirName)
	if err != nil {
		return "", fmt.Errorf("cannot find bin folder: %w", err)
	}
	return filepath.Join(bin, DefaultRunnerName), nil
}

// Discover lists files under root whose extension matches ext
// (case-insensitive), in lexical path order.
func Discover(root, ext string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".predobs-run-") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan work dir: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
