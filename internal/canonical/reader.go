package canonical

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/predobs-cli/internal/dataset"
	"github.com/KaramelBytes/predobs-cli/internal/extract"
	"go.uber.org/zap"
)

// Column names of the merged dataset.
const (
	ColFileName  = "FileName"
	ColModel     = "Model"
	ColVariable  = "Variable"
	ColPredicted = "Predicted"
	ColObserved  = "Observed"
)

// NewTable returns an empty merged dataset.
func NewTable() *dataset.Table {
	t, _ := dataset.New(
		dataset.Column{Name: ColFileName, Kind: dataset.String},
		dataset.Column{Name: ColModel, Kind: dataset.String},
		dataset.Column{Name: ColVariable, Kind: dataset.String},
		dataset.Column{Name: ColPredicted, Kind: dataset.Float},
		dataset.Column{Name: ColObserved, Kind: dataset.Float},
	)
	return t
}

// Append adds observations to a merged dataset created by NewTable.
func Append(t *dataset.Table, obs ...extract.Observation) error {
	for _, o := range obs {
		r := t.NewRow()
		for _, set := range []error{
			r.SetString(ColFileName, o.Source),
			r.SetString(ColModel, o.Model),
			r.SetString(ColVariable, o.Variable),
			r.SetFloat(ColPredicted, o.Predicted),
			r.SetFloat(ColObserved, o.Observed),
		} {
			if set != nil {
				return set
			}
		}
		if err := t.AddRow(r); err != nil {
			return err
		}
	}
	return nil
}

// SourceName is the dataset source id for a canonical file: its base name
// without extension.
func SourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadObservations reads one canonical file in row order. Rows that do not
// have exactly four fields are not read; their count is returned as skipped.
func ReadObservations(path string) (obs []extract.Observation, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open canonical file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	source := SourceName(path)
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read header: %w", err)
	}
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, skipped, fmt.Errorf("read %s: %w", path, err)
		}
		if len(rec) != len(Header) {
			skipped++
			continue
		}
		line, _ := r.FieldPos(0)
		pred, err := parseField(path, ColPredicted, line, rec[2])
		if err != nil {
			return nil, skipped, err
		}
		o, err := parseField(path, ColObserved, line, rec[3])
		if err != nil {
			return nil, skipped, err
		}
		obs = append(obs, extract.Observation{Source: source, Model: rec[0], Variable: rec[1], Predicted: pred, Observed: o})
	}
	return obs, skipped, nil
}

// Load merges canonical files into one dataset. Each file's rows are tagged
// with SourceName(path) in the FileName column. Skipped rows are logged as
// warnings; log may be nil.
func Load(log *zap.Logger, paths ...string) (*dataset.Table, error) {
	if log == nil {
		log = zap.NewNop()
	}
	t := NewTable()
	for _, p := range paths {
		obs, skipped, err := ReadObservations(p)
		if err != nil {
			return nil, err
		}
		if skipped > 0 {
			log.Warn("skipped rows without four fields", zap.String("file", p), zap.Int("rows", skipped))
		}
		if err := Append(t, obs...); err != nil {
			return nil, fmt.Errorf("load %s: %w", p, err)
		}
	}
	return t, nil
}

func parseField(path, column string, line int, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &extract.MalformedNumericError{Path: path, Column: column, Line: line, Value: s, Err: err}
	}
	return v, nil
}
