package extract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KaramelBytes/predobs-cli/internal/normalize"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	observedPrefix  = "Observed."
	predictedPrefix = "Predicted."
)

// DefaultReserved lists tables never scanned for predicted/observed data.
var DefaultReserved = []string{"Simulations", "_Checkpoints", "_Metadata", "_Units", "_Messages"}

// DefaultGroupSuffix is appended to group names derived from databases so they
// stay distinct from legacy runs of the same model.
const DefaultGroupSuffix = "NextGen"

// RelationalExtractor reads Predicted./Observed. column pairs from
// PredictedObserved tables in an embedded SQLite database.
type RelationalExtractor struct {
	Reserved    []string
	GroupSuffix string
	Logger      *zap.Logger
}

// NewRelationalExtractor returns an extractor with default reserved tables and suffix.
func NewRelationalExtractor(logger *zap.Logger) *RelationalExtractor {
	return &RelationalExtractor{Reserved: DefaultReserved, GroupSuffix: DefaultGroupSuffix, Logger: logger}
}

// IsPredictedObservedTable reports whether a table holds predicted/observed pairs.
func IsPredictedObservedTable(name string) bool {
	return strings.Contains(name, "PredictedObserved") || strings.HasPrefix(name, "PO")
}

func (e *RelationalExtractor) Extract(ctx context.Context, artifactPath string) iter.Seq2[Observation, error] {
	return func(yield func(Observation, error) bool) {
		db, err := openReadOnly(artifactPath)
		if err != nil {
			yield(Observation{}, err)
			return
		}
		defer db.Close()
		log := nopIfNil(e.Logger).With(zap.String("artifact", artifactPath))

		tables, err := e.tableNames(ctx, db)
		if err != nil {
			yield(Observation{}, err)
			return
		}
		model := normalize.GroupName(artifactPath) + e.GroupSuffix
		for _, table := range tables {
			if !IsPredictedObservedTable(table) {
				continue
			}
			cols, data, err := readTable(ctx, db, table)
			if err != nil {
				if ctx.Err() != nil {
					yield(Observation{}, ctx.Err())
					return
				}
				log.Warn("skipping table", zap.String("table", table), zap.Error(err))
				continue
			}
			rows, err := pairColumns(artifactPath, table, cols, data, log)
			if err != nil {
				fields := []zap.Field{zap.String("table", table), zap.Error(err)}
				var mn *MalformedNumericError
				if errors.As(err, &mn) {
					fields = append(fields, zap.String("column", mn.Column), zap.Int("row", mn.Line))
				}
				log.Warn("skipping table", fields...)
				continue
			}
			for _, obs := range rows {
				obs.Source = artifactPath
				obs.Model = model
				if !yield(obs, nil) {
					return
				}
			}
		}
	}
}

func openReadOnly(path string) (*sql.DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	dsn := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

// tableNames lists user tables and views in creation order, minus internal
// sqlite_ tables and the reserved set.
func (e *RelationalExtractor) tableNames(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type IN ('table', 'view') ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()
	reserved := make(map[string]struct{}, len(e.Reserved))
	for _, r := range e.Reserved {
		reserved[r] = struct{}{}
	}
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if strings.HasPrefix(name, "sqlite_") {
			continue
		}
		if _, ok := reserved[name]; ok {
			continue
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// readTable loads a table column-wise.
func readTable(ctx context.Context, db *sql.DB, table string) ([]string, [][]any, error) {
	rows, err := db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(table))
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	data := make([][]any, len(cols))
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		for i, v := range vals {
			data[i] = append(data[i], v)
		}
	}
	return cols, data, rows.Err()
}

// pairColumns pairs every Observed. column with its Predicted. sibling. A
// malformed numeric cell anywhere in the table discards the whole table.
func pairColumns(path, table string, cols []string, data [][]any, log *zap.Logger) ([]Observation, error) {
	index := make(map[string]int, len(cols))
	for i, c := range cols {
		index[c] = i
	}
	var out []Observation
	for i, col := range cols {
		if !strings.HasPrefix(col, observedPrefix) {
			continue
		}
		predName := predictedPrefix + strings.TrimPrefix(col, observedPrefix)
		j, ok := index[predName]
		if !ok {
			log.Debug("no predicted column", zap.String("table", table),
				zap.Error(&MissingArtifactError{Path: path, Name: predName}))
			continue
		}
		observed, err := columnAsDoubles(path, col, data[i])
		if err != nil {
			return nil, err
		}
		predicted, err := columnAsDoubles(path, predName, data[j])
		if err != nil {
			return nil, err
		}
		out = append(out, pairs(predName, predicted, observed)...)
	}
	return out, nil
}

func pairs(predName string, predicted, observed []float64) []Observation {
	if len(observed) == 0 || len(predicted) != len(observed) {
		return nil
	}
	variable := strings.TrimSpace(strings.ReplaceAll(predName, predictedPrefix, ""))
	var out []Observation
	for k := range predicted {
		if math.IsNaN(predicted[k]) || math.IsNaN(observed[k]) {
			continue
		}
		out = append(out, Observation{Variable: variable, Predicted: predicted[k], Observed: observed[k]})
	}
	return out
}

// columnAsDoubles coerces driver values to float64. NULL and empty text are NaN.
func columnAsDoubles(path, column string, vals []any) ([]float64, error) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case nil:
			out[i] = math.NaN()
		case float64:
			out[i] = x
		case int64:
			out[i] = float64(x)
		case []byte:
			f, err := parseCell(path, column, i, string(x))
			if err != nil {
				return nil, err
			}
			out[i] = f
		case string:
			f, err := parseCell(path, column, i, x)
			if err != nil {
				return nil, err
			}
			out[i] = f
		default:
			return nil, &MalformedNumericError{Path: path, Column: column, Line: i + 1, Value: fmt.Sprint(x), Err: errors.New("unsupported value type")}
		}
	}
	return out, nil
}

func parseCell(path, column string, row int, s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &MalformedNumericError{Path: path, Column: column, Line: row + 1, Value: s, Err: err}
	}
	return f, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
