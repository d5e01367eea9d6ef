package extract

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func createDB(t *testing.T, name string, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return path
}

func TestRelationalExtractDropsNaNRows(t *testing.T) {
	path := createDB(t, "Wheat_Validation.db",
		`CREATE TABLE PredictedObserved ("SimulationName" TEXT, "Observed.Yield" REAL, "Predicted.Yield" REAL)`,
		`INSERT INTO PredictedObserved VALUES ('a', 10, 11), ('b', NULL, 22), ('c', 30, NULL)`,
	)
	ex := NewRelationalExtractor(nil)
	obs, err := Collect(ex.Extract(context.Background(), path))
	require.NoError(t, err)
	require.Equal(t, []Observation{
		{Source: path, Model: "wheatNextGen", Variable: "Yield", Predicted: 11, Observed: 10},
	}, obs)
}

func TestRelationalExtractTableSelection(t *testing.T) {
	path := createDB(t, "maize.db",
		`CREATE TABLE Simulations (ID INTEGER, "Observed.X" REAL, "Predicted.X" REAL)`,
		`INSERT INTO Simulations VALUES (1, 1, 1)`,
		`CREATE TABLE Report ("Observed.X" REAL, "Predicted.X" REAL)`,
		`INSERT INTO Report VALUES (2, 2)`,
		`CREATE TABLE POHarvest ("Observed.GrainWt" REAL, "Predicted.GrainWt" REAL, "Observed.Orphan" REAL)`,
		`INSERT INTO POHarvest VALUES (1.5, 1.25, 9), (2, 2.5, 9)`,
		`CREATE TABLE HarvestPredictedObserved ("Observed.LAI" INTEGER, "Predicted.LAI" TEXT)`,
		`INSERT INTO HarvestPredictedObserved VALUES (3, '3.5'), (4, '')`,
	)
	ex := NewRelationalExtractor(nil)
	obs, err := Collect(ex.Extract(context.Background(), path))
	require.NoError(t, err)
	require.Equal(t, []Observation{
		{Source: path, Model: "maizeNextGen", Variable: "GrainWt", Predicted: 1.25, Observed: 1.5},
		{Source: path, Model: "maizeNextGen", Variable: "GrainWt", Predicted: 2.5, Observed: 2},
		{Source: path, Model: "maizeNextGen", Variable: "LAI", Predicted: 3.5, Observed: 3},
	}, obs)
}

func TestRelationalExtractSkipsMalformedTable(t *testing.T) {
	path := createDB(t, "sorghum.db",
		`CREATE TABLE PredictedObserved ("Observed.Bad" TEXT, "Predicted.Bad" REAL, "Observed.Good" REAL, "Predicted.Good" REAL)`,
		`INSERT INTO PredictedObserved VALUES ('n/a', 1, 5, 6)`,
		`CREATE TABLE POOther ("Observed.Z" REAL, "Predicted.Z" REAL)`,
		`INSERT INTO POOther VALUES (7, 8)`,
	)
	ex := NewRelationalExtractor(nil)
	obs, err := Collect(ex.Extract(context.Background(), path))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	require.Equal(t, "Z", obs[0].Variable)
}

func TestRelationalExtractLogsOffendingColumn(t *testing.T) {
	path := createDB(t, "maize.db",
		`CREATE TABLE PredictedObserved ("Observed.Good" REAL, "Predicted.Good" REAL, "Observed.Bad" TEXT, "Predicted.Bad" REAL)`,
		`INSERT INTO PredictedObserved VALUES (1, 2, 3, 4)`,
		`INSERT INTO PredictedObserved VALUES (5, 6, 'n/a', 8)`,
	)
	core, logs := observer.New(zap.WarnLevel)
	ex := NewRelationalExtractor(zap.New(core))
	obs, err := Collect(ex.Extract(context.Background(), path))
	require.NoError(t, err)
	require.Empty(t, obs)

	entries := logs.FilterMessage("skipping table").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "PredictedObserved", fields["table"])
	require.Equal(t, "Observed.Bad", fields["column"])
	require.Equal(t, int64(2), fields["row"])
}

func TestRelationalExtractCustomSuffixAndReserved(t *testing.T) {
	path := createDB(t, "barley.db",
		`CREATE TABLE POSkip ("Observed.X" REAL, "Predicted.X" REAL)`,
		`INSERT INTO POSkip VALUES (1, 2)`,
		`CREATE TABLE POKeep ("Observed.X" REAL, "Predicted.X" REAL)`,
		`INSERT INTO POKeep VALUES (3, 4)`,
	)
	ex := &RelationalExtractor{Reserved: []string{"POSkip"}}
	obs, err := Collect(ex.Extract(context.Background(), path))
	require.NoError(t, err)
	require.Equal(t, []Observation{{Source: path, Model: "barley", Variable: "X", Predicted: 4, Observed: 3}}, obs)
}

func TestRelationalExtractMissingFile(t *testing.T) {
	ex := NewRelationalExtractor(nil)
	_, err := Collect(ex.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.db")))
	require.Error(t, err)
}

func TestIsPredictedObservedTable(t *testing.T) {
	require.True(t, IsPredictedObservedTable("PredictedObserved"))
	require.True(t, IsPredictedObservedTable("HarvestPredictedObserved"))
	require.True(t, IsPredictedObservedTable("POWheat"))
	require.False(t, IsPredictedObservedTable("Report"))
	require.False(t, IsPredictedObservedTable("poWheat"))
}
