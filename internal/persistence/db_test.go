package persistence

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/money-model/internal/experiment"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "money.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func runSmall(t *testing.T, seed int64) *experiment.Experiment {
	t.Helper()
	exp, err := experiment.RunExperiment(experiment.Params{Trials: 4, Agents: 5, Steps: 8, Seed: seed})
	require.NoError(t, err)
	return exp
}

func TestSaveExperiment_RoundTripsSample(t *testing.T) {
	db := openTestDB(t)
	exp := runSmall(t, 3)

	require.NoError(t, db.SaveExperiment(exp))

	sample, err := db.LoadSample(exp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, exp.Sample, sample)

	row, err := db.GetExperiment(exp.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 5, row.Agents)
	assert.Equal(t, 8, row.Steps)
	assert.Equal(t, 4, row.Trials)
	assert.Equal(t, int64(3), row.Seed)
	assert.False(t, row.ExcludeSelf)
}

func TestSaveExperiment_DuplicateID(t *testing.T) {
	db := openTestDB(t)
	exp := runSmall(t, 1)
	require.NoError(t, db.SaveExperiment(exp))
	require.Error(t, db.SaveExperiment(exp))
}

func TestListExperiments(t *testing.T) {
	db := openTestDB(t)
	for seed := int64(0); seed < 3; seed++ {
		require.NoError(t, db.SaveExperiment(runSmall(t, seed)))
	}

	rows, err := db.ListExperiments(2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = db.ListExperiments(10)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestGetExperiment_Missing(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetExperiment("missing")
	require.Error(t, err)

	sample, err := db.LoadSample("missing")
	require.NoError(t, err)
	assert.Empty(t, sample)
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveMeta("last_seed", "42"))
	require.NoError(t, db.SaveMeta("last_seed", "43"))

	v, err := db.GetMeta("last_seed")
	require.NoError(t, err)
	assert.Equal(t, "43", v)
}

func TestSampleExport_RoundTrip(t *testing.T) {
	exp := runSmall(t, 11)
	path := filepath.Join(t.TempDir(), "sample.json.zst")

	require.NoError(t, WriteSample(path, NewSampleFile(exp)))

	f, err := ReadSample(path)
	require.NoError(t, err)
	assert.Equal(t, exp.ID.String(), f.ID)
	assert.Equal(t, exp.Params, f.Params)
	assert.Equal(t, exp.Sample, f.Sample)
}

func TestReadSample_Missing(t *testing.T) {
	_, err := ReadSample(filepath.Join(t.TempDir(), "none.zst"))
	require.Error(t, err)
}
