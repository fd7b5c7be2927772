package repository

import (
	"context"
	"testing"
	"time"

	"SalesPulse/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunStore(t *testing.T) *SQLiteRunStore {
	t.Helper()
	s, err := NewSQLiteRunStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteRunStoreRecent(t *testing.T) {
	s := newTestRunStore(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r2 := 0.83
	for i := 0; i < 3; i++ {
		run := models.TrainingRun{
			ID:          string(rune('a' + i)),
			BundleID:    "bundle",
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
			FinishedAt:  base.Add(time.Duration(i)*time.Hour + time.Minute),
			Records:     100 + i,
			Samples:     30,
			DateStart:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			DateEnd:     time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
			NEstimators: 100,
			MaxDepth:    10,
		}
		if i == 2 {
			run.TrainR2 = &r2
		}
		require.NoError(t, s.Record(ctx, run))
	}

	runs, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "b", runs[1].ID)
	require.NotNil(t, runs[0].TrainR2)
	assert.InDelta(t, 0.83, *runs[0].TrainR2, 1e-12)
	assert.Nil(t, runs[0].TestR2)
	assert.Nil(t, runs[1].TrainR2)
	assert.Equal(t, base.Add(2*time.Hour+time.Minute), runs[0].FinishedAt)
	assert.Equal(t, 102, runs[0].Records)
}

func TestSQLiteRunStoreEmpty(t *testing.T) {
	runs, err := newTestRunStore(t).Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLiteRunStoreDuplicateID(t *testing.T) {
	s := newTestRunStore(t)
	run := models.TrainingRun{ID: "x", BundleID: "b"}
	require.NoError(t, s.Record(context.Background(), run))
	assert.Error(t, s.Record(context.Background(), run))
}
