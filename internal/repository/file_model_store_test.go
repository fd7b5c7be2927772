package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"SalesPulse/internal/domain/models"
	domrepo "SalesPulse/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func artifact(id string) domrepo.ArtifactBundle {
	return domrepo.ArtifactBundle{
		ID:        id,
		Estimator: []byte(`{"trees":[]}`),
		Encoder:   []byte(`{"classes":["total"]}`),
		Metadata:  []byte(`{"bundle_id":"` + id + `"}`),
	}
}

func TestFileModelStoreEmpty(t *testing.T) {
	s := NewFileModelStore(t.TempDir(), 2, nil)

	_, found, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)

	st, err := s.Stat(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Exists)
}

func TestFileModelStoreSaveLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewFileModelStore(dir, 2, nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, artifact("b1")))

	got, found, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, artifact("b1"), got)

	st, err := s.Stat(ctx)
	require.NoError(t, err)
	assert.True(t, st.Exists)
	assert.Equal(t, "b1", st.BundleID)
	assert.Equal(t, filepath.Join(dir, "bundles", "b1", "estimator.json"), st.Path)
	assert.EqualValues(t, len(`{"trees":[]}`)+len(`{"classes":["total"]}`)+len(`{"bundle_id":"b1"}`), st.SizeBytes)

	current, err := os.ReadFile(filepath.Join(dir, "CURRENT"))
	require.NoError(t, err)
	assert.Equal(t, "b1\n", string(current))
}

func TestFileModelStoreKeepsNewestBundles(t *testing.T) {
	dir := t.TempDir()
	s := NewFileModelStore(dir, 2, nil)
	ctx := context.Background()

	for _, id := range []string{"b1", "b2", "b3"} {
		require.NoError(t, s.Save(ctx, artifact(id)))
		time.Sleep(10 * time.Millisecond)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "bundles"))
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"b2", "b3"}, names)

	got, _, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b3", got.ID)
}

func TestFileModelStoreMissingArtifactIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	s := NewFileModelStore(dir, 2, nil)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, artifact("b1")))
	require.NoError(t, os.Remove(filepath.Join(dir, "bundles", "b1", "encoder.json")))

	_, _, err := s.Load(ctx)
	assert.ErrorIs(t, err, models.ErrCorruptBundle)

	st, err := s.Stat(ctx)
	require.NoError(t, err)
	assert.False(t, st.Exists)
}

func TestFileModelStoreRejectsBadID(t *testing.T) {
	s := NewFileModelStore(t.TempDir(), 2, nil)
	assert.Error(t, s.Save(context.Background(), artifact("../escape")))
	assert.Error(t, s.Save(context.Background(), artifact("")))
}
