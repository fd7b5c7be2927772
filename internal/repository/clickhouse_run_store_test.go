package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunTable(t *testing.T) {
	assert.Equal(t, "training_runs", runTable(""))
	assert.Equal(t, "salespulse.training_runs", runTable("salespulse"))
}

func TestRunSchema(t *testing.T) {
	stmts := runSchema("salespulse.training_runs")
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS salespulse.training_runs")
	assert.Contains(t, stmts[0], "train_r2     Nullable(Float64)")
	assert.Contains(t, stmts[0], "ENGINE = MergeTree")
}
