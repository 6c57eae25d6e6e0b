package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRunRepository(t *testing.T) {
	ctx := context.Background()
	db := NewMemoryRunDB()

	first, err := db.SaveRun(ctx, Run{
		Method:     "hazen-williams",
		Status:     "converged",
		Iterations: 7,
		Converged:  true,
		Result:     []byte(`{"iterations":7}`),
		CreatedAt:  time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first)

	second, err := db.SaveRun(ctx, Run{Method: "darcy-weisbach", Status: "not_converged"})
	require.NoError(t, err)

	run, err := db.GetRun(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 7, run.Iterations)
	assert.JSONEq(t, `{"iterations":7}`, string(run.Result))

	list, err := db.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second, list[0].ID, "newest run first")
	assert.True(t, list[1].Converged)

	list, err = db.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestMemoryRunRepositoryNotFound(t *testing.T) {
	_, err := NewMemoryRunDB().GetRun(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
