package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/korjournal/internal/repo"
	"github.com/pkordes/korjournal/testutil"
)

func TestSettingsRepo_PutAndGet(t *testing.T) {
	r := repo.NewSettingsRepo(testutil.NewTx(t))
	ctx := context.Background()

	require.NoError(t, r.PutMany(ctx, map[string]string{
		"deduction.vehicle_type":   "ownCar",
		"deduction.monthly_salary": "42000",
	}))

	got, err := r.GetMany(ctx, []string{"deduction.vehicle_type", "deduction.monthly_salary", "missing"})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"deduction.vehicle_type":   "ownCar",
		"deduction.monthly_salary": "42000",
	}, got)
}

func TestSettingsRepo_PutOverwrites(t *testing.T) {
	r := repo.NewSettingsRepo(testutil.NewTx(t))
	ctx := context.Background()

	require.NoError(t, r.PutMany(ctx, map[string]string{"k": "one"}))
	require.NoError(t, r.PutMany(ctx, map[string]string{"k": "two"}))

	got, err := r.GetMany(ctx, []string{"k"})

	require.NoError(t, err)
	assert.Equal(t, "two", got["k"])
}

func TestSettingsRepo_EmptyValueDeletes(t *testing.T) {
	r := repo.NewSettingsRepo(testutil.NewTx(t))
	ctx := context.Background()

	require.NoError(t, r.PutMany(ctx, map[string]string{"k": "v"}))
	require.NoError(t, r.PutMany(ctx, map[string]string{"k": ""}))

	got, err := r.GetMany(ctx, []string{"k"})

	require.NoError(t, err)
	assert.Empty(t, got)
}
