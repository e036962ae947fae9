package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"FinTrain/internal/domain/errs"
	domrepo "FinTrain/internal/domain/repository"
	"FinTrain/internal/domain/service"
	"FinTrain/pkg/tensor"
)

// setupTestDB prepares an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err, "failed to initialize test database")
	require.NoError(t, db.AutoMigrate(&CheckpointModel{}), "failed to migrate table")
	return db
}

type paramModel struct {
	name   string
	params []*service.Parameter
}

func newParamModel(name string, sizes ...int) *paramModel {
	m := &paramModel{name: name}
	for i, n := range sizes {
		m.params = append(m.params, service.NewParameter(string(rune('a'+i)), n))
	}
	return m
}

func (m *paramModel) Name() string { return m.name }
func (m *paramModel) OutputShape() service.OutputShape { return service.ShapeScalar }
func (m *paramModel) SetTraining(bool) {}
func (m *paramModel) Forward(x tensor.Tensor) (tensor.Tensor, error) { return x, nil }
func (m *paramModel) Backward(tensor.Tensor) error { return nil }
func (m *paramModel) Parameters() []*service.Parameter { return m.params }

func TestCheckpointStore_SaveLoad(t *testing.T) {
	var store domrepo.CheckpointStore = NewCheckpointStore(setupTestDB(t))
	assert.IsType(t, &GormCheckpointStore{}, store)
	ctx := context.Background()

	src := newParamModel("linear", 3, 1)
	copy(src.params[0].Value, []float64{1, 2, 3})
	src.params[1].Value[0] = -1
	require.NoError(t, store.Save(ctx, src, "linear_w"))

	// Saving again under the same name replaces the stored values.
	src.params[0].Value[0] = 10
	require.NoError(t, store.Save(ctx, src, "linear_w"))

	dst := newParamModel("linear", 3, 1)
	require.NoError(t, store.Load(ctx, dst, "linear_w"))
	assert.Equal(t, []float64{10, 2, 3}, dst.params[0].Value)
	assert.Equal(t, []float64{-1}, dst.params[1].Value)
}

func TestCheckpointStore_LoadErrors(t *testing.T) {
	store := NewCheckpointStore(setupTestDB(t))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, newParamModel("linear", 3, 1), "w"))

	err := store.Load(ctx, newParamModel("linear", 3, 1), "nope")
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	err = store.Load(ctx, newParamModel("step_linear", 3, 1), "w")
	assert.True(t, errors.Is(err, errs.ErrShapeMismatch))

	dst := newParamModel("linear", 4, 1)
	err = store.Load(ctx, dst, "w")
	assert.True(t, errors.Is(err, errs.ErrShapeMismatch))
	assert.Equal(t, []float64{0, 0, 0, 0}, dst.params[0].Value, "nothing is copied on mismatch")
}

func TestOpenCheckpointDB(t *testing.T) {
	db, err := OpenCheckpointDB("sqlite", ":memory:")
	require.NoError(t, err)
	assert.True(t, db.Migrator().HasTable(&CheckpointModel{}))

	_, err = OpenCheckpointDB("mysql", "x")
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
}
