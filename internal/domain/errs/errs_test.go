package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("build dataset: %w", DataQuality("label", 40, "close is zero"))

	assert.True(t, errors.Is(err, ErrDataQuality))
	assert.False(t, errors.Is(err, ErrConfiguration))
	assert.Equal(t, "data_quality", KindOf(err))
	assert.Contains(t, err.Error(), "index=40")
}

func TestInPhaseAnnotates(t *testing.T) {
	err := InPhase(ShapeMismatch("rmse", "rank 4"), "valid", 3)

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "valid", e.Phase)
	assert.Equal(t, 3, e.Index)
	assert.Equal(t, "shape mismatch: rmse [phase=valid index=3]: rank 4", err.Error())

	plain := InPhase(errors.New("boom"), "train", 1)
	assert.EqualError(t, plain, "phase train batch 1: boom")
	assert.Equal(t, "internal", KindOf(plain))
	assert.Nil(t, InPhase(nil, "train", 0))

	wrapped := InPhase(fmt.Errorf("example 7: %w", DataQuality("encode", 12, "nan")), "train", 2)
	assert.True(t, errors.Is(wrapped, ErrDataQuality))
	assert.Equal(t, "phase train batch 2: example 7: data quality error: encode [index=12]: nan", wrapped.Error())
}
