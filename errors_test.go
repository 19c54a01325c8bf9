package tilenoc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStructuredError(t *testing.T) {
	err := NewModuleError("DISPATCH", "router_1_0", 42, ErrCodeUnknownModule, "no route to npu_9_9")

	assert.Equal(t, "DISPATCH", err.Op)
	assert.Equal(t, "router_1_0", err.Module)
	assert.Equal(t, uint64(42), err.Cycle)
	assert.Equal(t, ErrCodeUnknownModule, err.Code)
	assert.Contains(t, err.Error(), "router_1_0")
	assert.Contains(t, err.Error(), "cycle=42")
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewModuleError("SCHEDULE", "mod_a", 1, ErrCodeCreditUnderflow, "credit went negative")
	b := &Error{Code: ErrCodeCreditUnderflow}

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, &Error{Code: ErrCodeUnhandledKind}))
}

func TestWrapErrorPreservesInnerContext(t *testing.T) {
	inner := NewModuleError("DISPATCH", "iod_1_0", 7, ErrCodeInvalidHeader, "nil DstCoords")
	wrapped := WrapError("OnEvent", inner)

	assert.Equal(t, "OnEvent", wrapped.Op)
	assert.Equal(t, "iod_1_0", wrapped.Module)
	assert.Equal(t, uint64(7), wrapped.Cycle)
	assert.Equal(t, ErrCodeInvalidHeader, wrapped.Code)
}

func TestWrapErrorWrapsPlainError(t *testing.T) {
	wrapped := WrapError("LOAD_CONFIG", errors.New("boom"))

	assert.Equal(t, ErrCodeConfig, wrapped.Code)
	assert.Equal(t, "boom", wrapped.Msg)
	assert.ErrorIs(t, wrapped.Unwrap(), wrapped.Inner)
}

func TestWrapErrorNilReturnsNil(t *testing.T) {
	assert.Nil(t, WrapError("OP", nil))
}

func TestIsCode(t *testing.T) {
	err := error(NewModuleError("DISPATCH", "mod", 3, ErrCodeUnhandledKind, "bad kind"))
	assert.True(t, IsCode(err, ErrCodeUnhandledKind))
	assert.False(t, IsCode(err, ErrCodeConfig))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeUnhandledKind))
}
