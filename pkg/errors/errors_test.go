package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	e1 := New("cause1")
	e2 := New("cause2").Wrap(e1)
	e := New("dummy").Wrap(e2)
	e3 := e.Unwrap()
	assert.True(t, Is(e, e1))
	assert.True(t, Is(e, e2))
	assert.True(t, e3 == e2)
	assert.Equal(t, "dummy: cause2: cause1", e.Error())
}

func TestWrapKeepsSentinel(t *testing.T) {
	sentinel := New("sentinel")
	wrapped := sentinel.Wrap(fmt.Errorf("detail"))

	assert.True(t, Is(wrapped, sentinel))
	assert.Equal(t, "sentinel", sentinel.Error(), "the sentinel must not be mutated by Wrap")
	assert.Equal(t, "sentinel: detail", wrapped.Error())
	assert.Equal(t, "sentinel", wrapped.Message())

	other := New("sentinel")
	assert.False(t, Is(wrapped, other), "identity is by declaration, not by message")
}

func TestSub(t *testing.T) {
	class := New("precondition failed")
	busy := class.Sub("resource busy")
	err := fmt.Errorf("abort: %w", busy.Wrapf("%d open files", 3))

	assert.True(t, Is(err, busy))
	assert.True(t, Is(err, class))
	assert.False(t, Is(class.Wrap(nil), busy))

	var target *Error
	assert.True(t, As(err, &target))
	assert.Equal(t, "resource busy: 3 open files", target.Error())
}
