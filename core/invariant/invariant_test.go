package invariant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreconditionPassesWhenTrue(t *testing.T) {
	assert.NotPanics(t, func() {
		Precondition(true, "should not fire")
	})
}

func TestPreconditionPanicsWhenFalse(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		msg, ok := r.(string)
		require.True(t, ok)
		assert.Contains(t, msg, "PRECONDITION VIOLATION")
		assert.Contains(t, msg, "duplicate case name \"x\"")
	}()
	Precondition(false, "duplicate case name %q", "x")
}

func TestInvariantPanicsWithTag(t *testing.T) {
	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.True(t, strings.Contains(r.(string), "INVARIANT VIOLATION"))
	}()
	Invariant(false, "ordering broken")
}

func TestNotNil(t *testing.T) {
	assert.NotPanics(t, func() { NotNil("value", "arg") })
	assert.Panics(t, func() { NotNil(nil, "arg") })
}
