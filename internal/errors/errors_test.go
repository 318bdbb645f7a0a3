package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderWrapsSentinel(t *testing.T) {
	t.Parallel()

	err := Newf("decoding upload: %w", ErrImageDecode).
		Component("imaging").
		Category(CategoryImageDecode).
		Context("input_size", 42).
		Build()

	assert.True(t, Is(err, ErrImageDecode), "enhanced error should match wrapped sentinel")
	assert.Equal(t, "imaging", err.Component)
	assert.Equal(t, string(CategoryImageDecode), err.GetCategory())

	v, ok := err.GetContext("input_size")
	require.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	a := New(NewStd("a")).Category(CategoryNetwork).Build()
	b := New(NewStd("b")).Category(CategoryNetwork).Build()
	c := New(NewStd("c")).Category(CategoryDatabase).Build()

	assert.True(t, Is(a, b), "errors with the same category should match")
	assert.False(t, Is(a, c), "errors with different categories should not match")
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	err := New(NewStd("bare")).Build()
	assert.Equal(t, ComponentUnknown, err.Component)
	assert.Equal(t, string(CategoryGeneric), err.GetCategory())
	assert.False(t, err.Timestamp.IsZero())
}

func TestUnwrapChain(t *testing.T) {
	t.Parallel()

	inner := fmt.Errorf("querying users: %w", ErrOwnerNotFound)
	err := New(inner).Category(CategoryLinkage).Build()

	assert.True(t, Is(err, ErrOwnerNotFound))
	assert.Equal(t, inner.Error(), err.Error())
}
