package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderPreservesMessage(t *testing.T) {
	t.Parallel()

	err := Newf("upload rejected: %s", "quota exceeded").
		Category(CategoryImageStore).
		Component("artifact").
		Build()

	assert.Equal(t, "upload rejected: quota exceeded", err.Error())
	assert.True(t, IsCategory(err, CategoryImageStore))
	assert.False(t, IsCategory(err, CategoryDatabase))
}

func TestWrappedErrorUnwraps(t *testing.T) {
	t.Parallel()

	cause := stderrors.New("connection refused")
	err := New(cause).Category(CategoryNetwork).Build()

	assert.True(t, Is(err, cause))

	var enhanced *EnhancedError
	require.True(t, As(err, &enhanced))
	assert.Equal(t, string(CategoryNetwork), enhanced.GetCategory())
}

func TestCategoryHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFound(Newf("x").Category(CategoryNotFound).Build()))
	assert.True(t, IsValidation(ValidationError("bad input")))
	assert.True(t, IsPrecondition(PreconditionError("login required")))

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(stderrors.New("plain")))
}

func TestContextAttachment(t *testing.T) {
	t.Parallel()

	err := Newf("saving scan").
		Category(CategoryDatabase).
		Context("operation", "save_scan").
		Context("scan_id", 42).
		Build()

	var enhanced *EnhancedError
	require.True(t, As(err, &enhanced))
	assert.Equal(t, "save_scan", enhanced.GetContext()["operation"])
	assert.Equal(t, 42, enhanced.GetContext()["scan_id"])
}
