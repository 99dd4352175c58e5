package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCatalogNotFoundBody checks the rendered body carries the offending code.
func TestCatalogNotFoundBody(t *testing.T) {
	err := CatalogNotFound("ru.nptst-MAIN-9")

	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
	body := err.Body()["error"].(map[string]any)
	assert.Equal(t, CodeCatalogNotFound, body["code"])

	ctx := body["context"].(map[string]any)
	assert.Equal(t, "Catalog is not found.", ctx["description"])
	assert.Equal(t, "ru.nptst-MAIN-9", ctx["catalog_code"])
}

// TestAsUnwrapsWrappedErrors checks errors.As works through fmt wrapping.
func TestAsUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", TitleNotFound("ru.missing"))

	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeTitleNotFound, e.Code)
	assert.True(t, HasCode(wrapped, CodeTitleNotFound))
	assert.False(t, HasCode(errors.New("plain"), CodeTitleNotFound))
}

// TestInternalKeepsCause checks the cause is reachable but not serialized.
func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause)

	assert.ErrorIs(t, err, cause)
	ctx := err.Body()["error"].(map[string]any)["context"].(map[string]any)
	assert.NotContains(t, ctx, "cause")
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus)
}

// TestWithStatusOverrides checks the republish path can use 404.
func TestWithStatusOverrides(t *testing.T) {
	err := CatalogNotFound("x").WithStatus(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
}
