package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractVersionFromPath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/v1/subscriptions/current", "v1"},
		{"/v1", "v1"},
		{"/v12/budgets", "v12"},
		{"/v0/x", ""},
		{"/health", ""},
		{"/video", ""},
		{"/", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, extractVersionFromPath(tt.path), tt.path)
	}
}

func TestAPIVersionResolver(t *testing.T) {
	vm := NewVersionMiddleware()
	e := echo.New()
	handler := vm.APIVersionResolver()(func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get("api_version").(string))
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/budgets/progress", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, "v1", rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/v2/budgets/progress", nil)
	rec = httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unsupported API version")
}

func TestVersionHeader_Deprecated(t *testing.T) {
	vm := NewVersionMiddleware()
	vm.Deprecate("v1", time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC), "Use v2")
	e := echo.New()
	handler := vm.VersionHeader("v1")(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions/current", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))

	assert.Equal(t, "v1", rec.Header().Get("X-API-Version"))
	assert.Equal(t, "true", rec.Header().Get("X-API-Deprecated"))
	assert.Contains(t, rec.Header().Get("Warning"), "2027-03-01")
	assert.Equal(t, "Use v2", rec.Header().Get("X-API-Message"))
}
