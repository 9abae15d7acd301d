package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/OraMead/notehub-back/internal/service"
)

func TestCensorBody(t *testing.T) {
	b := `{
		"email": "email@email.com",
		"password": "123456789123"
	}`

	got := censorBody([]byte(b))
	assert.JSONEq(t, `{
		"email": "email@email.com",
		"password": "$censored"
	}`, string(got))
}

func TestCensorBodyNonJSON(t *testing.T) {
	b := []byte("not json")
	assert.Equal(t, b, censorBody(b))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Ada", titleCase("ada"))
	assert.Equal(t, "Ada Mary", titleCase("ada mary"))
	assert.Equal(t, "Lovelace", titleCase("LOVELACE"))
	assert.Equal(t, "", titleCase(""))
}

func TestMapServiceError(t *testing.T) {
	e := echo.New()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{"conflict", errors.Wrap(service.ErrConflict, "grant already exists"), http.StatusConflict},
		{"not authorized", errors.Wrap(service.ErrNotAuthorized, "delete note"), http.StatusForbidden},
		{"storage", errors.Wrap(service.ErrStorage, "write blob"), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			err := mapServiceError(c, tc.err)
			he, ok := err.(*echo.HTTPError)
			assert.True(t, ok)
			assert.Equal(t, tc.want, he.Code)
		})
	}
}

func TestMapServiceErrorNotFound(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := mapServiceError(c, errors.Wrap(service.ErrNotFound, "note"))
	assert.Nil(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
