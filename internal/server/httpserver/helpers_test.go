package httpserver

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFields_Form(t *testing.T) {
	body := url.Values{"email": {"a@x.com"}, "password": {"p:1"}}.Encode()
	r := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	got, err := readFields(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"email": "a@x.com", "password": "p:1"}, got)
}

func TestReadFields_JSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@x.com","password":"pw"}`))
	r.Header.Set("Content-Type", "application/json; charset=utf-8")

	got, err := readFields(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", got["email"])
	assert.Equal(t, "pw", got["password"])
}

func TestReadFields_EmptyJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("Content-Type", "application/json")

	got, err := readFields(httptest.NewRecorder(), r)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadFields_MalformedJSON(t *testing.T) {
	for _, body := range []string{`{"email":`, `{"email": 5}`, `[]`} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")

		_, err := readFields(httptest.NewRecorder(), r)
		assert.Error(t, err, body)
	}
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, http.StatusTeapot, "nope")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"nope"}`, rec.Body.String())
}
