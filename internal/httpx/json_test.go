package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `json:"name"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		wantErr     error
	}{
		{name: "ok", contentType: "application/json", body: `{"name":"ada"}`},
		{name: "charset ok", contentType: "application/json; charset=utf-8", body: `{"name":"ada"}`},
		{name: "form", contentType: "application/x-www-form-urlencoded", body: `name=ada`, wantErr: ErrNotJSON},
		{name: "empty", contentType: "application/json", body: ``, wantErr: ErrBodyNotPresent},
		{name: "unknown field", contentType: "application/json", body: `{"nope":1}`, wantErr: ErrBadBody},
		{name: "trailing", contentType: "application/json", body: `{"name":"a"}{"name":"b"}`, wantErr: ErrTrailingJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			var dst sample
			err := DecodeJSON(httptest.NewRecorder(), req, &dst)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "ada", dst.Name)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWriteDecodeError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDecodeError(rec, ErrNotJSON)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	rec = httptest.NewRecorder()
	WriteDecodeError(rec, ErrTrailingJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	NotFound(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var body struct {
		Error ErrorResponse[any] `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, ErrNotFound, body.Error.Code)
}
