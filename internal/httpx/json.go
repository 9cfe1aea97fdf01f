package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxBodyBytes = 1 << 20 // 1MB

var (
	ErrNotJSON        = errors.New("content-type must be application/json")
	ErrBadBody        = errors.New("invalid request body")
	ErrTrailingJSON   = errors.New("request body must contain a single JSON object")
	ErrBodyNotPresent = errors.New("request body is empty")
)

type responseEnvelope struct {
	Data  any    `json:"data,omitempty"`
	Time  string `json:"time"`
	Error any    `json:"error,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(responseEnvelope{
		Data: v,
		Time: time.Now().UTC().Format(time.RFC3339),
	})
}

func WriteError[T any](w http.ResponseWriter, status int, errBody ErrorResponse[T]) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(responseEnvelope{
		Time:  time.Now().UTC().Format(time.RFC3339),
		Error: errBody,
	})
}

// DecodeJSON strictly decodes a single JSON object from r into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		return ErrNotJSON
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return ErrBodyNotPresent
		}
		return errors.Join(ErrBadBody, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return ErrTrailingJSON
	}
	return nil
}

// WriteDecodeError maps a DecodeJSON failure to the matching response.
func WriteDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotJSON) {
		WriteError(w, http.StatusUnsupportedMediaType, ErrorResponse[any]{
			Code:    ErrUnsupportedMedia,
			Message: "Content-Type must be application/json",
		})
		return
	}
	WriteError(w, http.StatusBadRequest, ErrorResponse[any]{
		Code:    ErrInvalidJSON,
		Message: err.Error(),
	})
}
