package token

import (
	"errors"
	"net/http"

	"github.com/mehmetcc/cmsgate/internal/session"
)

// FromRequest reads and decodes the caller's session. It returns (nil, nil)
// for an anonymous caller and (nil, err) when a token was presented but
// failed to decode.
func FromRequest(r *http.Request, store session.Store, codec Codec) (*session.Session, error) {
	raw, ok := store.Read(r)
	if !ok {
		return nil, nil
	}
	return codec.Decode(raw)
}

// FailureKind is a short label for a Decode error, used in logs and metrics.
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrBadSignature):
		return "bad_signature"
	default:
		return "malformed"
	}
}
