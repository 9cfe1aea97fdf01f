package token

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mehmetcc/cmsgate/internal/config"
	"github.com/mehmetcc/cmsgate/internal/person"
	"github.com/mehmetcc/cmsgate/internal/session"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time { return f.t }

func newTestCodec(t *testing.T, clock *fakeClock) Codec {
	t.Helper()
	c, err := NewCodec(&config.SessionConfig{
		SigningKey: testKey,
		Issuer:     "cmsgate",
		Audience:   "cms",
		KeyID:      "k1",
	}, zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, err)
	return c
}

func adminPayload() session.Payload {
	return session.Payload{
		Email:        "ada@example.com",
		Role:         person.RoleAdmin,
		ID:           42,
		SessionToken: "idp-session-1",
		Capabilities: person.RoleAdmin.Capabilities(),
	}
}

func TestNewCodecRejectsEmptyKey(t *testing.T) {
	_, err := NewCodec(&config.SessionConfig{}, zap.NewNop())
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)
	ttl := 2 * time.Hour

	tok, err := c.Encode(adminPayload(), ttl)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	for _, elapsed := range []time.Duration{0, time.Second, ttl - time.Second} {
		clock.t = time.Unix(1_700_000_000, 0).Add(elapsed)
		sess, err := c.Decode(tok)
		require.NoError(t, err, "elapsed %s", elapsed)

		assert.Equal(t, adminPayload(), sess.Payload)
		assert.Equal(t, int64(ttl/time.Second), sess.ExpiresAt-sess.IssuedAt)
		assert.Equal(t, int64(1_700_000_000), sess.IssuedAt)
		assert.True(t, sess.Caps.Has(person.CapabilityAdmin))
	}
}

func TestEncodeRejectsShortTTL(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	_, err := c.Encode(adminPayload(), 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
	_, err = c.Encode(adminPayload(), 500*time.Millisecond)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestDecodeExpired(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	clock := &fakeClock{t: issued}
	c := newTestCodec(t, clock)

	tok, err := c.Encode(adminPayload(), time.Minute)
	require.NoError(t, err)

	for _, at := range []time.Time{issued.Add(time.Minute), issued.Add(time.Minute + time.Nanosecond), issued.Add(24 * time.Hour)} {
		clock.t = at
		sess, err := c.Decode(tok)
		assert.ErrorIs(t, err, ErrExpired, "at %s", at)
		assert.Nil(t, sess)
	}
}

const base64URLAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

func TestDecodeBitFlippedSignature(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	tok, err := c.Encode(adminPayload(), time.Hour)
	require.NoError(t, err)

	dot := strings.LastIndex(tok, ".")
	require.Positive(t, dot)
	sig := tok[dot+1:]
	for i := 0; i < len(sig); i++ {
		idx := strings.IndexByte(base64URLAlphabet, sig[i])
		require.GreaterOrEqual(t, idx, 0)
		for bit := 0; bit < 6; bit++ {
			flipped := []byte(sig)
			flipped[i] = base64URLAlphabet[idx^(1<<bit)]
			sess, err := c.Decode(tok[:dot+1] + string(flipped))
			require.ErrorIs(t, err, ErrBadSignature, "char %d bit %d", i, bit)
			require.Nil(t, sess)
		}
	}
}

func TestDecodeRejectsTrailingBitsInLastChar(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	tok, err := c.Encode(adminPayload(), time.Hour)
	require.NoError(t, err)

	last := strings.IndexByte(base64URLAlphabet, tok[len(tok)-1])
	require.GreaterOrEqual(t, last, 0)
	altered := tok[:len(tok)-1] + string(base64URLAlphabet[last^1])

	sess, err := c.Decode(altered)
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.Nil(t, sess)
}

func TestDecodeTamperedClaims(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	tok, err := c.Encode(session.Payload{Email: "bob@example.com", Role: person.RoleUser, ID: 7}, time.Hour)
	require.NoError(t, err)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		UID:  7,
		Role: person.RoleAdmin,
		Caps: []string{person.CapabilityAdmin},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "cmsgate",
			Audience:  jwt.ClaimStrings{"cms"},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("some-other-key-some-other-key-!!"))
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	forgedParts := strings.Split(forged, ".")
	spliced := parts[0] + "." + forgedParts[1] + "." + parts[2]

	_, err = c.Decode(spliced)
	assert.ErrorIs(t, err, ErrBadSignature)
	_, err = c.Decode(forged)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestDecodeRejectsNoneAlg(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UID:  1,
		Role: person.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "cmsgate",
			Audience:  jwt.ClaimStrings{"cms"},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Decode(unsigned)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestDecodeMalformed(t *testing.T) {
	c := newTestCodec(t, &fakeClock{t: time.Now()})
	for _, tok := range []string{"", "garbage", "a.b", "a.b.c", "%%%.%%%.%%%"} {
		sess, err := c.Decode(tok)
		assert.ErrorIs(t, err, ErrMalformed, "token %q", tok)
		assert.Nil(t, sess)
	}
}

func TestDecodeWrongIssuer(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	other, err := NewCodec(&config.SessionConfig{SigningKey: testKey, Issuer: "someone-else", Audience: "cms"}, zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, err)
	tok, err := other.Encode(adminPayload(), time.Hour)
	require.NoError(t, err)

	_, err = newTestCodec(t, clock).Decode(tok)
	assert.ErrorIs(t, err, ErrMalformed)
}
