package oidc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestSessionCodecOpensWhatItSeals(t *testing.T) {
	codec, err := newSessionCodec("session", cookieSecret)
	require.NoError(t, err)

	value, err := codec.seal(SessionData{Subject: "alice", RefreshToken: "rt"})
	require.NoError(t, err)

	data, err := codec.open(value)
	require.NoError(t, err)
	assert.Equal(t, "alice", data.Subject)
	assert.Equal(t, "rt", data.RefreshToken)
}

func TestSessionCodecRejectsForeignCookies(t *testing.T) {
	codec, err := newSessionCodec("session", cookieSecret)
	require.NoError(t, err)
	other, err := newSessionCodec("session", cookieSecret+"-rotated")
	require.NoError(t, err)

	value, err := other.seal(SessionData{Subject: "mallory"})
	require.NoError(t, err)

	_, err = codec.open(value)
	assert.Error(t, err)

	_, err = codec.open("not base64 !")
	assert.Error(t, err)

	_, err = codec.open("")
	assert.Error(t, err)
}

func TestSessionWriteSetsMaxAge(t *testing.T) {
	codec, err := newSessionCodec("session", cookieSecret)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, codec.write(rec, SessionData{Subject: "alice", RefreshTokenExpiry: time.Now().Add(time.Hour)}))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.InDelta(t, 3600, cookies[0].MaxAge, 5)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	data, err := codec.read(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", data.Subject)

	assert.Error(t, codec.write(httptest.NewRecorder(), SessionData{RefreshTokenExpiry: time.Now().Add(-time.Minute)}))
}

func TestRefreshExpiry(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	token := (&oauth2.Token{}).WithExtra(map[string]any{"refresh_expires_in": float64(1800)})
	expiry, ok := refreshExpiry(token, now)
	require.True(t, ok)
	assert.Equal(t, now.Add(30*time.Minute), expiry)

	_, ok = refreshExpiry(&oauth2.Token{}, now)
	assert.False(t, ok)

	_, ok = refreshExpiry((&oauth2.Token{}).WithExtra(map[string]any{"refresh_expires_in": "soon"}), now)
	assert.False(t, ok)
}
