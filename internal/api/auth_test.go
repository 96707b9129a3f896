package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/npezzotti/go-messenger/internal/chat"
	"github.com/npezzotti/go-messenger/internal/config"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/stats"
	"github.com/npezzotti/go-messenger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, db database.MessengerRepository) (*MessengerApp, *chat.ChatServer) {
	t.Helper()

	logger := testutil.TestLogger(t)
	cs, err := chat.NewChatServer(logger, db, chat.NewRoomRouter(), &stats.MockProvider{})
	require.NoError(t, err)

	app, err := NewMessengerApp(logger, cs, db, &config.Config{
		ServerAddr:     "localhost:0",
		SigningKey:     []byte("test-signing-key"),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	require.NoError(t, err)

	return app, cs
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	r.Header.Set("Authorization", "Bearer abc123")
	token, err := bearerToken(r)
	assert.NoError(t, err)
	assert.Equal(t, "abc123", token)

	r = httptest.NewRequest(http.MethodGet, "/ws?token=xyz789", nil)
	token, err = bearerToken(r)
	assert.NoError(t, err)
	assert.Equal(t, "xyz789", token)

	// The header wins when both are present.
	r = httptest.NewRequest(http.MethodGet, "/ws?token=fromquery", nil)
	r.Header.Set("Authorization", "Bearer fromheader")
	token, err = bearerToken(r)
	assert.NoError(t, err)
	assert.Equal(t, "fromheader", token)

	r = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	_, err = bearerToken(r)
	assert.ErrorIs(t, err, errMissingCredential)
}

func TestAuthenticate(t *testing.T) {
	app, _ := newTestApp(t, &database.MockMessengerRepository{})

	t.Run("valid token", func(t *testing.T) {
		token, err := app.createJwtForSession("user-1", time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		userId, claims, err := app.authenticate(r)
		assert.NoError(t, err)
		assert.Equal(t, "user-1", userId)
		assert.Equal(t, "user-1", claims["sub"])
	})

	t.Run("token via query parameter", func(t *testing.T) {
		token, err := app.createJwtForSession("user-1", time.Hour)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
		userId, _, err := app.authenticate(r)
		assert.NoError(t, err)
		assert.Equal(t, "user-1", userId)
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := app.createJwtForSession("user-1", -time.Minute)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		_, _, err = app.authenticate(r)
		assert.ErrorIs(t, err, errInvalidCredential)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "user-1",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := forged.SignedString([]byte("some-other-key"))
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		r.Header.Set("Authorization", "Bearer "+tokenString)

		_, _, err = app.authenticate(r)
		assert.ErrorIs(t, err, errInvalidCredential)
	})

	t.Run("missing subject claim", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		tokenString, err := token.SignedString(app.signingKey)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		r.Header.Set("Authorization", "Bearer "+tokenString)

		_, _, err = app.authenticate(r)
		assert.ErrorIs(t, err, errInvalidCredential)
	})

	t.Run("garbage token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		r.Header.Set("Authorization", "Bearer not.a.jwt")

		_, _, err := app.authenticate(r)
		assert.ErrorIs(t, err, errInvalidCredential)
	})

	t.Run("no credential", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		_, _, err := app.authenticate(r)
		assert.ErrorIs(t, err, errMissingCredential)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)

	assert.True(t, verifyPassword(hash, "hunter2"))
	assert.False(t, verifyPassword(hash, "hunter3"))
	assert.False(t, verifyPassword("not-a-hash", "hunter2"))
}

func TestUserIdContext(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	_, ok := UserId(r.Context())
	assert.False(t, ok)

	ctx := WithUserId(r.Context(), "user-1")
	userId, ok := UserId(ctx)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userId)
}
