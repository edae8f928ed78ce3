package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T, calls *atomic.Int32, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/token"
}

func TestTokenRefresher_Refresh(t *testing.T) {
	var calls atomic.Int32
	url := tokenServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-2","token_type":"Bearer","expires_in":3600}`))
	})

	r := NewTokenRefresher("client-id", "client-secret", url, http.DefaultClient)
	before := time.Now()

	tok, err := r.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", tok.AccessToken)
	assert.Equal(t, "rt-1", tok.RefreshToken, "refresh token kept when not rotated")
	assert.WithinDuration(t, before.Add(time.Hour), tok.ExpiresAt, 5*time.Second)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTokenRefresher_Refresh_Rotated(t *testing.T) {
	var calls atomic.Int32
	url := tokenServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-3","token_type":"Bearer","expires_in":60,"refresh_token":"rt-new"}`))
	})

	tok, err := NewTokenRefresher("client-id", "client-secret", url, nil).Refresh(context.Background(), "rt-old")
	require.NoError(t, err)
	assert.Equal(t, "rt-new", tok.RefreshToken)
}

func TestTokenRefresher_Refresh_Revoked(t *testing.T) {
	var calls atomic.Int32
	url := tokenServer(t, &calls, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`))
	})

	tok, err := NewTokenRefresher("client-id", "client-secret", url, http.DefaultClient).Refresh(context.Background(), "rt-dead")
	assert.Nil(t, tok)
	require.Error(t, err)

	var retrieveErr *oauth2.RetrieveError
	require.ErrorAs(t, err, &retrieveErr)
	assert.Equal(t, "invalid_grant", retrieveErr.ErrorCode)
	assert.Equal(t, int32(1), calls.Load(), "credentials sent once, no auth-style probing")
}

func TestTokenRefresher_Refresh_NoRefreshToken(t *testing.T) {
	_, err := NewTokenRefresher("client-id", "client-secret", "http://127.0.0.1:0/token", nil).Refresh(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoRefreshToken)
}
