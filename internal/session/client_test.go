package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{
		BaseURL:  srv.URL,
		Timeout:  2 * time.Second,
		LoginRPS: 1000,
		Burst:    1000,
	}, nil)
}

func TestClient_LoginSuccess(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)

		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@b.com", creds.Email)

		json.NewEncoder(w).Encode(map[string]any{
			"token":        "access-1",
			"refreshToken": "refresh-1",
			"user":         map[string]string{"id": "u1", "email": "a@b.com"},
			"expiresIn":    3600,
		})
	}))

	resp, err := c.Login(context.Background(), Credentials{Email: "a@b.com", Password: "x"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", resp.Token)
	assert.Equal(t, "refresh-1", resp.RefreshToken)
	require.NotNil(t, resp.User)
	assert.Equal(t, "u1", resp.User.ID)
}

func TestClient_LoginRejectedParsesMessage(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"invalid credentials"}`))
	}))

	_, err := c.Login(context.Background(), Credentials{Email: "a@b.com", Password: "bad"})
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Equal(t, "invalid credentials", authErr.Message)
}

func TestClient_ErrorBodyVariants(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "flat_message", body: `{"message":"nope"}`, want: "nope"},
		{name: "nested_error", body: `{"error":{"message":"nested nope"}}`, want: "nested nope"},
		{name: "empty_body_falls_back_to_status", body: ``, want: "Unauthorized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(tt.body))
			}))
			_, err := c.Me(context.Background(), "token")
			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tt.want, authErr.Message)
		})
	}
}

func TestClient_MeSendsBearerToken(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/me", r.URL.Path)
		require.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"user":        map[string]string{"id": "u1"},
			"permissions": []string{"trade"},
			"roles":       []string{"trader"},
		})
	}))

	resp, err := c.Me(context.Background(), "access-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"trade"}, resp.Permissions)
}

func TestClient_RefreshPostsToken(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/refresh", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refresh-1", body["refreshToken"])
		json.NewEncoder(w).Encode(map[string]string{"token": "access-2"})
	}))

	resp, err := c.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "access-2", resp.Token)
	assert.Empty(t, resp.RefreshToken, "no rotation when server omits it")
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.Me(ctx, "token")
		require.Error(t, err)
	}

	_, err := c.Me(ctx, "token")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState),
		"request is rejected before reaching the server once the breaker opens")
}
