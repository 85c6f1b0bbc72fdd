package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, expiresIn int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"token%d","token_type":"bearer","expires_in":%d}`, n, expiresIn)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestTokenIsCached(t *testing.T) {
	srv, calls := tokenServer(t, 3600)
	c := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})

	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token1", tok)

	tok, err = c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token1", tok)
	assert.EqualValues(t, 1, calls.Load())

	tok, err = c.ForceRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token2", tok)
}

func TestExpiredTokenIsRenewed(t *testing.T) {
	// Tokens expiring within the oauth2 expiry delta are never valid.
	srv, calls := tokenServer(t, 1)
	c := NewClientCred(Conf{ClientID: "id", ClientSecret: "secret", TokenURL: srv.URL})

	_, err := c.Token(context.Background())
	require.NoError(t, err)
	tok, err := c.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "token2", tok)
	assert.EqualValues(t, 2, calls.Load())
}

func TestTokenEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClientCred(Conf{ClientID: "id", ClientSecret: "bad", TokenURL: srv.URL})
	_, err := c.Token(context.Background())
	assert.ErrorContains(t, err, "failed to get token")
}

func TestConfValidate(t *testing.T) {
	assert.Error(t, Conf{ClientID: "id"}.Validate())
	assert.NoError(t, Conf{ClientID: "id", ClientSecret: "s", TokenURL: "http://x"}.Validate())
}
