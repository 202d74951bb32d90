package meli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(tokenURL, apiBaseURL string) *Client {
	return &Client{
		ClientID:     "app-id",
		ClientSecret: "app-secret",
		RedirectURI:  "https://broker.example/auth/callback",
		AuthorizeURL: defaultAuthorizeURL,
		TokenURL:     tokenURL,
		APIBaseURL:   apiBaseURL,
		HTTPClient:   &http.Client{Timeout: 5 * time.Second},
	}
}

func TestAuthorizeURLWithState(t *testing.T) {
	c := newTestClient("https://api.example/oauth/token", "https://api.example")

	raw, err := c.AuthorizeURLWithState("nonce-1")
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "app-id", q.Get("client_id"))
	assert.Equal(t, "https://broker.example/auth/callback", q.Get("redirect_uri"))
	assert.Equal(t, DefaultScopes, q.Get("scope"))
	assert.Equal(t, "nonce-1", q.Get("state"))
}

func TestAuthorizeURLWithState_MissingClientID(t *testing.T) {
	c := newTestClient("https://api.example/oauth/token", "https://api.example")
	c.ClientID = ""

	_, err := c.AuthorizeURLWithState("nonce")
	require.Error(t, err)
}

func TestExchangeCode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "ABC123", r.PostForm.Get("code"))
		assert.Equal(t, "app-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "app-secret", r.PostForm.Get("client_secret"))
		assert.Equal(t, "https://broker.example/auth/callback", r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a1","refresh_token":"r1","token_type":"bearer","expires_in":21600,"scope":"read write"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	tok, err := c.ExchangeCode(context.Background(), "ABC123")
	require.NoError(t, err)
	assert.Equal(t, "a1", tok.AccessToken)
	assert.Equal(t, "r1", tok.RefreshToken)
	assert.Equal(t, 21600, tok.ExpiresIn)
}

func TestExchangeCode_ProviderRejects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.ExchangeCode(context.Background(), "expired-code")
	require.Error(t, err)

	var exchange *AuthExchangeError
	require.ErrorAs(t, err, &exchange)
	assert.Equal(t, http.StatusBadRequest, exchange.Status)
}

func TestExchangeCode_EmptyCode(t *testing.T) {
	c := newTestClient("https://api.example/oauth/token", "https://api.example")
	_, err := c.ExchangeCode(context.Background(), " ")
	require.Error(t, err)
}

func TestExchangeRefreshToken_RotatesRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a2","refresh_token":"r2","expires_in":21600}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	tok, err := c.ExchangeRefreshToken(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, "a2", tok.AccessToken)
	assert.Equal(t, "r2", tok.RefreshToken)
}

func TestFetchResource_PreservesStatus(t *testing.T) {
	tests := []struct {
		status       int
		unauthorized bool
	}{
		{status: http.StatusUnauthorized, unauthorized: true},
		{status: http.StatusNotFound, unauthorized: false},
		{status: http.StatusInternalServerError, unauthorized: false},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		c := newTestClient(srv.URL, srv.URL)
		_, err := c.FetchResource(context.Background(), srv.URL+"/orders/1", "token")
		require.Error(t, err)

		var upstream *UpstreamError
		require.ErrorAs(t, err, &upstream)
		assert.Equal(t, tt.status, upstream.Status)
		assert.Equal(t, tt.unauthorized, upstream.IsUnauthorized())
		srv.Close()
	}
}

func TestFetchResource_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":123}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	body, err := c.FetchResource(context.Background(), srv.URL+"/orders/123", "a1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":123}`, string(body))
}

func TestFetchIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":999,"nickname":"SELLER999","email":"seller@example.com","site_id":"MLA"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	identity, err := c.FetchIdentity(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "999", identity.UserID)
	assert.Equal(t, "SELLER999", identity.Nickname)
	assert.Equal(t, "MLA", identity.SiteID)
	assert.Contains(t, string(identity.Raw), `"nickname":"SELLER999"`)
}

func TestFetchIdentity_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"nickname":"NOID"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, srv.URL)
	_, err := c.FetchIdentity(context.Background(), "a1")
	require.Error(t, err)
}
