package meli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ucanapp/melibroker/internal/pkg/env"
)

const (
	defaultAuthorizeURL = "https://auth.mercadolibre.com.ar/authorization"
	defaultTokenURL     = "https://api.mercadolibre.com/oauth/token"
	defaultAPIBaseURL   = "https://api.mercadolibre.com"

	// Scopes requested during the consent redirect.
	DefaultScopes = "read_items,write_items,read_orders,read_users,read_shipping"
)

// Client talks to the MercadoLibre OAuth and REST endpoints. All methods are
// safe for concurrent use; the zero timeout of the default client is replaced
// with a hard 15s transport timeout.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthorizeURL string
	TokenURL     string
	APIBaseURL   string

	HTTPClient *http.Client
}

// TokenResponse is the token endpoint payload for both the code and the
// refresh grant. MercadoLibre rotates refresh tokens on use, so callers must
// persist whichever refresh token comes back and discard the old one.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Scope        string `json:"scope"`
}

// Identity is the resolved owner of an access token plus the raw /users/me
// payload for presentation.
type Identity struct {
	UserID    string
	Nickname  string
	Email     string
	SiteID    string
	FirstName string
	LastName  string
	Raw       json.RawMessage
}

func NewClientFromEnv() *Client {
	return &Client{
		ClientID:     strings.TrimSpace(env.GetEnv("CLIENT_ID", "")),
		ClientSecret: strings.TrimSpace(env.GetEnv("CLIENT_SECRET", "")),
		RedirectURI:  strings.TrimSpace(env.GetEnv("REDIRECT_URI", "")),
		AuthorizeURL: strings.TrimSpace(env.GetEnv("MELI_AUTHORIZE_URL", defaultAuthorizeURL)),
		TokenURL:     strings.TrimSpace(env.GetEnv("MELI_TOKEN_URL", defaultTokenURL)),
		APIBaseURL:   strings.TrimSpace(env.GetEnv("MELI_API_BASE_URL", defaultAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// AuthorizeURLWithState builds the consent URL the user is redirected to.
func (c *Client) AuthorizeURLWithState(state string) (string, error) {
	if strings.TrimSpace(c.ClientID) == "" {
		return "", errors.New("CLIENT_ID is not configured")
	}
	if strings.TrimSpace(c.RedirectURI) == "" {
		return "", errors.New("REDIRECT_URI is not configured")
	}
	u, err := url.Parse(c.AuthorizeURL)
	if err != nil {
		return "", fmt.Errorf("invalid MELI_AUTHORIZE_URL: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", c.ClientID)
	q.Set("redirect_uri", c.RedirectURI)
	q.Set("scope", DefaultScopes)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ExchangeCode trades a one-shot authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("oauth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("code", strings.TrimSpace(code))
	form.Set("redirect_uri", c.RedirectURI)

	return c.postTokenForm(ctx, form)
}

// ExchangeRefreshToken trades a refresh token for a new token pair. The
// provider may rotate the refresh token; the response always carries the one
// valid for the next refresh.
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
	form.Set("refresh_token", strings.TrimSpace(refreshToken))

	return c.postTokenForm(ctx, form)
}

func (c *Client) postTokenForm(ctx context.Context, form url.Values) (*TokenResponse, error) {
	if strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return nil, errors.New("CLIENT_ID/CLIENT_SECRET are not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthExchangeError{Status: resp.StatusCode, Body: string(body)}
	}

	var out TokenResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return nil, errors.New("token exchange returned empty access_token")
	}
	return &out, nil
}

// FetchIdentity resolves the owner of an access token via /users/me.
func (c *Client) FetchIdentity(ctx context.Context, accessToken string) (*Identity, error) {
	body, err := c.FetchResource(ctx, strings.TrimRight(c.APIBaseURL, "/")+"/users/me", accessToken)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID        int64  `json:"id"`
		Nickname  string `json:"nickname"`
		Email     string `json:"email"`
		SiteID    string `json:"site_id"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	if raw.ID == 0 {
		return nil, errors.New("identity response missing user id")
	}

	return &Identity{
		UserID:    strconv.FormatInt(raw.ID, 10),
		Nickname:  raw.Nickname,
		Email:     raw.Email,
		SiteID:    raw.SiteID,
		FirstName: raw.FirstName,
		LastName:  raw.LastName,
		Raw:       json.RawMessage(body),
	}, nil
}

// FetchResource performs an authorized GET against an absolute provider URL,
// typically the resource pointer carried by a webhook notification. Any
// non-2xx response comes back as *UpstreamError with the status preserved.
func (c *Client) FetchResource(ctx context.Context, uri, accessToken string) ([]byte, error) {
	token := strings.TrimSpace(accessToken)
	if token == "" {
		return nil, errors.New("access token is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
