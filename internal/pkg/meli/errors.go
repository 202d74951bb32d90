package meli

import (
	"fmt"
	"net/http"
)

// AuthExchangeError is returned when the provider rejects an authorization
// code or refresh token at the token endpoint. It is never retried.
type AuthExchangeError struct {
	Status int
	Body   string
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("mercadolibre token exchange failed: status=%d body=%s", e.Status, e.Body)
}

// UpstreamError is any non-2xx response from the MercadoLibre API outside the
// token endpoint. The HTTP status is preserved so callers can distinguish an
// authorization failure from other upstream failures.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("mercadolibre request failed: status=%d body=%s", e.Status, e.Body)
}

// IsUnauthorized reports whether the upstream rejected the access token.
// Only a 401 triggers the single refresh-and-retry cycle; other statuses
// surface to the caller untouched.
func (e *UpstreamError) IsUnauthorized() bool {
	return e.Status == http.StatusUnauthorized
}
