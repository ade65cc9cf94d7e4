// Package auth exchanges platform credentials for a bearer token.
//
// The exchange is a single HTTP call, independent of any open gateway
// connection; it may run while one is up. Failures are never retried here,
// the caller decides whether trying again makes sense.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/havenhome/haven.go/pkg/constants"
)

// Error reports a failed login. StatusCode is zero when the exchange never
// produced a response.
type Error struct {
	StatusCode int
	Reason     string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("authentication failed: %s (status %d)", e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Authenticator performs the login exchange against one endpoint.
type Authenticator struct {
	// Endpoint is the HTTP base URL of the platform, e.g.
	// "https://gateway.example.com".
	Endpoint string

	// HTTPClient defaults to a client that does not follow redirects;
	// the platform may set the token cookie on a redirect response.
	HTTPClient *http.Client
}

var defaultHTTPClient = &http.Client{
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// Login posts the credentials and extracts the session token from the
// response cookie. It succeeds only on a success or redirect status with
// the token cookie present; anything else is an *Error.
func (a *Authenticator) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(credentials{Username: username, Password: password})
	if err != nil {
		return "", &Error{Reason: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint+constants.LoginPath, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Reason: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := a.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return "", &Error{Reason: err.Error()}
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode >= http.StatusBadRequest {
		return "", &Error{StatusCode: res.StatusCode, Reason: "login rejected"}
	}

	for _, cookie := range res.Cookies() {
		if cookie.Name == constants.AuthTokenCookie && cookie.Value != "" {
			return cookie.Value, nil
		}
	}

	return "", &Error{StatusCode: res.StatusCode, Reason: "token missing from response"}
}
