// internal/auth/oidc/authenticator.go
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"authzbff/internal/auth"
	"authzbff/internal/httputils"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const (
	stateCookie        = "oidc_state"
	codeVerifierCookie = "oidc_code_verifier"
	originURLCookie    = "oidc_origin_url"
)

// Authenticator implements OIDC browser session authentication
type Authenticator struct {
	logger       *logging.Logger
	metrics      *metrics.Collector
	enabled      bool
	verifier     *oidc.IDTokenVerifier
	config       oauth2.Config
	callbackPath string
	sessions     *sessionCodec
}

// Config holds OIDC authenticator configuration
type Config struct {
	// Enabled indicates whether OIDC authentication is enabled
	Enabled bool

	// Issuer is the OIDC issuer URL
	Issuer string

	// ClientID is the OIDC client ID
	ClientID string

	// ClientSecret is the OIDC client secret
	ClientSecret string

	// RedirectURL is the redirect URL for OIDC authentication
	RedirectURL string

	// Scopes is a list of OIDC scopes to request
	Scopes []string

	// CookieName is the name of the session cookie
	CookieName string

	// CookieSecret is the secret the session cookie key is derived from
	CookieSecret string
}

// New creates a new OIDC authenticator, discovering the provider endpoints
func New(ctx context.Context, config Config, logger *logging.Logger, metricsCollector *metrics.Collector) (*Authenticator, error) {
	if !config.Enabled {
		return &Authenticator{
			logger:  logger.WithModule("auth.oidc"),
			metrics: metricsCollector,
		}, nil
	}

	if config.Issuer == "" {
		return nil, fmt.Errorf("OIDC authentication enabled but no issuer provided")
	}

	logger.Debug("Initializing OIDC provider", "issuer", config.Issuer)
	provider, err := oidc.NewProvider(ctx, config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OIDC provider: %w", err)
	}

	return NewWithProvider(config, provider.Endpoint(), provider.Verifier(&oidc.Config{ClientID: config.ClientID}), logger, metricsCollector)
}

// NewWithProvider creates an OIDC authenticator from an already discovered endpoint and verifier
func NewWithProvider(config Config, endpoint oauth2.Endpoint, verifier *oidc.IDTokenVerifier, logger *logging.Logger, metricsCollector *metrics.Collector) (*Authenticator, error) {
	if config.ClientID == "" || config.ClientSecret == "" {
		return nil, fmt.Errorf("OIDC authentication enabled but clientID or clientSecret not provided")
	}
	if config.RedirectURL == "" {
		return nil, fmt.Errorf("OIDC authentication enabled but no redirect URL provided")
	}
	if len(config.CookieSecret) < 32 {
		return nil, fmt.Errorf("OIDC cookie secret must be at least 32 bytes long")
	}

	cookieName := config.CookieName
	if cookieName == "" {
		cookieName = "authzbff_session"
	}
	sessions, err := newSessionCodec(cookieName, config.CookieSecret)
	if err != nil {
		return nil, err
	}

	scopes := config.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return &Authenticator{
		logger:   logger.WithModule("auth.oidc"),
		metrics:  metricsCollector,
		enabled:  true,
		verifier: verifier,
		config: oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  config.RedirectURL,
			Scopes:       scopes,
		},
		callbackPath: extractCallbackPath(config.RedirectURL),
		sessions:     sessions,
	}, nil
}

// Name returns the name of this authenticator
func (a *Authenticator) Name() string {
	return "oidc"
}

// GetMiddleware returns an http.Handler middleware that performs OIDC authentication.
// Browsers without a session are redirected to the provider; API clients get 401.
func (a *Authenticator) GetMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		logger := logging.FromContext(ctx, a.logger)

		if identity := auth.IdentityFromContext(ctx); identity != nil {
			logger.Debug("Skipping OIDC: identity already set", "subject", identity.Subject)
			next.ServeHTTP(w, r)
			return
		}

		if r.URL.Path == a.callbackPath {
			a.handleCallback(w, r)
			return
		}

		session, err := a.sessions.read(r)
		if err != nil || session == nil {
			logger.Debug("Session cookie not found or invalid")
			a.requireLogin(w, r)
			return
		}

		if !session.RefreshTokenExpiry.IsZero() && time.Now().After(session.RefreshTokenExpiry) {
			logger.Info("Refresh token has expired, re-authentication required", "subject", session.Subject)
			a.sessions.clear(w)
			a.requireLogin(w, r)
			return
		}

		if time.Now().After(session.Expiry) {
			if err := a.refresh(ctx, w, session); err != nil {
				logger.Info("Failed to refresh access token", logging.Err(err), "subject", session.Subject)
				a.sessions.clear(w)
				a.requireLogin(w, r)
				return
			}
			logger.Info("Access token refreshed successfully", "subject", session.Subject)
		}

		identity := &auth.Identity{
			Subject:  session.Subject,
			Provider: string(auth.AuthTypeOIDC),
			Attributes: map[string]any{
				"email": session.Email,
				"name":  session.Name,
			},
		}

		logger.Debug("OIDC authentication successful", "subject", session.Subject)
		a.metrics.RecordAuthentication(a.Name(), true)

		next.ServeHTTP(w, r.WithContext(auth.Authenticated(ctx, identity)))
	})
}

// refresh exchanges the refresh token and rewrites the session cookie
func (a *Authenticator) refresh(ctx context.Context, w http.ResponseWriter, session *SessionData) error {
	token, err := a.config.TokenSource(ctx, &oauth2.Token{RefreshToken: session.RefreshToken}).Token()
	if err != nil {
		return err
	}

	session.AccessToken = token.AccessToken
	session.Expiry = token.Expiry
	if token.RefreshToken != "" {
		session.RefreshToken = token.RefreshToken
	}
	if expiry, ok := refreshExpiry(token, time.Now()); ok {
		session.RefreshTokenExpiry = expiry
	}

	return a.sessions.write(w, *session)
}

// requireLogin answers 401 to API clients and starts the login flow for browsers
func (a *Authenticator) requireLogin(w http.ResponseWriter, r *http.Request) {
	if httputils.WantsJSON(r) {
		a.metrics.RecordAuthentication(a.Name(), false)
		httputils.WriteError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	a.startAuthenticationFlow(w, r)
}

// handleCallback completes the authorization code flow
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx, a.logger)

	state := r.URL.Query().Get("state")
	if state == "" {
		httputils.WriteError(w, http.StatusBadRequest, "Invalid callback")
		return
	}

	stateValue, err := r.Cookie(stateCookie)
	if err != nil || stateValue.Value != state {
		logger.Info("OIDC state mismatch or cookie missing", "cookie_exists", err == nil)
		httputils.WriteError(w, http.StatusBadRequest, "State mismatch")
		return
	}

	verifierValue, err := r.Cookie(codeVerifierCookie)
	if err != nil {
		httputils.WriteError(w, http.StatusBadRequest, "Code verifier not found")
		return
	}

	origin := "/"
	if originValue, err := r.Cookie(originURLCookie); err == nil && isLocalPath(originValue.Value) {
		origin = originValue.Value
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httputils.WriteError(w, http.StatusBadRequest, "No code received")
		return
	}

	token, err := a.config.Exchange(ctx, code, oauth2.VerifierOption(verifierValue.Value))
	if err != nil {
		logger.Error("Failed to exchange token", logging.Err(err))
		a.metrics.RecordAuthentication(a.Name(), false)
		httputils.WriteError(w, http.StatusBadGateway, "Failed to exchange token")
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		logger.Error("No ID token in OAuth2 token")
		httputils.WriteError(w, http.StatusBadGateway, "No ID token in OAuth2 token")
		return
	}

	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		logger.Error("Failed to verify ID token", logging.Err(err))
		a.metrics.RecordAuthentication(a.Name(), false)
		httputils.WriteError(w, http.StatusUnauthorized, "Failed to verify ID token")
		return
	}

	var claims struct {
		Subject string `json:"sub"`
		Email   string `json:"email,omitempty"`
		Name    string `json:"name,omitempty"`
	}
	if err := idToken.Claims(&claims); err != nil {
		logger.Error("Failed to parse claims from ID token", logging.Err(err))
		httputils.WriteError(w, http.StatusUnauthorized, "Failed to parse claims")
		return
	}

	session := SessionData{
		Subject:            claims.Subject,
		Email:              claims.Email,
		Name:               claims.Name,
		AccessToken:        token.AccessToken,
		RefreshToken:       token.RefreshToken,
		Expiry:             token.Expiry,
		RefreshTokenExpiry: time.Now().Add(defaultSessionLifetime),
	}
	if expiry, ok := refreshExpiry(token, time.Now()); ok {
		session.RefreshTokenExpiry = expiry
	}

	if err := a.sessions.write(w, session); err != nil {
		logger.Error("Failed to save session cookie", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	logger.Info("OIDC login completed", "subject", claims.Subject)
	a.metrics.RecordAuthentication(a.Name(), true)

	clearTempCookies(w)
	http.Redirect(w, r, origin, http.StatusSeeOther)
}

// startAuthenticationFlow redirects to the provider using PKCE
func (a *Authenticator) startAuthenticationFlow(w http.ResponseWriter, r *http.Request) {
	state, err := randomString(16)
	if err != nil {
		a.logger.Error("Failed to generate state parameter", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	codeVerifier := oauth2.GenerateVerifier()

	setTempCookie(w, r, stateCookie, state)
	setTempCookie(w, r, codeVerifierCookie, codeVerifier)
	setTempCookie(w, r, originURLCookie, r.URL.RequestURI())

	http.Redirect(w, r, a.config.AuthCodeURL(state, oauth2.S256ChallengeOption(codeVerifier)), http.StatusFound)
}

func setTempCookie(w http.ResponseWriter, r *http.Request, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int((10 * time.Minute).Seconds()),
	})
}

func clearTempCookies(w http.ResponseWriter) {
	for _, name := range []string{stateCookie, codeVerifierCookie, originURLCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   true,
			MaxAge:   -1,
		})
	}
}

// isLocalPath accepts only same-origin redirect targets
func isLocalPath(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && len(target) > 0 && target[0] == '/' && (len(target) == 1 || target[1] != '/')
}

func extractCallbackPath(urlStr string) string {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Path == "" {
		return "/callback"
	}
	return parsedURL.Path
}

func randomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}
