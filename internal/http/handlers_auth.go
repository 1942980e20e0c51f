package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	domainauth "github.com/oncallops/alertsync/internal/domain/auth"
	"github.com/oncallops/alertsync/internal/service"
)

const (
	oauthStateCookie        = "oauth_state"
	oauthNonceCookie        = "oauth_nonce"
	postLoginRedirectCookie = "post_login_redirect"

	oauthCookieMaxAge = 600 // seconds; the login round-trip should be quick
)

// AuthServiceInterface is the slice of the auth service the HTTP layer needs.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*domainauth.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandlersOptions groups dependencies for AuthHandlers.
type AuthHandlersOptions struct {
	Auth   AuthServiceInterface
	Logger *slog.Logger

	// CallbackURL is the absolute URL of the Callback handler, registered
	// with the identity provider.
	CallbackURL string
	// CookieDomain scopes auth cookies; empty means host-only.
	CookieDomain string
	// SecureCookies should be true everywhere TLS terminates in front of us.
	SecureCookies bool
}

// AuthHandlers serves the login, callback, logout, and identity endpoints.
type AuthHandlers struct {
	auth          AuthServiceInterface
	logger        *slog.Logger
	callbackURL   string
	cookieDomain  string
	secureCookies bool
}

// NewAuthHandlers constructs AuthHandlers.
func NewAuthHandlers(opts AuthHandlersOptions) (*AuthHandlers, error) {
	if opts.Auth == nil {
		return nil, errors.New("AuthServiceInterface is required")
	}
	if opts.CallbackURL == "" {
		return nil, errors.New("CallbackURL is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandlers{
		auth:          opts.Auth,
		logger:        logger,
		callbackURL:   opts.CallbackURL,
		cookieDomain:  opts.CookieDomain,
		secureCookies: opts.SecureCookies,
	}, nil
}

// Login begins the auth flow: state and nonce go into short-lived cookies,
// the browser goes to the provider.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	result, err := h.auth.BeginLogin(r.Context(), h.callbackURL)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "begin login failed", "error", err)
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "login_failed", Err: errInternal})
		return
	}

	h.setOAuthCookies(w, result.State, result.Nonce, r.URL.Query().Get("redirect"))
	http.Redirect(w, r, result.AuthURL, http.StatusFound)
}

// Callback completes the auth flow. The state cookie must match the state
// parameter before the code is exchanged.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("state parameter mismatch"),
		})
		return
	}

	var nonce string
	if nonceCookie, nonceErr := r.Cookie(oauthNonceCookie); nonceErr == nil {
		nonce = nonceCookie.Value
	}

	session, err := h.auth.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:  code,
		State: state,
		Nonce: nonce,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "complete login failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "login_failed",
			Err:     errors.New("login failed"),
		})
		return
	}

	h.logger.InfoContext(r.Context(), "login completed",
		"tenant_id", session.TenantID,
		"user_id", session.UserID,
		"role", session.Role)

	redirect := h.getPostLoginRedirect(r)
	h.setSessionCookie(w, session)
	h.clearOAuthCookies(w)
	http.Redirect(w, r, redirect, http.StatusFound)
}

// Logout deletes the session server-side and clears the cookie.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if logoutErr := h.auth.Logout(r.Context(), cookie.Value); logoutErr != nil {
			h.logger.WarnContext(r.Context(), "logout failed", "error", logoutErr)
		}
	}
	h.clearCookie(w, sessionCookieName)
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Me returns the authenticated identity for the current session.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	sess, ok := GetSessionFromContext(r.Context())
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("authentication required"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":   sess.UserID,
		"tenant_id": sess.TenantID,
		"email":     sess.Email,
		"role":      sess.Role,
	})
}

func (h *AuthHandlers) setOAuthCookies(w http.ResponseWriter, state, nonce, redirect string) {
	for name, value := range map[string]string{
		oauthStateCookie:        state,
		oauthNonceCookie:        nonce,
		postLoginRedirectCookie: redirect,
	} {
		if value == "" {
			continue
		}
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Domain:   h.cookieDomain,
			MaxAge:   oauthCookieMaxAge,
			Secure:   h.secureCookies,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, session *domainauth.Session) {
	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.cookieDomain,
		MaxAge:   maxAge,
		Secure:   h.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) clearOAuthCookies(w http.ResponseWriter) {
	h.clearCookie(w, oauthStateCookie)
	h.clearCookie(w, oauthNonceCookie)
	h.clearCookie(w, postLoginRedirectCookie)
}

func (h *AuthHandlers) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookieDomain,
		MaxAge:   -1,
		Secure:   h.secureCookies,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// getPostLoginRedirect returns the stored post-login redirect when it is a
// safe relative path, otherwise "/".
func (h *AuthHandlers) getPostLoginRedirect(r *http.Request) string {
	cookie, err := r.Cookie(postLoginRedirectCookie)
	if err != nil || cookie.Value == "" {
		return "/"
	}

	u, err := url.Parse(cookie.Value)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "/"
	}
	return cookie.Value
}
