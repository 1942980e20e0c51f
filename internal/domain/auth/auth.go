package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import "time"

// Role represents an application's authorization role.
// Keep string form for easy persistence and cookies.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape. TenantID is the
// isolation boundary: every alert, channel, and subscription the principal
// touches is scoped to it.
type Identity struct {
	UserID    string
	TenantID  string
	Email     string
	Groups    []string
	ExpiresAt time.Time
}

// Session is the server-side record we persist for an authenticated user.
// ID is an opaque session identifier (e.g., random URL-safe string).
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ScopedTo reports whether the session is authorized for the given tenant.
// Tenant scope is derived from the authenticated identity, never from a
// client-supplied parameter.
func (s Session) ScopedTo(tenantID string) bool {
	return tenantID != "" && s.TenantID == tenantID
}

// CanOperate reports whether the session role may apply alert transitions.
func (s Session) CanOperate() bool {
	return s.Role == RoleAdmin || s.Role == RoleOperator
}
