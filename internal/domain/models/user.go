package models

import (
	"fmt"
	"sort"
	"time"
)

// MandateType is the kind of authorization a representative holds.
type MandateType string

const (
	MandateLegal        MandateType = "legal"
	MandateVoluntary    MandateType = "voluntary"
	MandateProfessional MandateType = "professional"
)

// Valid reports whether t is a known mandate type.
func (t MandateType) Valid() bool {
	switch t {
	case MandateLegal, MandateVoluntary, MandateProfessional:
		return true
	}
	return false
}

// Mandate describes a user acting on behalf of another party. It is carried
// through the request but not validated beyond its shape.
type Mandate struct {
	Type            MandateType `json:"type"`
	RepresentedBy   string      `json:"representedBy"`
	RepresentedName string      `json:"representedName,omitempty"`
	Scope           []string    `json:"scope,omitempty"`
	ValidUntil      *time.Time  `json:"validUntil,omitempty"`
}

// Validate checks the mandate's shape.
func (m *Mandate) Validate() error {
	if !m.Type.Valid() {
		return fmt.Errorf("unknown mandate type %q", m.Type)
	}
	if m.RepresentedBy == "" {
		return fmt.Errorf("mandate without representedBy")
	}
	return nil
}

// AuthenticatedUser is the verified identity of the caller. It is built once per
// request from verified token claims and never mutated afterwards.
type AuthenticatedUser struct {
	UserID         string
	TenantID       string
	roles          []string
	AssuranceLevel AssuranceLevel
	Mandate        *Mandate
	DisplayName    string
	Email          string
}

// NewAuthenticatedUser builds a user; roles are de-duplicated and sorted.
func NewAuthenticatedUser(userID, tenantID string, roles []string, level AssuranceLevel, mandate *Mandate, displayName, email string) *AuthenticatedUser {
	seen := make(map[string]struct{}, len(roles))
	unique := make([]string, 0, len(roles))
	for _, r := range roles {
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		unique = append(unique, r)
	}
	sort.Strings(unique)

	return &AuthenticatedUser{
		UserID:         userID,
		TenantID:       tenantID,
		roles:          unique,
		AssuranceLevel: level,
		Mandate:        mandate,
		DisplayName:    displayName,
		Email:          email,
	}
}

// Roles returns a copy of the caller's role set.
func (u *AuthenticatedUser) Roles() []string {
	out := make([]string, len(u.roles))
	copy(out, u.roles)
	return out
}

// HasRole reports whether the caller holds role.
func (u *AuthenticatedUser) HasRole(role string) bool {
	i := sort.SearchStrings(u.roles, role)
	return i < len(u.roles) && u.roles[i] == role
}

// HasAnyRole reports whether the caller's roles intersect required.
func (u *AuthenticatedUser) HasAnyRole(required ...string) bool {
	for _, r := range required {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// AuthContext is the authenticated user plus request-scoped metadata.
type AuthContext struct {
	User          *AuthenticatedUser
	TenantID      string
	RequestID     string
	SourceAddress string
	UserAgent     string
}

// NewAuthContext binds a user to the request it arrived on.
func NewAuthContext(user *AuthenticatedUser, requestID, sourceAddress, userAgent string) *AuthContext {
	return &AuthContext{
		User:          user,
		TenantID:      user.TenantID,
		RequestID:     requestID,
		SourceAddress: sourceAddress,
		UserAgent:     userAgent,
	}
}
