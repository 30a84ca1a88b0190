package crypto

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ronl/business-api/internal/domain/models"
)

// PortalClaims is the claim set issued by the identity broker for portal users.
type PortalClaims struct {
	jwt.RegisteredClaims
	Municipality string         `json:"municipality,omitempty"`
	LoA          string         `json:"loa,omitempty"`
	Roles        []string       `json:"roles,omitempty"`
	RealmAccess  *RealmAccess   `json:"realm_access,omitempty"`
	Mandate      *MandateClaims `json:"mandate,omitempty"`
	Name         string         `json:"name,omitempty"`
	Email        string         `json:"email,omitempty"`
}

// RealmAccess is Keycloak's realm role container.
type RealmAccess struct {
	Roles []string `json:"roles"`
}

// MandateClaims is the wire form of a mandate.
type MandateClaims struct {
	Type            string   `json:"type"`
	RepresentedBy   string   `json:"representedBy"`
	RepresentedName string   `json:"representedName,omitempty"`
	Scope           []string `json:"scope,omitempty"`
	ValidUntil      string   `json:"validUntil,omitempty"`
}

// AllRoles returns the union of the top-level roles and the realm roles.
func (c *PortalClaims) AllRoles() []string {
	roles := append([]string{}, c.Roles...)
	if c.RealmAccess != nil {
		roles = append(roles, c.RealmAccess.Roles...)
	}
	return roles
}

// AuthenticatedUser maps verified claims onto the domain user. Claims outside the
// accepted schema are rejected here rather than carried into the request.
func (c *PortalClaims) AuthenticatedUser() (*models.AuthenticatedUser, error) {
	if c.Subject == "" {
		return nil, fmt.Errorf("missing sub claim")
	}
	level, err := models.ParseAssuranceLevel(c.LoA)
	if err != nil {
		return nil, err
	}
	var mandate *models.Mandate
	if c.Mandate != nil {
		if mandate, err = c.Mandate.toModel(); err != nil {
			return nil, err
		}
	}
	return models.NewAuthenticatedUser(c.Subject, c.Municipality, c.AllRoles(), level, mandate, c.Name, c.Email), nil
}

func (m *MandateClaims) toModel() (*models.Mandate, error) {
	mandate := &models.Mandate{
		Type:            models.MandateType(m.Type),
		RepresentedBy:   m.RepresentedBy,
		RepresentedName: m.RepresentedName,
		Scope:           m.Scope,
	}
	if m.ValidUntil != "" {
		t, err := parseMandateTime(m.ValidUntil)
		if err != nil {
			return nil, err
		}
		mandate.ValidUntil = &t
	}
	if err := mandate.Validate(); err != nil {
		return nil, err
	}
	return mandate, nil
}

func parseMandateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("mandate validUntil %q is not a date", s)
	}
	return t, nil
}
