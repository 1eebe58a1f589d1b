package auth

import "slices"

// Role is a site role attached to a principal
type Role string

const (
	RoleAdministrator Role = "administrator"
	RoleEditor        Role = "editor"
	RoleAuthor        Role = "author"
	RoleContributor   Role = "contributor"
	RoleSubscriber    Role = "subscriber"
)

// Capability is a named permission derived from roles
type Capability string

const (
	CapEditPosts     Capability = "edit_posts"
	CapPublishPosts  Capability = "publish_posts"
	CapManageOptions Capability = "manage_options"
)

var roleCapabilities = map[Role][]Capability{
	RoleAdministrator: {CapEditPosts, CapPublishPosts, CapManageOptions},
	RoleEditor:        {CapEditPosts, CapPublishPosts},
	RoleAuthor:        {CapEditPosts, CapPublishPosts},
	RoleContributor:   {CapEditPosts},
	RoleSubscriber:    {},
}

// ValidRole reports whether r is a known role
func ValidRole(r Role) bool {
	_, ok := roleCapabilities[r]
	return ok
}

// AuthContext is the per-request view of the caller
type AuthContext interface {
	PrincipalID() int64
	IsAuthenticated() bool
	IsAdmin() bool
	HasCapability(c Capability) bool
	// CanEdit reports whether the caller owns a resource authored by ownerID.
	CanEdit(ownerID int64) bool
	DisplayName() string
}

// Principal is an authenticated user, or the anonymous caller when ID is 0
type Principal struct {
	ID    int64
	Name  string
	Roles []Role
}

// Anonymous is the unauthenticated caller
var Anonymous AuthContext = Principal{}

func (p Principal) PrincipalID() int64 {
	return p.ID
}

func (p Principal) IsAuthenticated() bool {
	return p.ID > 0
}

func (p Principal) IsAdmin() bool {
	return p.HasCapability(CapManageOptions)
}

func (p Principal) HasCapability(c Capability) bool {
	if !p.IsAuthenticated() {
		return false
	}
	for _, r := range p.Roles {
		if slices.Contains(roleCapabilities[r], c) {
			return true
		}
	}
	return false
}

func (p Principal) CanEdit(ownerID int64) bool {
	return p.IsAuthenticated() && ownerID > 0 && p.ID == ownerID
}

func (p Principal) DisplayName() string {
	return p.Name
}
