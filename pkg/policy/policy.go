// Package policy decides who may create, change, delete or view Open Veil
// resources.
//
// Decisions combine the api_access and guest_submissions settings with record
// ownership and trial claim tokens. Callers must load the target record first
// so a missing resource is reported as not found before any permission check.
package policy

import (
	"strconv"
	"time"

	"github.com/openveil/openveil/pkg/apierr"
	"github.com/openveil/openveil/pkg/auth"
	"github.com/openveil/openveil/pkg/config"
	"github.com/openveil/openveil/pkg/content"
)

// Policy evaluates access decisions against the current settings
type Policy struct {
	settings config.SettingsSource
	now      func() time.Time
}

// Option configures a Policy
type Option func(*Policy)

// WithClock overrides the time source used for claim expiry
func WithClock(now func() time.Time) Option {
	return func(p *Policy) {
		p.now = now
	}
}

// New creates a policy reading settings from src
func New(src config.SettingsSource, opts ...Option) *Policy {
	p := &Policy{settings: src, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Settings returns the settings the next decision will use
func (p *Policy) Settings() config.Settings {
	return p.settings.Current()
}

// accessGate applies the api_access mode. In public mode the gate is open
// and the per-operation rules decide.
func (p *Policy) accessGate(a auth.AuthContext) bool {
	switch p.settings.Current().APIAccess {
	case config.AccessAdmin:
		return a.IsAdmin()
	case config.AccessLoggedIn:
		return a.IsAuthenticated()
	default:
		return true
	}
}

func deny(a auth.AuthContext) error {
	return apierr.Forbidden(a.IsAuthenticated())
}

// CanCreate checks POST on a collection
func (p *Policy) CanCreate(kind content.Kind, a auth.AuthContext) error {
	s := p.settings.Current()

	if s.APIAccess != config.AccessPublic {
		if p.accessGate(a) {
			return nil
		}
		return deny(a)
	}

	switch kind {
	case content.KindTrial:
		if a.IsAuthenticated() || s.GuestSubmissions {
			return nil
		}
	default:
		if a.HasCapability(auth.CapEditPosts) {
			return nil
		}
	}
	return deny(a)
}

// CanUpdate checks PUT on an existing record. Only protocols pass through
// the api_access gate; trials also accept a valid, unexpired claim token.
func (p *Policy) CanUpdate(rec *content.Record, a auth.AuthContext, claimToken string) error {
	if rec.Kind == content.KindTrial && p.ClaimValid(rec, claimToken) {
		return nil
	}
	if rec.Kind == content.KindProtocol && !p.accessGate(a) {
		return deny(a)
	}
	if a.IsAdmin() || a.CanEdit(rec.AuthorID) {
		return nil
	}
	return deny(a)
}

// CanDelete checks DELETE on an existing record. Claim tokens never grant
// deletion.
func (p *Policy) CanDelete(rec *content.Record, a auth.AuthContext) error {
	if rec.Kind == content.KindProtocol && !p.accessGate(a) {
		return deny(a)
	}
	if a.IsAdmin() || a.CanEdit(rec.AuthorID) {
		return nil
	}
	return deny(a)
}

// CanView reports whether a single record is visible. Published records are
// public; others only to admins, their author, or a claim holder.
func (p *Policy) CanView(rec *content.Record, a auth.AuthContext, claimToken string) bool {
	if rec.Status == content.StatusPublish {
		return true
	}
	if a.IsAdmin() || a.CanEdit(rec.AuthorID) {
		return true
	}
	return rec.Kind == content.KindTrial && p.ClaimValid(rec, claimToken)
}

// ClaimValid reports whether token matches the trial's stored claim token and
// the current time is before its expiry
func (p *Policy) ClaimValid(rec *content.Record, token string) bool {
	if auth.ValidateClaimFormat(token) != nil {
		return false
	}
	stored, ok := rec.MetaValue(content.MetaClaimToken)
	if !ok || !auth.TokensEqual(token, stored) {
		return false
	}
	rawExpiry, ok := rec.MetaValue(content.MetaClaimTokenExpiry)
	if !ok {
		return false
	}
	expiry, err := strconv.ParseInt(rawExpiry, 10, 64)
	if err != nil {
		return false
	}
	return p.now().Unix() < expiry
}
