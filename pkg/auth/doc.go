// Package auth identifies API callers and issues claim tokens.
//
// # Overview
//
// Callers are represented by the AuthContext interface. Authenticated users
// arrive as HS256 bearer tokens whose claims carry a user id, display name and
// roles; everyone else is Anonymous.
//
//	issuer, _ := auth.NewTokenIssuer(secret, "openveil")
//	tok, _ := issuer.Sign(auth.Principal{ID: 3, Name: "Ada", Roles: []auth.Role{auth.RoleAuthor}}, time.Hour)
//	p, err := issuer.Parse(tok)
//
// Capabilities are derived from roles:
//
//	administrator  edit_posts, publish_posts, manage_options
//	editor         edit_posts, publish_posts
//	author         edit_posts, publish_posts
//	contributor    edit_posts
//	subscriber     (none)
//
// # Claim Tokens
//
// Guest trial submissions receive a claim token granting time-limited edit
// rights on that trial:
//
//	// Token format: ovc_[base64url(32 random bytes)]
//	tok, err := auth.NewClaimTokenGenerator().Generate()
//
// Stored and presented tokens are compared with TokensEqual, which runs in
// constant time.
//
// # Related Packages
//
//   - pkg/middleware: resolves bearer tokens into request contexts
//   - pkg/policy: turns AuthContext values into access decisions
package auth
