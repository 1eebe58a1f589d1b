package resources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/openveil/openveil/pkg/apierr"
	"github.com/openveil/openveil/pkg/auth"
	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/observability"
	"github.com/openveil/openveil/pkg/shape"
)

// Create validates and stores a new record. Guest trials receive a claim
// token; its URL is returned as claim_url.
func (s *Service) Create(ctx context.Context, kind content.Kind, p Payload, a auth.AuthContext) (map[string]any, error) {
	if err := s.policy.CanCreate(kind, a); err != nil {
		return nil, s.denied(kind, "create", err)
	}
	settings := s.policy.Settings()

	if p.Title == nil || strings.TrimSpace(*p.Title) == "" {
		return nil, apierr.BadRequest(apierr.CodeMissingTitle, "A title is required.")
	}

	meta, err := collectMeta(kind, p.Meta, settings.StrictMeta)
	if err != nil {
		return nil, err
	}
	if kind == content.KindTrial {
		raw, ok := meta[content.MetaProtocolID]
		if !ok || strings.TrimSpace(raw) == "" {
			return nil, apierr.BadRequest(apierr.CodeMissingProtocolID, "A trial must reference a protocol.")
		}
		pid, err := s.checkProtocol(ctx, raw)
		if err != nil {
			return nil, err
		}
		meta[content.MetaProtocolID] = strconv.FormatInt(pid, 10)

		for k, v := range content.FlattenQuestionnaire(p.Questionnaire) {
			meta[k] = v
		}
	}

	status := content.StatusPending
	if a.HasCapability(auth.CapPublishPosts) {
		status = content.StatusPublish
		if p.Status != nil {
			if requested, err := content.ParseStatus(*p.Status); err == nil {
				status = requested
			}
		}
	}

	rec := &content.Record{
		Kind:       kind,
		Title:      strings.TrimSpace(*p.Title),
		AuthorID:   a.PrincipalID(),
		AuthorName: a.DisplayName(),
		Status:     status,
		Meta:       meta,
		Terms:      termsOf(collectTerms(p.Taxonomies)),
	}
	if body := p.body(); body != nil {
		rec.Body = *body
	}

	var token string
	guestTrial := kind == content.KindTrial && !a.IsAuthenticated()
	if guestTrial {
		token, err = s.tokens.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate claim token: %w", err)
		}
		expiry := s.now().Add(settings.ClaimTTL())
		rec.Meta[content.MetaClaimToken] = token
		rec.Meta[content.MetaClaimTokenExpiry] = strconv.FormatInt(expiry.Unix(), 10)
	}

	id, err := s.store.Create(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", kind, err)
	}
	stored, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload %s %d: %w", kind, id, err)
	}

	out, err := s.shaper.Shape(ctx, stored, shape.Options{})
	if err != nil {
		return nil, err
	}

	links := s.shaper.Links()
	if kind == content.KindTrial {
		out["results_url"] = links.Results(id)
	}
	if guestTrial {
		out["claim_url"] = links.ClaimURL(kind, id, token)
		s.metrics.ClaimIssued()
	}
	s.metrics.RecordCreated(string(kind), string(status))

	observability.FromContext(ctx).WithFields(map[string]any{
		"kind":   string(kind),
		"id":     id,
		"status": string(status),
		"guest":  guestTrial,
	}).Info("record created")

	return out, nil
}

// checkProtocol verifies that raw references an existing protocol
func (s *Service) checkProtocol(ctx context.Context, raw string) (int64, error) {
	invalid := apierr.BadRequest(apierr.CodeInvalidProtocolID, "The referenced protocol does not exist.")

	pid, ok := parseProtocolID(raw)
	if !ok {
		return 0, invalid
	}
	protocol, err := s.store.Get(ctx, pid)
	if content.IsNotFound(err) {
		return 0, invalid
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load protocol %d: %w", pid, err)
	}
	if protocol.Kind != content.KindProtocol {
		return 0, invalid
	}
	return pid, nil
}

// Update applies the members present in p. Each member is written
// separately; the record's modified time is always bumped.
func (s *Service) Update(ctx context.Context, kind content.Kind, id int64, p Payload, a auth.AuthContext, claimToken string) (map[string]any, error) {
	rec, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanUpdate(rec, a, claimToken); err != nil {
		return nil, s.denied(kind, "update", err)
	}
	settings := s.policy.Settings()
	viaClaim := !a.IsAdmin() && !a.CanEdit(rec.AuthorID) && s.policy.ClaimValid(rec, claimToken)

	var patch content.PostPatch
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, apierr.BadRequest(apierr.CodeMissingTitle, "A title is required.")
		}
		patch.Title = &title
	}
	if body := p.body(); body != nil {
		patch.Body = body
	}
	if p.Status != nil && a.HasCapability(auth.CapPublishPosts) {
		if status, err := content.ParseStatus(*p.Status); err == nil {
			patch.Status = &status
		}
	}

	var meta map[string]string
	if p.Meta != nil {
		meta, err = collectMeta(kind, p.Meta, settings.StrictMeta)
		if err != nil {
			return nil, err
		}
		if raw, ok := meta[content.MetaProtocolID]; ok && kind == content.KindTrial {
			pid, err := s.checkProtocol(ctx, raw)
			if err != nil {
				return nil, err
			}
			meta[content.MetaProtocolID] = strconv.FormatInt(pid, 10)
		}
	}
	if kind == content.KindTrial && p.Questionnaire != nil {
		if meta == nil {
			meta = make(map[string]string)
		}
		for k, v := range content.FlattenQuestionnaire(p.Questionnaire) {
			meta[k] = v
		}
	}

	var terms map[string][]content.TermRef
	if p.Taxonomies != nil {
		terms = collectTerms(p.Taxonomies)
	}

	if patch.Empty() && len(meta) == 0 && len(terms) == 0 {
		return nil, apierr.BadRequest(apierr.CodeNoChanges, "No changes were provided.")
	}

	if len(meta) > 0 {
		if err := s.store.SetMeta(ctx, id, meta); err != nil {
			return nil, fmt.Errorf("failed to update %s %d meta: %w", kind, id, err)
		}
	}
	for _, tax := range content.Taxonomies {
		refs, ok := terms[tax.Name]
		if !ok {
			continue
		}
		if err := s.store.SetTerms(ctx, id, tax.Name, refs); err != nil {
			return nil, fmt.Errorf("failed to update %s %d %s: %w", kind, id, tax.Name, err)
		}
	}
	if err := s.store.UpdatePost(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("failed to update %s %d: %w", kind, id, err)
	}

	if viaClaim && settings.ClaimTokenSingleUse {
		if err := s.store.DeleteMeta(ctx, id, content.MetaClaimToken, content.MetaClaimTokenExpiry); err != nil {
			return nil, fmt.Errorf("failed to clear claim on %s %d: %w", kind, id, err)
		}
		s.metrics.ClaimsCleared("used", 1)
	}

	updated, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload %s %d: %w", kind, id, err)
	}
	return s.shaper.Shape(ctx, updated, shape.Options{})
}

// Delete removes a record. Protocols referenced by any trial cannot be
// deleted.
func (s *Service) Delete(ctx context.Context, kind content.Kind, id int64, a auth.AuthContext) (*Deleted, error) {
	rec, err := s.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CanDelete(rec, a); err != nil {
		return nil, s.denied(kind, "delete", err)
	}

	if kind == content.KindProtocol {
		_, n, err := s.store.Query(ctx, content.Query{
			Kind:       content.KindTrial,
			Limit:      1,
			MetaEquals: map[string]string{content.MetaProtocolID: strconv.FormatInt(id, 10)},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to count trials of protocol %d: %w", id, err)
		}
		if n > 0 {
			return nil, apierr.BadRequest(apierr.CodeProtocolHasTrials,
				fmt.Sprintf("Cannot delete a protocol with %d trial(s) attached.", n))
		}
	}

	previous, err := s.shaper.Shape(ctx, rec, shape.Options{})
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return nil, apierr.Wrap(
			apierr.New(http.StatusInternalServerError, apierr.CodeDeleteFailed, "The resource could not be deleted."),
			err,
		)
	}

	observability.FromContext(ctx).WithFields(map[string]any{
		"kind": string(kind),
		"id":   id,
	}).Info("record deleted")

	return &Deleted{Deleted: true, Previous: previous}, nil
}
