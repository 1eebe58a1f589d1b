package resources

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openveil/openveil/pkg/apierr"
	"github.com/openveil/openveil/pkg/auth"
	"github.com/openveil/openveil/pkg/config"
	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/observability"
	"github.com/openveil/openveil/pkg/policy"
	"github.com/openveil/openveil/pkg/shape"
	"github.com/openveil/openveil/pkg/storage"
)

var (
	admin       = auth.Principal{ID: 1, Name: "Site Admin", Roles: []auth.Role{auth.RoleAdministrator}}
	author      = auth.Principal{ID: 2, Name: "Ada Lovelace", Roles: []auth.Role{auth.RoleAuthor}}
	contributor = auth.Principal{ID: 3, Name: "Contrib", Roles: []auth.Role{auth.RoleContributor}}
	guest       = auth.Anonymous
)

type fixedTokens struct{ token string }

func (f fixedTokens) Generate() (string, error) { return f.token, nil }

type harness struct {
	svc     *Service
	store   *storage.MemoryStore
	metrics *observability.Metrics
	now     *time.Time
}

func newHarness(t *testing.T, settings config.Settings) *harness {
	t.Helper()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	h := &harness{store: storage.NewMemoryStore(), now: &now}
	clock := func() time.Time { return *h.now }
	h.store.SetClock(clock)
	h.metrics = observability.NewMetrics(prometheus.NewRegistry())

	p := policy.New(config.StaticSettings(settings), policy.WithClock(clock))
	shaper := shape.New(h.store, shape.NewLinks("https://veil.example", "/open-veil/v1"))
	h.svc = New(h.store, p, shaper,
		WithClock(clock),
		WithTokenGenerator(fixedTokens{token: "ovc_testtoken1"}),
		WithMetrics(h.metrics),
		WithSiteName("Open Veil"),
	)
	return h
}

func (h *harness) seed(t *testing.T, rec *content.Record) int64 {
	t.Helper()
	id, err := h.store.Create(context.Background(), rec)
	require.NoError(t, err)
	return id
}

func (h *harness) protocol(t *testing.T, title string, status content.Status) int64 {
	return h.seed(t, &content.Record{Kind: content.KindProtocol, Title: title, Status: status, AuthorID: author.ID, AuthorName: author.Name})
}

func str(s string) *string { return &s }

func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	require.Error(t, err)
	apiErr := apierr.As(err)
	assert.Equal(t, status, apiErr.Status)
	assert.Equal(t, code, apiErr.Code)
}

func publicSettings() config.Settings {
	return config.Settings{APIAccess: config.AccessPublic, GuestSubmissions: true, ClaimTokenExpiry: 7}
}

func TestCreateTrial_Guest(t *testing.T) {
	h := newHarness(t, publicSettings())
	pid := h.protocol(t, "Red baseline", content.StatusPublish)

	out, err := h.svc.Create(context.Background(), content.KindTrial, Payload{
		Title: str("T1"),
		Meta: map[string]any{
			"protocol_id":      pid,
			"laser_wavelength": 650,
			"_claim_token":     "forged",
			"unknown":          "dropped",
		},
		Questionnaire: map[string]map[string]any{
			"about_you": {"participant_name": "A"},
		},
		Taxonomies: map[string][]any{
			"substance": {"Caffeine"},
			"bogus":     {"x"},
		},
	}, guest)
	require.NoError(t, err)

	assert.Equal(t, string(content.StatusPending), out["status"])
	meta := out["meta"].(map[string]any)
	assert.Equal(t, pid, meta["protocol_id"])
	assert.Equal(t, int64(650), meta["laser_wavelength"])
	assert.NotContains(t, meta, "unknown")
	assert.NotContains(t, meta, "_claim_token")

	questionnaire := out["questionnaire"].(map[string]any)
	assert.Equal(t, "A", questionnaire["about_you"].(map[string]any)["participant_name"])

	id := out["id"].(int64)
	assert.Equal(t, "https://veil.example/trial/"+strconv.FormatInt(id, 10)+"/?claim_token=ovc_testtoken1", out["claim_url"])
	assert.Equal(t, "https://veil.example/trial-results/?trial_id="+strconv.FormatInt(id, 10), out["results_url"])

	stored, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "ovc_testtoken1", stored.Meta[content.MetaClaimToken])
	assert.Equal(t, strconv.FormatInt(h.now.Add(7*24*time.Hour).Unix(), 10), stored.Meta[content.MetaClaimTokenExpiry])
	assert.Equal(t, int64(0), stored.AuthorID)
	require.Len(t, stored.Terms["substance"], 1)
	assert.Equal(t, "Caffeine", stored.Terms["substance"][0].Name)
	assert.NotContains(t, stored.Terms, "bogus")

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ClaimTokensIssuedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.RecordsCreatedTotal.WithLabelValues("trial", "pending")))
}

func TestCreateTrial_ClaimExpiryClamped(t *testing.T) {
	s := publicSettings()
	s.ClaimTokenExpiry = 90
	h := newHarness(t, s)
	pid := h.protocol(t, "P", content.StatusPublish)

	out, err := h.svc.Create(context.Background(), content.KindTrial, Payload{
		Title: str("T"),
		Meta:  map[string]any{"protocol_id": strconv.FormatInt(pid, 10)},
	}, guest)
	require.NoError(t, err)

	stored, err := h.store.Get(context.Background(), out["id"].(int64))
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(h.now.Add(30*24*time.Hour).Unix(), 10), stored.Meta[content.MetaClaimTokenExpiry])
}

func TestCreateTrial_Privileged(t *testing.T) {
	h := newHarness(t, publicSettings())
	pid := h.protocol(t, "P", content.StatusPublish)

	out, err := h.svc.Create(context.Background(), content.KindTrial, Payload{
		Title:   str("Morning"),
		Content: str("notes"),
		Meta:    map[string]any{"protocol_id": float64(pid)},
	}, author)
	require.NoError(t, err)

	assert.Equal(t, string(content.StatusPublish), out["status"])
	assert.Equal(t, "notes", out["body"])
	assert.NotContains(t, out, "claim_url")
	assert.Contains(t, out, "results_url")
	assert.Equal(t, map[string]any{"id": author.ID, "name": author.Name}, out["author"])

	out, err = h.svc.Create(context.Background(), content.KindTrial, Payload{
		Title: str("Contrib trial"),
		Meta:  map[string]any{"protocol_id": pid},
	}, contributor)
	require.NoError(t, err)
	assert.Equal(t, string(content.StatusPending), out["status"])
}

func TestCreateTrial_RequestedStatus(t *testing.T) {
	h := newHarness(t, publicSettings())
	pid := h.protocol(t, "P", content.StatusPublish)

	out, err := h.svc.Create(context.Background(), content.KindTrial, Payload{
		Title: str("Draft"), Status: str("draft"),
		Meta: map[string]any{"protocol_id": pid},
	}, author)
	require.NoError(t, err)
	assert.Equal(t, "draft", out["status"])

	out, err = h.svc.Create(context.Background(), content.KindTrial, Payload{
		Title: str("Sneaky"), Status: str("publish"),
		Meta: map[string]any{"protocol_id": pid},
	}, guest)
	require.NoError(t, err)
	assert.Equal(t, "pending", out["status"], "guests cannot choose a status")
}

func TestCreateTrial_Validation(t *testing.T) {
	h := newHarness(t, publicSettings())
	ctx := context.Background()
	pid := h.protocol(t, "P", content.StatusPublish)
	otherTrial := h.seed(t, &content.Record{Kind: content.KindTrial, Title: "x", Status: content.StatusPublish})

	tests := []struct {
		name string
		p    Payload
		code string
	}{
		{"missing title", Payload{Meta: map[string]any{"protocol_id": pid}}, apierr.CodeMissingTitle},
		{"blank title", Payload{Title: str("   "), Meta: map[string]any{"protocol_id": pid}}, apierr.CodeMissingTitle},
		{"missing protocol", Payload{Title: str("T")}, apierr.CodeMissingProtocolID},
		{"empty protocol", Payload{Title: str("T"), Meta: map[string]any{"protocol_id": ""}}, apierr.CodeMissingProtocolID},
		{"absent protocol", Payload{Title: str("T"), Meta: map[string]any{"protocol_id": 9999}}, apierr.CodeInvalidProtocolID},
		{"not a protocol", Payload{Title: str("T"), Meta: map[string]any{"protocol_id": otherTrial}}, apierr.CodeInvalidProtocolID},
		{"garbage protocol", Payload{Title: str("T"), Meta: map[string]any{"protocol_id": "abc"}}, apierr.CodeInvalidProtocolID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Create(ctx, content.KindTrial, tt.p, guest)
			requireAPIError(t, err, http.StatusBadRequest, tt.code)
		})
	}

	_, total, err := h.store.Query(ctx, content.Query{Kind: content.KindTrial})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "failed submissions never write")
}

func TestCreate_StrictMeta(t *testing.T) {
	s := publicSettings()
	s.StrictMeta = true
	h := newHarness(t, s)

	_, err := h.svc.Create(context.Background(), content.KindProtocol, Payload{
		Title: str("P"),
		Meta:  map[string]any{"laser_wavelength": 900},
	}, author)
	requireAPIError(t, err, http.StatusBadRequest, apierr.CodeInvalidMeta)

	out, err := h.svc.Create(context.Background(), content.KindProtocol, Payload{
		Title: str("P"),
		Meta:  map[string]any{"laser_wavelength": 532, "laser_power": 1.5},
	}, author)
	require.NoError(t, err)
	assert.Equal(t, 1.5, out["meta"].(map[string]any)["laser_power"])
}

func TestCreate_Denied(t *testing.T) {
	s := publicSettings()
	s.GuestSubmissions = false
	h := newHarness(t, s)

	_, err := h.svc.Create(context.Background(), content.KindTrial, Payload{Title: str("T")}, guest)
	requireAPIError(t, err, http.StatusUnauthorized, apierr.CodeForbidden)

	_, err = h.svc.Create(context.Background(), content.KindProtocol, Payload{Title: str("P")}, guest)
	requireAPIError(t, err, http.StatusUnauthorized, apierr.CodeForbidden)

	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.PermissionDenialsTotal.WithLabelValues("trial", "create")))
}

func guestTrial(t *testing.T, h *harness) (int64, string) {
	t.Helper()
	pid := h.protocol(t, "P", content.StatusPublish)
	out, err := h.svc.Create(context.Background(), content.KindTrial, Payload{
		Title: str("Guest trial"),
		Meta:  map[string]any{"protocol_id": pid},
	}, guest)
	require.NoError(t, err)
	claim, err := url.Parse(out["claim_url"].(string))
	require.NoError(t, err)
	return out["id"].(int64), claim.Query().Get("claim_token")
}

func TestUpdate_ClaimToken(t *testing.T) {
	h := newHarness(t, publicSettings())
	ctx := context.Background()
	id, token := guestTrial(t, h)

	_, err := h.svc.Update(ctx, content.KindTrial, id, Payload{Title: str("Edited")}, guest, "ovc_wrong")
	requireAPIError(t, err, http.StatusUnauthorized, apierr.CodeForbidden)

	*h.now = h.now.Add(time.Hour)
	out, err := h.svc.Update(ctx, content.KindTrial, id, Payload{
		Title: str("Edited"),
		Questionnaire: map[string]map[string]any{
			"visual_effects": {"veil_observed": true, "veil_intensity": "7"},
		},
	}, guest, token)
	require.NoError(t, err)
	assert.Equal(t, "Edited", out["title"])
	effects := out["questionnaire"].(map[string]any)["visual_effects"].(map[string]any)
	assert.Equal(t, true, effects["veil_observed"])
	assert.Equal(t, int64(7), effects["veil_intensity"])
	assert.Equal(t, h.now.UTC().Format(time.RFC3339), out["modified"])

	// still valid: the token is reusable by default
	_, err = h.svc.Update(ctx, content.KindTrial, id, Payload{Body: str("more")}, guest, token)
	require.NoError(t, err)

	*h.now = h.now.Add(8 * 24 * time.Hour)
	_, err = h.svc.Update(ctx, content.KindTrial, id, Payload{Title: str("Late")}, guest, token)
	requireAPIError(t, err, http.StatusUnauthorized, apierr.CodeForbidden)
}

func TestUpdate_ClaimTokenSingleUse(t *testing.T) {
	s := publicSettings()
	s.ClaimTokenSingleUse = true
	h := newHarness(t, s)
	ctx := context.Background()
	id, token := guestTrial(t, h)

	_, err := h.svc.Update(ctx, content.KindTrial, id, Payload{Title: str("Once")}, guest, token)
	require.NoError(t, err)

	stored, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	assert.NotContains(t, stored.Meta, content.MetaClaimToken)
	assert.NotContains(t, stored.Meta, content.MetaClaimTokenExpiry)

	_, err = h.svc.Update(ctx, content.KindTrial, id, Payload{Title: str("Twice")}, guest, token)
	requireAPIError(t, err, http.StatusUnauthorized, apierr.CodeForbidden)
	assert.Equal(t, float64(1), testutil.ToFloat64(h.metrics.ClaimTokensClearedTotal.WithLabelValues("used")))
}

func TestUpdate_Fields(t *testing.T) {
	h := newHarness(t, publicSettings())
	ctx := context.Background()
	pid := h.protocol(t, "Original", content.StatusPublish)
	other := h.protocol(t, "Other", content.StatusPublish)
	tid := h.seed(t, &content.Record{
		Kind: content.KindTrial, Title: "T", Status: content.StatusPublish, AuthorID: author.ID,
		Meta: map[string]string{content.MetaProtocolID: strconv.FormatInt(pid, 10)},
	})

	_, err := h.svc.Update(ctx, content.KindProtocol, pid, Payload{}, author, "")
	requireAPIError(t, err, http.StatusBadRequest, apierr.CodeNoChanges)

	before, err := h.store.Get(ctx, pid)
	require.NoError(t, err)
	_, err = h.svc.Update(ctx, content.KindProtocol, pid, Payload{
		Meta:       map[string]any{"bogus": 1},
		Taxonomies: map[string][]any{"not_a_taxonomy": {"x"}},
	}, author, "")
	requireAPIError(t, err, http.StatusBadRequest, apierr.CodeNoChanges)
	after, err := h.store.Get(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, before.Modified, after.Modified)

	_, err = h.svc.Update(ctx, content.KindProtocol, pid, Payload{Title: str(" ")}, author, "")
	requireAPIError(t, err, http.StatusBadRequest, apierr.CodeMissingTitle)

	out, err := h.svc.Update(ctx, content.KindProtocol, pid, Payload{
		Meta:       map[string]any{"laser_power": 2.5},
		Taxonomies: map[string][]any{"laser_class": {"3R"}},
	}, author, "")
	require.NoError(t, err)
	assert.Equal(t, "Original", out["title"])
	assert.Equal(t, 2.5, out["meta"].(map[string]any)["laser_power"])
	classes := out["taxonomies"].(map[string]any)["laser_class"]
	assert.NotEmpty(t, classes)

	_, err = h.svc.Update(ctx, content.KindTrial, tid, Payload{Meta: map[string]any{"protocol_id": 4242}}, author, "")
	requireAPIError(t, err, http.StatusBadRequest, apierr.CodeInvalidProtocolID)

	out, err = h.svc.Update(ctx, content.KindTrial, tid, Payload{Meta: map[string]any{"protocol_id": other}}, author, "")
	require.NoError(t, err)
	assert.Equal(t, other, out["meta"].(map[string]any)["protocol_id"])

	// authors hold publish_posts and may move their own trial to draft
	out, err = h.svc.Update(ctx, content.KindTrial, tid, Payload{Status: str("draft")}, author, "")
	require.NoError(t, err)
	assert.Equal(t, "draft", out["status"])
}

func TestUpdate_Permissions(t *testing.T) {
	h := newHarness(t, publicSettings())
	ctx := context.Background()
	pid := h.protocol(t, "P", content.StatusPublish)

	_, err := h.svc.Update(ctx, content.KindProtocol, 999, Payload{Title: str("x")}, guest, "")
	requireAPIError(t, err, http.StatusNotFound, "protocol_not_found")

	_, err = h.svc.Update(ctx, content.KindTrial, pid, Payload{Title: str("x")}, admin, "")
	requireAPIError(t, err, http.StatusNotFound, "trial_not_found")

	_, err = h.svc.Update(ctx, content.KindProtocol, pid, Payload{Title: str("x")}, contributor, "")
	requireAPIError(t, err, http.StatusForbidden, apierr.CodeForbidden)

	_, err = h.svc.Update(ctx, content.KindProtocol, pid, Payload{Title: str("x")}, admin, "")
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	h := newHarness(t, publicSettings())
	ctx := context.Background()
	pid := h.protocol(t, "P", content.StatusPublish)
	tid := h.seed(t, &content.Record{
		Kind: content.KindTrial, Title: "Pending trial", Status: content.StatusPending, AuthorID: author.ID,
		Meta: map[string]string{content.MetaProtocolID: strconv.FormatInt(pid, 10)},
	})

	_, err := h.svc.Delete(ctx, content.KindProtocol, pid, author)
	requireAPIError(t, err, http.StatusBadRequest, apierr.CodeProtocolHasTrials)

	_, err = h.svc.Delete(ctx, content.KindTrial, tid, guest)
	requireAPIError(t, err, http.StatusUnauthorized, apierr.CodeForbidden)

	res, err := h.svc.Delete(ctx, content.KindTrial, tid, author)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Equal(t, "Pending trial", res.Previous["title"])

	res, err = h.svc.Delete(ctx, content.KindProtocol, pid, admin)
	require.NoError(t, err)
	assert.Equal(t, pid, res.Previous["id"])

	_, err = h.svc.Delete(ctx, content.KindProtocol, pid, admin)
	requireAPIError(t, err, http.StatusNotFound, "protocol_not_found")
}

type failingDelete struct {
	content.Store
}

func (failingDelete) Delete(context.Context, int64) error { return errors.New("disk full") }

func TestDelete_StoreFailure(t *testing.T) {
	h := newHarness(t, publicSettings())
	pid := h.protocol(t, "P", content.StatusPublish)

	p := policy.New(config.StaticSettings(publicSettings()))
	store := failingDelete{Store: h.store}
	svc := New(store, p, shape.New(store, shape.NewLinks("https://veil.example", "/open-veil/v1")))

	_, err := svc.Delete(context.Background(), content.KindProtocol, pid, admin)
	requireAPIError(t, err, http.StatusInternalServerError, apierr.CodeDeleteFailed)
	assert.ErrorContains(t, err, "disk full")
}

func TestListAndGet(t *testing.T) {
	h := newHarness(t, publicSettings())
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		h.protocol(t, "Published "+strconv.Itoa(i), content.StatusPublish)
	}
	hidden := h.protocol(t, "Hidden", content.StatusPending)

	page, err := h.svc.List(ctx, content.KindProtocol, url.Values{"per_page": {"5"}, "page": {"3"}})
	require.NoError(t, err)
	assert.Equal(t, 12, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 3, page.Page)
	assert.Len(t, page.Items, 2)

	page, err = h.svc.List(ctx, content.KindProtocol, url.Values{"_fields": {"id,title"}})
	require.NoError(t, err)
	for _, item := range page.Items {
		assert.Len(t, item, 2)
		assert.NotEqual(t, "Hidden", item["title"])
	}

	_, err = h.svc.Get(ctx, content.KindProtocol, hidden, nil, guest, "")
	requireAPIError(t, err, http.StatusNotFound, "protocol_not_found")

	out, err := h.svc.Get(ctx, content.KindProtocol, hidden, nil, author, "")
	require.NoError(t, err)
	assert.Equal(t, "Hidden", out["title"])
}

func TestGet_GuestTrialWithClaim(t *testing.T) {
	h := newHarness(t, publicSettings())
	id, token := guestTrial(t, h)

	_, err := h.svc.Get(context.Background(), content.KindTrial, id, nil, guest, "")
	requireAPIError(t, err, http.StatusNotFound, "trial_not_found")

	out, err := h.svc.Get(context.Background(), content.KindTrial, id, url.Values{"_embed": {""}}, guest, token)
	require.NoError(t, err)
	assert.Contains(t, out, "_embedded")
}

func TestCSL(t *testing.T) {
	h := newHarness(t, publicSettings())
	ctx := context.Background()
	pid := h.protocol(t, "Red baseline", content.StatusPublish)
	tid := h.seed(t, &content.Record{
		Kind: content.KindTrial, Title: "Evening", Status: content.StatusPublish, AuthorName: "Grace Hopper",
		Meta: map[string]string{content.MetaProtocolID: strconv.FormatInt(pid, 10)},
	})

	item, err := h.svc.CSL(ctx, content.KindTrial, tid, guest, "")
	require.NoError(t, err)
	assert.Equal(t, "Red baseline", item.ContainerTitle)
	assert.Equal(t, "Open Veil", item.Publisher)
	assert.Equal(t, "Hopper", item.Author[0].Family)
	assert.True(t, strings.HasSuffix(item.URL, "/trial/"+strconv.FormatInt(tid, 10)+"/"))

	item, err = h.svc.CSL(ctx, content.KindProtocol, pid, guest, "")
	require.NoError(t, err)
	assert.Empty(t, item.ContainerTitle)
	assert.Equal(t, "Lovelace", item.Author[0].Family)

	_, err = h.svc.CSL(ctx, content.KindProtocol, tid, guest, "")
	requireAPIError(t, err, http.StatusNotFound, "protocol_not_found")
}

func TestCitations(t *testing.T) {
	h := newHarness(t, publicSettings())
	draft := h.protocol(t, "Draft protocol", content.StatusDraft)
	pub := h.protocol(t, "Published protocol", content.StatusPublish)
	h.seed(t, &content.Record{
		Kind: content.KindTrial, Title: "Under draft", Status: content.StatusPublish,
		Meta: map[string]string{content.MetaProtocolID: strconv.FormatInt(draft, 10)},
	})
	h.seed(t, &content.Record{
		Kind: content.KindTrial, Title: "Under published", Status: content.StatusPublish,
		Meta: map[string]string{content.MetaProtocolID: strconv.FormatInt(pub, 10)},
	})
	h.seed(t, &content.Record{Kind: content.KindTrial, Title: "Pending", Status: content.StatusPending})

	items, err := h.svc.Citations(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "Published protocol", items[0].Title)
	assert.Equal(t, "Draft protocol", items[1].ContainerTitle)
	assert.Equal(t, "Published protocol", items[2].ContainerTitle)
}

func TestSchema(t *testing.T) {
	h := newHarness(t, publicSettings())
	_, err := h.svc.Create(context.Background(), content.KindProtocol, Payload{
		Title:      str("P"),
		Taxonomies: map[string][]any{"equipment": {"Green laser"}},
	}, author)
	require.NoError(t, err)

	schema, err := h.svc.Schema(context.Background())
	require.NoError(t, err)

	taxonomies := schema["taxonomies"].(map[string]any)
	assert.Len(t, taxonomies, len(content.Taxonomies))
	equipment := taxonomies["equipment"].(map[string]any)
	assert.Equal(t, "Equipment", equipment["label"])
	assert.Len(t, equipment["terms"], 1)

	trialMeta := schema["meta"].(map[string]any)["trial"].(map[string]any)
	wavelength := trialMeta["laser_wavelength"].(map[string]any)
	assert.Equal(t, "integer", wavelength["type"])
	assert.Equal(t, float64(400), wavelength["min"])
	assert.Equal(t, float64(700), wavelength["max"])
	assert.NotContains(t, trialMeta["administration_notes"], "min")

	questionnaire := schema["questionnaire"].(map[string]any)
	assert.Equal(t, "boolean", questionnaire["visual_effects"].(map[string]string)["veil_observed"])

	assert.Equal(t, map[string]any{"api_access": "public", "guest_submissions": true}, schema["settings"])
}
