package query

import (
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openveil/openveil/pkg/content"
)

func TestBuild_PerPageClamping(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 10},
		{"0", 10},
		{"-5", 10},
		{"abc", 10},
		{"1", 1},
		{"25", 25},
		{"100", 100},
		{"101", 100},
		{"5000", 100},
	}

	for _, tt := range tests {
		t.Run("per_page="+tt.raw, func(t *testing.T) {
			l := Build(content.KindProtocol, url.Values{"per_page": {tt.raw}})
			assert.Equal(t, tt.want, l.PerPage)
			assert.Equal(t, tt.want, l.Query.Limit)
		})
	}
}

func TestBuild_Offset(t *testing.T) {
	for page := 1; page <= 5; page++ {
		l := Build(content.KindProtocol, url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {"20"},
		})
		assert.Equal(t, page, l.Page)
		assert.Equal(t, (page-1)*20, l.Query.Offset)
	}

	l := Build(content.KindProtocol, url.Values{"page": {"3"}, "per_page": {"20"}, "offset": {"7"}})
	assert.Equal(t, 7, l.Query.Offset, "explicit offset wins")

	l = Build(content.KindProtocol, url.Values{"page": {"3"}, "per_page": {"20"}, "offset": {"0"}})
	assert.Equal(t, 40, l.Query.Offset, "zero offset is ignored")

	l = Build(content.KindProtocol, url.Values{"page": {"-2"}})
	assert.Equal(t, 1, l.Page)
	assert.Equal(t, 0, l.Query.Offset)
}

func TestBuild_Order(t *testing.T) {
	l := Build(content.KindProtocol, url.Values{})
	assert.Equal(t, content.OrderByDate, l.Query.OrderBy)
	assert.True(t, l.Query.Descending)

	l = Build(content.KindProtocol, url.Values{"orderby": {"Title"}, "order": {"asc"}})
	assert.Equal(t, content.OrderByTitle, l.Query.OrderBy)
	assert.False(t, l.Query.Descending)

	l = Build(content.KindProtocol, url.Values{"orderby": {"popularity"}, "order": {"sideways"}})
	assert.Equal(t, content.OrderByDate, l.Query.OrderBy)
	assert.True(t, l.Query.Descending)

	l = Build(content.KindProtocol, url.Values{"orderby": {"meta.laser_power"}, "order": {"ASC"}})
	assert.Equal(t, content.OrderByMeta, l.Query.OrderBy)
	assert.Equal(t, "laser_power", l.Query.OrderMetaKey)
	assert.True(t, l.Query.OrderNumeric)

	l = Build(content.KindTrial, url.Values{"orderby": {"meta.administration_notes"}})
	assert.Equal(t, content.OrderByMeta, l.Query.OrderBy)
	assert.False(t, l.Query.OrderNumeric)

	l = Build(content.KindTrial, url.Values{"orderby": {"meta._claim_token"}})
	assert.Equal(t, content.OrderByDate, l.Query.OrderBy)
}

func TestBuild_TaxFilters(t *testing.T) {
	l := Build(content.KindProtocol, url.Values{
		"laser_class":             {"Class 2, Class 3R"},
		"substance_slug":          {"caffeine"},
		"equipment":               {""},
		"projection_surface_slug": {" , "},
	})

	require.Len(t, l.Query.TaxFilters, 2)
	assert.Equal(t, content.TaxFilter{
		Taxonomy: "laser_class",
		Match:    content.MatchName,
		Values:   []string{"Class 2", "Class 3R"},
	}, l.Query.TaxFilters[0])
	assert.Equal(t, content.TaxFilter{
		Taxonomy: "substance",
		Match:    content.MatchSlug,
		Values:   []string{"caffeine"},
	}, l.Query.TaxFilters[1])
}

func TestBuild_ProtocolFilterOnlyForTrials(t *testing.T) {
	l := Build(content.KindTrial, url.Values{"protocol_id": {"42"}})
	assert.Equal(t, map[string]string{"protocol_id": "42"}, l.Query.MetaEquals)

	l = Build(content.KindProtocol, url.Values{"protocol_id": {"42"}})
	assert.Nil(t, l.Query.MetaEquals)

	l = Build(content.KindTrial, url.Values{"protocol_id": {"nope"}})
	assert.Nil(t, l.Query.MetaEquals)
}

func TestSanitizeSearch(t *testing.T) {
	assert.Equal(t, "red laser", SanitizeSearch("  <b>red</b>\x00   laser "))
	assert.Equal(t, "alert(1)", SanitizeSearch("<script>alert(1)</script>"))
	assert.Equal(t, "", SanitizeSearch(""))
}
