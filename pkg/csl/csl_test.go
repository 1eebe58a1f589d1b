package csl

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/openveil/openveil/pkg/content"
)

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		in   string
		want Name
	}{
		{"Ada Lovelace", Name{Given: "Ada", Family: "Lovelace"}},
		{"Mary Ann  Evans", Name{Given: "Mary Ann", Family: "Evans"}},
		{"researcher42", Name{Literal: "researcher42"}},
		{"   ", Name{}},
		{"", Name{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseAuthorName(tt.in), tt.in)
	}
}

func TestFromRecord(t *testing.T) {
	rec := &content.Record{
		ID:         5,
		Kind:       content.KindTrial,
		Title:      "Evening session",
		AuthorName: "Ada Lovelace",
		Date:       time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600)),
	}

	item := FromRecord(rec, Source{
		URL:            "https://veil.example/trial/5/",
		Publisher:      "Open Veil",
		ContainerTitle: "Red baseline",
	})

	assert.Equal(t, "trial-5", item.ID)
	assert.Equal(t, "article", item.Type)
	assert.Equal(t, []Name{{Given: "Ada", Family: "Lovelace"}}, item.Author)
	require.NotNil(t, item.Issued)
	assert.Equal(t, [][]int{{2026, 3, 10}}, item.Issued.DateParts, "dates are taken in UTC")

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "trial-5",
		"type": "article",
		"title": "Evening session",
		"author": [{"family": "Lovelace", "given": "Ada"}],
		"issued": {"date-parts": [[2026, 3, 10]]},
		"URL": "https://veil.example/trial/5/",
		"publisher": "Open Veil",
		"container-title": "Red baseline"
	}`, string(data))
}

func TestFromRecord_Anonymous(t *testing.T) {
	item := FromRecord(&content.Record{ID: 1, Kind: content.KindProtocol, Title: "Green"}, Source{})
	assert.Nil(t, item.Author)
	assert.Nil(t, item.Issued)

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "container-title")
}

func TestItemYAML(t *testing.T) {
	item := FromRecord(&content.Record{
		ID: 1, Kind: content.KindProtocol, Title: "Green", AuthorName: "Researcher",
		Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}, Source{Publisher: "Open Veil"})

	data, err := yaml.Marshal(item)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "protocol-1", decoded["id"])
	assert.Equal(t, "Open Veil", decoded["publisher"])
	assert.Contains(t, string(data), "literal: Researcher")
	assert.Contains(t, string(data), "date-parts:")
}
