package shape

import (
	"net/url"
	"slices"
	"strings"

	"github.com/openveil/openveil/pkg/content"
	"github.com/openveil/openveil/pkg/httputil"
)

// Relations that may be embedded, per kind
var embeddable = map[content.Kind][]string{
	content.KindProtocol: {"trials"},
	content.KindTrial:    {"protocol"},
}

// Options controls embedding and field selection
type Options struct {
	Embed  map[string]bool
	Fields []string
}

// ParseOptions reads _embed, _fields and the legacy include_protocol flag.
// A bare _embed requests every allowed relation; unknown relations are
// dropped.
func ParseOptions(kind content.Kind, params url.Values) Options {
	var opts Options

	if raw, ok := params["_embed"]; ok {
		requested := splitCSV(strings.Join(raw, ","))
		opts.Embed = make(map[string]bool)
		for _, rel := range embeddable[kind] {
			if len(requested) == 0 || slices.Contains(requested, rel) {
				opts.Embed[rel] = true
			}
		}
	}

	if kind == content.KindTrial && httputil.QueryBool(params, "include_protocol", false) {
		if opts.Embed == nil {
			opts.Embed = make(map[string]bool)
		}
		opts.Embed["protocol"] = true
	}

	if raw := params.Get("_fields"); raw != "" {
		opts.Fields = splitCSV(raw)
	}
	return opts
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
