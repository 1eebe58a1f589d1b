package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strconv"
	"strings"

	"github.com/openveil/openveil/pkg/apierr"
)

// ParseJSON decodes the request body into dest. An empty body leaves dest
// untouched; malformed JSON yields an invalid_json error.
func ParseJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.Wrap(apierr.New(http.StatusRequestEntityTooLarge, apierr.CodeInvalidJSON, "Request body too large."), err)
		}
		return apierr.Wrap(apierr.BadRequest(apierr.CodeInvalidJSON, "Invalid JSON body."), err)
	}
	return nil
}

// ParseID parses a positive record ID
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, apierr.BadRequest(apierr.CodeInvalidID, "Invalid ID.")
	}
	return id, nil
}

// QueryBool reads a boolean query parameter. "1", "true", "yes" and "on"
// are true; anything else non-empty is false.
func QueryBool(params url.Values, key string, defaultVal bool) bool {
	str := strings.ToLower(strings.TrimSpace(params.Get(key)))
	if str == "" {
		return defaultVal
	}
	switch str {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// RemoteIP returns the host part of the socket peer address
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// TrustedProxies lists the networks whose X-Forwarded-For and X-Real-IP
// headers are believed. The zero value trusts nobody.
type TrustedProxies []netip.Prefix

// ParseTrustedProxies parses CIDRs or bare addresses
func ParseTrustedProxies(entries []string) (TrustedProxies, error) {
	var out TrustedProxies
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			addr, err := netip.ParseAddr(e)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
			}
			out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		out = append(out, prefix.Masked())
	}
	return out, nil
}

func (t TrustedProxies) trusts(raw string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range t {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the caller address. Forwarding headers are only read
// when the socket peer is a trusted proxy; X-Forwarded-For is walked from
// the right and the first untrusted hop wins.
func (t TrustedProxies) ClientIP(r *http.Request) string {
	remote := RemoteIP(r)
	if !t.trusts(remote) {
		return remote
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		hops := strings.Split(fwd, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if i == 0 || !t.trusts(hop) {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return remote
}
