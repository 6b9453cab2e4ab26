package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Cache-Control values used by the API routes.
const (
	// CacheRevalidate lets clients keep an aggregate but forces an
	// If-None-Match round trip before reuse.
	CacheRevalidate = "private, no-cache"
	// CacheNoStore is for responses that must never be kept (digests,
	// ingest receipts).
	CacheNoStore = "no-store"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool
	// Expose lists response headers browsers may read, merged into
	// Access-Control-Expose-Headers when present on the response.
	Expose []string
}

// SecurityHeaders attaches the baseline hardening headers for a JSON API.
// Headers listed in opt.Expose are surfaced to browsers only when the
// response already carries them (X-Request-ID is set before this runs);
// headers written later by handlers are covered by the CORS config.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge / time.Second)
	if maxAge <= 0 {
		maxAge = int(180 * 24 * time.Hour / time.Second)
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"
	expose := opt.Expose
	if len(expose) == 0 {
		expose = []string{"X-Request-ID"}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		for _, name := range expose {
			if h.Get(name) != "" {
				appendExposed(h, name)
			}
		}

		c.Next()
	}
}

// CacheControl sets a per-route Cache-Control value unless the handler
// already chose one. no-store also sends the legacy Pragma/Expires pair.
func CacheControl(value string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		if h.Get("Cache-Control") == "" {
			h.Set("Cache-Control", value)
			if value == CacheNoStore {
				h.Set("Pragma", "no-cache")
				h.Set("Expires", "0")
			}
		}
		c.Next()
	}
}

// OriginAllowlist answers cross-origin requests from origins outside
// allowed with 403 forbidden, before CORS runs. Requests without an
// Origin, same-origin requests and an empty allowlist pass through.
func OriginAllowlist(allowed []string) gin.HandlerFunc {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))] = struct{}{}
	}
	return func(c *gin.Context) {
		origin := strings.ToLower(c.GetHeader("Origin"))
		if len(set) == 0 || origin == "" || sameOrigin(c.Request, origin) {
			c.Next()
			return
		}
		if _, ok := set[origin]; !ok {
			abortEnvelope(c, http.StatusForbidden, "forbidden", "origin not allowed", nil)
			return
		}
		c.Next()
	}
}

func sameOrigin(r *http.Request, origin string) bool {
	host := strings.ToLower(r.Host)
	return origin == "http://"+host || origin == "https://"+host
}

func appendExposed(h http.Header, name string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	if cur == "" {
		h.Set(hdr, name)
		return
	}
	for _, part := range strings.Split(cur, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return
		}
	}
	h.Set(hdr, cur+", "+name)
}

// isHTTPS honours a TLS connection or a proxy-set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
