package auth

import (
	"net/http"
	"strings"
)

// TokenSource names the channel a token was read from.
type TokenSource string

const (
	SourceNone   TokenSource = "none"
	SourceHeader TokenSource = "header"
	SourceCookie TokenSource = "cookie"
	SourceQuery  TokenSource = "query"
)

const (
	DefaultCookieName = "token"
	DefaultQueryParam = "token"
)

// ExtractToken returns the first token found in, in order, the
// Authorization Bearer header, the session cookie and the query parameter.
func ExtractToken(r *http.Request, cookieName, queryParam string) (string, TokenSource) {
	if t := bearer(r.Header.Get("Authorization")); t != "" {
		return t, SourceHeader
	}
	if cookieName != "" {
		if ck, err := r.Cookie(cookieName); err == nil && ck.Value != "" {
			return ck.Value, SourceCookie
		}
	}
	if queryParam != "" && r.URL != nil {
		if t := strings.TrimSpace(r.URL.Query().Get(queryParam)); t != "" {
			return t, SourceQuery
		}
	}
	return "", SourceNone
}

func bearer(h string) string {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
