package chat

import (
	"net/http"
	"strings"
)

// credentialFrom 依次读取 query auth.token、query token、Authorization: Bearer
func credentialFrom(r *http.Request) string {
	q := r.URL.Query()
	if t := strings.TrimSpace(q.Get("auth.token")); t != "" {
		return t
	}
	if t := strings.TrimSpace(q.Get("token")); t != "" {
		return t
	}
	const bearer = "bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(bearer) && strings.EqualFold(h[:len(bearer)], bearer) {
		return strings.TrimSpace(h[len(bearer):])
	}
	return ""
}
