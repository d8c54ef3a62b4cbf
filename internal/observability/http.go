package observability

import "net/http"

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}
