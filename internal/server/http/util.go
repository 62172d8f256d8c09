package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

func encodeJSONResponse[T any](w http.ResponseWriter, code int, data T) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if code == http.StatusNoContent {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

func writeText(w http.ResponseWriter, code int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(text))
}

// getClientIP expects RemoteAddr to have been rewritten by middleware.RealIP
// when the request came through a proxy, in which case it carries no port.
func getClientIP(req *http.Request) string {
	out, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		out = req.RemoteAddr
	}
	if out == "" {
		xff := strings.Split(req.Header.Get("X-Forwarded-For"), ",")
		out = strings.TrimSpace(xff[0])
	}

	if ip := net.ParseIP(out); ip != nil {
		if ip.IsLoopback() {
			return "127.0.0.1"
		}
		return ip.String()
	}

	return "0.0.0.0"
}
