package app

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/louisbranch/papertrade.space/internal/platform/authtoken"
)

const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// withRequestLog tags each request with an id and logs method, path, status,
// and duration.
func withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(recorder, r)
		log.Printf("%s %s %d %s request_id=%s", r.Method, r.URL.Path, recorder.status, time.Since(start), requestID)
	})
}

// requireAuth verifies bearer tokens on every route except the health probe.
// Routes scoped to a user id additionally require the token to belong to
// that user.
func requireAuth(minter *authtoken.Minter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			writeErrorStatus(w, http.StatusUnauthorized, authtoken.ErrInvalidToken)
			return
		}
		claims, err := minter.Verify(token)
		if err != nil {
			writeErrorStatus(w, http.StatusUnauthorized, err)
			return
		}
		if userID := pathUserID(r.URL.Path); userID != "" && userID != claims.UserID {
			writeErrorStatus(w, http.StatusForbidden, authtoken.ErrInvalidToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// pathUserID extracts the user id segment from /v1/users/{id}/... paths.
// The check runs before mux matching, so PathValue is not available yet.
func pathUserID(path string) string {
	const prefix = "/v1/users/"
	if !strings.HasPrefix(path, prefix) {
		return ""
	}
	rest := path[len(prefix):]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
