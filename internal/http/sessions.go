package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/services"
	"ledger/internal/session"
	"ledger/internal/telemetry"
)

// UserHeader carries the authenticated user id set by the fronting auth proxy.
const UserHeader = "X-User-ID"

type userKeyType struct{}

// requireUser rejects requests without a valid user id and stores the
// canonical id in the request context.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(UserHeader))
		if raw == "" {
			writeError(w, r, &AppError{Code: CodeUnauthorized, Message: "missing " + UserHeader + " header", StatusCode: http.StatusUnauthorized})
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, r, &AppError{Code: CodeUnauthorized, Message: "invalid " + UserHeader + " header", StatusCode: http.StatusUnauthorized, Internal: err})
			return
		}

		userID := id.String()
		ctx := context.WithValue(r.Context(), userKeyType{}, userID)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKeyType{}).(string)
	return id
}

func userKey(r *http.Request) string {
	return userFrom(r.Context())
}

// sessionRegistry keeps one open session per recently active user.
type sessionRegistry struct {
	cache     *cache.LRUCache[*session.Session]
	ledger    *services.LedgerService
	processor *services.RecurringProcessor
	today     func() core.Date
}

func newSessionRegistry(ledger *services.LedgerService, processor *services.RecurringProcessor, size int, ttl time.Duration, today func() core.Date) *sessionRegistry {
	if size <= 0 {
		size = 1000
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &sessionRegistry{
		cache: cache.NewLRUCache(size, ttl, cache.WithEvictionHook(func(string, *session.Session) {
			telemetry.SessionsOpen.Dec()
		})),
		ledger:    ledger,
		processor: processor,
		today:     today,
	}
}

// get returns the user's session, opening it on first use. A session whose
// initial read failed is served but not cached, so the next request retries
// the read; degraded reports that case.
func (reg *sessionRegistry) get(ctx context.Context, userID string) (*session.Session, bool, error) {
	degraded := false
	sess, err := reg.cache.GetOrLoad(userID, func() (*session.Session, bool, error) {
		// The session outlives this request.
		opened, err := session.Open(context.WithoutCancel(ctx), userID, reg.ledger, reg.processor, reg.today())
		if err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Serving degraded session", log.FieldError, err)
			degraded = true
			return opened, false, nil
		}
		telemetry.SessionsOpen.Inc()
		return opened, true, nil
	})
	return sess, degraded, err
}

// drop forgets the user's cached session.
func (reg *sessionRegistry) drop(userID string) {
	reg.cache.Delete(userID)
}
