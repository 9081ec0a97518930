package api

import (
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/security"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const localPatientID = "patient_id"

// authMiddleware verifies the bearer token and stores its subject as the
// patient id for the rest of the request.
func (s *Server) authMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		auth := c.Get("Authorization")
		if auth == "" {
			return s.fail(c, apperrors.Invalid(apperrors.ErrUnauthorized, "missing authorization header"))
		}

		tokenString := strings.TrimPrefix(auth, "Bearer ")
		subject, err := ParseToken(s.config.Security.JWTSecret, tokenString)
		if err != nil {
			return s.fail(c, apperrors.Invalid(apperrors.ErrUnauthorized, "invalid token"))
		}
		if err := security.ValidatePatientID(subject); err != nil {
			return s.fail(c, apperrors.Invalid(apperrors.ErrUnauthorized, "invalid token subject"))
		}

		c.Locals(localPatientID, subject)
		return c.Next()
	}
}

func patientID(c *fiber.Ctx) string {
	id, _ := c.Locals(localPatientID).(string)
	return id
}

// limiterIdleTTL is how long a subject's bucket is kept after its last
// request. newSubjectLimiter raises it to the full refill time when that is
// longer, so a dropped bucket is always one that had refilled.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// subjectLimiter hands out one token bucket per authenticated subject and
// drops buckets that have been idle for longer than idleTTL.
type subjectLimiter struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
	limiters  map[string]*limiterEntry
}

func newSubjectLimiter(rps float64, burst int) *subjectLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	ttl := limiterIdleTTL
	if refill := time.Duration(float64(burst) / rps * float64(time.Second)); refill > ttl {
		ttl = refill
	}
	return &subjectLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  ttl,
		now:      time.Now,
		limiters: make(map[string]*limiterEntry),
	}
}

func (l *subjectLimiter) Allow(subject string) bool {
	if l == nil {
		return true
	}
	now := l.now()

	l.mu.Lock()
	if l.lastSweep.IsZero() {
		l.lastSweep = now
	}
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweep(now)
	}
	entry, ok := l.limiters[subject]
	if !ok {
		entry = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[subject] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	return entry.lim.AllowN(now, 1)
}

// sweep must be called with mu held
func (l *subjectLimiter) sweep(now time.Time) {
	for subject, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= l.idleTTL {
			delete(l.limiters, subject)
		}
	}
	l.lastSweep = now
}

func (s *Server) rateLimitMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !s.limiter.Allow(patientID(c)) {
			s.metrics.RecordRequestBlocked()
			return s.fail(c, apperrors.ErrRateLimited)
		}
		return c.Next()
	}
}

func (s *Server) metricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		s.metrics.RecordHTTPRequest(c.Method(), c.Route().Path, status)
		return err
	}
}
