package gateway

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/turnpike-ai/turnpike/internal/store"
	"github.com/turnpike-ai/turnpike/pkg/observability"
	"github.com/turnpike-ai/turnpike/pkg/security"
)

// tenantKey is the fiber locals key holding the authenticated *store.Tenant.
const tenantKey = "tenant"

// authMiddleware resolves the tenant from the X-API-Key header. Only the
// peppered hash ever touches the store.
func (s *Server) authMiddleware(c *fiber.Ctx) error {
	rawKey := c.Get("X-API-Key")
	if rawKey == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing X-API-Key")
	}

	hash := security.HashAPIKey(rawKey, s.cfg.APIKeyPepper)
	tenant, err := s.deps.Store.TenantByAPIKeyHash(c.UserContext(), hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid API key")
		}
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage unavailable")
	}

	c.Locals(tenantKey, tenant)
	return c.Next()
}

// rateLimitMiddleware rejects requests over the tenant's admission budget.
func (s *Server) rateLimitMiddleware(c *fiber.Ctx) error {
	if s.deps.RateLimit == nil {
		return c.Next()
	}
	tenant := currentTenant(c)
	if !s.deps.RateLimit.Allow(tenant.ID) {
		c.Set("Retry-After", "1")
		return fiber.NewError(fiber.StatusTooManyRequests, "rate limit exceeded")
	}
	return c.Next()
}

// metricsMiddleware records per-route request metrics. The route pattern
// keeps the label cardinality bounded.
func (s *Server) metricsMiddleware(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}

	path := c.Route().Path
	observability.RecordHTTPRequest(c.Method(), path, strconv.Itoa(status), time.Since(start))
	return err
}

// currentTenant returns the tenant set by authMiddleware.
func currentTenant(c *fiber.Ctx) *store.Tenant {
	return c.Locals(tenantKey).(*store.Tenant)
}
