package gateway

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/turnpike-ai/turnpike/internal/idempotency"
	"github.com/turnpike-ai/turnpike/internal/log"
	"github.com/turnpike-ai/turnpike/internal/orchestrator"
	"github.com/turnpike-ai/turnpike/internal/reliability"
	"github.com/turnpike-ai/turnpike/internal/store"
	"github.com/turnpike-ai/turnpike/internal/voice"
	"github.com/turnpike-ai/turnpike/pkg/security"
)

// mapError converts domain errors to HTTP errors per the gateway's status
// contract: 404 missing entities, 409 duplicate in flight, 502 providers
// exhausted, 503 storage down.
func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "not found")
	case errors.Is(err, orchestrator.ErrInFlight):
		c.Set("Retry-After", "1")
		return fiber.NewError(fiber.StatusConflict, "request with this idempotency key is in flight")
	case errors.Is(err, idempotency.ErrStoreUnavailable), errors.Is(err, store.ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, "storage unavailable")
	}

	var exhausted *reliability.ExhaustedError
	if errors.As(err, &exhausted) {
		return fiber.NewError(fiber.StatusBadGateway,
			"agent unavailable: tried "+strings.Join(exhausted.Providers(), ", "))
	}

	log.Error("unhandled gateway error", "error", err)
	return fiber.NewError(fiber.StatusInternalServerError, "internal error")
}

// --- Tenants ---

type createTenantRequest struct {
	Name string `json:"name"`
}

type createTenantResponse struct {
	TenantID string `json:"tenantId"`
	APIKey   string `json:"apiKey"`
}

func (s *Server) handleCreateTenant(c *fiber.Ctx) error {
	var req createTenantRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}

	apiKey, err := security.NewAPIKey()
	if err != nil {
		return mapError(c, err)
	}

	tenant := &store.Tenant{
		ID:         uuid.NewString(),
		Name:       strings.TrimSpace(req.Name),
		APIKeyHash: security.HashAPIKey(apiKey, s.cfg.APIKeyPepper),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.deps.Store.CreateTenant(c.UserContext(), tenant); err != nil {
		return mapError(c, err)
	}

	log.Info("tenant created", "tenant", tenant.ID, "name", tenant.Name)

	// The raw key is returned exactly once.
	return c.Status(fiber.StatusCreated).JSON(createTenantResponse{
		TenantID: tenant.ID,
		APIKey:   apiKey,
	})
}

func (s *Server) handleTenantMe(c *fiber.Ctx) error {
	return c.JSON(currentTenant(c))
}

// --- Agents ---

type agentRequest struct {
	Name             string   `json:"name"`
	PrimaryProvider  string   `json:"primaryProvider"`
	FallbackProvider string   `json:"fallbackProvider"`
	SystemPrompt     string   `json:"systemPrompt"`
	EnabledTools     []string `json:"enabledTools"`
}

// validateAgent checks the providers against the registry so a turn never
// reaches dispatch with an unknown backend.
func (s *Server) validateAgent(req *agentRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	if !s.deps.Registry.Has(req.PrimaryProvider) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown primary provider")
	}
	if req.FallbackProvider != "" && !s.deps.Registry.Has(req.FallbackProvider) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown fallback provider")
	}
	return nil
}

func (s *Server) handleCreateAgent(c *fiber.Ctx) error {
	var req agentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.validateAgent(&req); err != nil {
		return err
	}

	now := time.Now().UTC()
	agent := &store.Agent{
		ID:               uuid.NewString(),
		TenantID:         currentTenant(c).ID,
		Name:             strings.TrimSpace(req.Name),
		PrimaryProvider:  req.PrimaryProvider,
		FallbackProvider: req.FallbackProvider,
		SystemPrompt:     req.SystemPrompt,
		EnabledTools:     req.EnabledTools,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.deps.Store.CreateAgent(c.UserContext(), agent); err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(agent)
}

func (s *Server) handleListAgents(c *fiber.Ctx) error {
	agents, err := s.deps.Store.ListAgents(c.UserContext(), currentTenant(c).ID)
	if err != nil {
		return mapError(c, err)
	}
	if agents == nil {
		agents = []*store.Agent{}
	}
	return c.JSON(agents)
}

func (s *Server) handleUpdateAgent(c *fiber.Ctx) error {
	tenant := currentTenant(c)
	agent, err := s.deps.Store.AgentByID(c.UserContext(), tenant.ID, c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}

	var req agentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.validateAgent(&req); err != nil {
		return err
	}

	agent.Name = strings.TrimSpace(req.Name)
	agent.PrimaryProvider = req.PrimaryProvider
	agent.FallbackProvider = req.FallbackProvider
	agent.SystemPrompt = req.SystemPrompt
	agent.EnabledTools = req.EnabledTools
	agent.UpdatedAt = time.Now().UTC()

	if err := s.deps.Store.UpdateAgent(c.UserContext(), agent); err != nil {
		return mapError(c, err)
	}
	return c.JSON(agent)
}

// --- Sessions ---

type createSessionRequest struct {
	AgentID    string `json:"agentId"`
	CustomerID string `json:"customerId"`
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil || req.AgentID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "agentId is required")
	}

	tenant := currentTenant(c)
	if _, err := s.deps.Store.AgentByID(c.UserContext(), tenant.ID, req.AgentID); err != nil {
		return mapError(c, err)
	}

	sess := &store.Session{
		ID:         uuid.NewString(),
		TenantID:   tenant.ID,
		AgentID:    req.AgentID,
		CustomerID: req.CustomerID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.deps.Store.CreateSession(c.UserContext(), sess); err != nil {
		return mapError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sess)
}

func (s *Server) handleListSessions(c *fiber.Ctx) error {
	summaries, err := s.deps.Store.SessionSummaries(c.UserContext(), currentTenant(c).ID)
	if err != nil {
		return mapError(c, err)
	}
	if summaries == nil {
		summaries = []*store.SessionSummary{}
	}
	return c.JSON(summaries)
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	tenant := currentTenant(c)
	sessionID := c.Params("id")

	if _, err := s.deps.Store.SessionByID(c.UserContext(), tenant.ID, sessionID); err != nil {
		return mapError(c, err)
	}
	messages, err := s.deps.Store.ListMessages(c.UserContext(), tenant.ID, sessionID)
	if err != nil {
		return mapError(c, err)
	}
	if messages == nil {
		messages = []*store.Message{}
	}
	return c.JSON(messages)
}

// --- Turns ---

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	clientKey := c.Get("Idempotency-Key")
	if clientKey == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing Idempotency-Key")
	}

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	result, err := s.deps.Turns.HandleTurn(c.UserContext(), orchestrator.TurnInput{
		TenantID:  currentTenant(c).ID,
		SessionID: c.Params("id"),
		ClientKey: clientKey,
		Text:      req.Text,
	})
	if err != nil {
		return mapError(c, err)
	}

	if result.Replayed {
		c.Set("X-Idempotent-Replay", "true")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(result.Payload)
}

func (s *Server) handleVoiceTurn(c *fiber.Ctx) error {
	tenant := currentTenant(c)
	sessionID := c.Params("id")

	// Session validation happens before any audio work so a bad session id
	// fails fast with a 404.
	if _, err := s.deps.Store.SessionByID(c.UserContext(), tenant.ID, sessionID); err != nil {
		return mapError(c, err)
	}

	fileHeader, err := c.FormFile("audio")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing audio upload")
	}
	file, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to read audio")
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "failed to read audio")
	}
	if len(audio) < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "empty audio")
	}

	out, err := s.deps.Voice.Handle(c.UserContext(), voice.Input{
		TenantID:  tenant.ID,
		SessionID: sessionID,
		Audio:     audio,
	})
	if err != nil {
		return mapError(c, err)
	}

	c.Set("X-Correlation-Id", out.CorrelationID)
	c.Set("X-Transcript", headerSafe(out.Transcript))
	c.Set("X-Assistant-Transcript", headerSafe(out.AssistantText))
	c.Set(fiber.HeaderContentType, out.MediaType)
	return c.Send(out.Audio)
}

// headerSafe strips newlines and caps the value so transcripts fit in a
// response header.
func headerSafe(s string) string {
	s = strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// --- Usage ---

func (s *Server) handleUsage(c *fiber.Ctx) error {
	from, err := parseDateBound(c.Query("from"), false)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid from date")
	}
	to, err := parseDateBound(c.Query("to"), true)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid to date")
	}

	report, err := s.deps.Reporter.Usage(c.UserContext(), currentTenant(c).ID, from, to)
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(report)
}

// parseDateBound accepts YYYY-MM-DD or RFC 3339. A date-only upper bound
// covers the whole day.
func parseDateBound(v string, upper bool) (time.Time, error) {
	if v == "" {
		return time.Time{}, errors.New("missing date")
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		if upper {
			t = t.Add(24 * time.Hour)
		}
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
