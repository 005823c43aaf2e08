package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/api/http/handlers"
	"github.com/spec-kit/ticket-lifecycle/internal/config"
	"github.com/spec-kit/ticket-lifecycle/internal/observability"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
	"github.com/spec-kit/ticket-lifecycle/internal/service"
	"github.com/spec-kit/ticket-lifecycle/internal/sla"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code      string         `json:"code"`
		Message   string         `json:"message"`
		Details   map[string]any `json:"details"`
		Retryable bool           `json:"retryable"`
	} `json:"error"`
}

func newTestApp(t *testing.T) (*fiber.App, *observability.Metrics) {
	t.Helper()
	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(store.Close)

	seed := []string{
		`INSERT INTO users (name) VALUES ('requester'), ('manager'), ('technician')`,
		`INSERT INTO statuses (name) VALUES ('Open'), ('In Progress'), ('Closed')`,
		`INSERT INTO categories (name, response_hours, resolution_hours, escalation_hours) VALUES ('HVAC', 2, 24, 8)`,
	}
	for _, stmt := range seed {
		if _, err := store.DB().Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	statuses, err := service.ResolveStatuses(context.Background(), store, config.LifecycleConfig{
		ClosedStatusName:  "Closed",
		DefaultStatusName: "Open",
	})
	if err != nil {
		t.Fatalf("resolve statuses: %v", err)
	}

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	engine := service.NewLifecycleEngine(service.LifecycleDependencies{
		Store:    store,
		Statuses: statuses,
		Clock:    sla.NewFakeClock(time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)),
		Metrics:  metrics,
		Logger:   logger,
	})

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:  handlers.NewHealthHandler("test", "dev", map[string]handlers.Pinger{"store": store}, metrics),
		Tickets: handlers.NewTicketsHandler(engine),
	})
	return app, metrics
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any, headers map[string]string) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("decode %s %s: %v (%s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, env
}

func createTicket(t *testing.T, app *fiber.App) int64 {
	t.Helper()
	status, env := doRequest(t, app, fiber.MethodPost, "/tickets", map[string]any{
		"requester_id": 1,
		"category_id":  1,
		"description":  "Thermostat unresponsive",
	}, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("create status %d: %+v", status, env.Error)
	}
	var ticket struct {
		ID       int64  `json:"id"`
		Priority string `json:"priority"`
	}
	if err := json.Unmarshal(env.Data, &ticket); err != nil {
		t.Fatalf("decode ticket: %v", err)
	}
	return ticket.ID
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	app, metrics := newTestApp(t)
	id := createTicket(t, app)
	actor := map[string]string{handlers.ActorHeader: "2"}

	status, env := doRequest(t, app, fiber.MethodPost, "/tickets/1/assign", map[string]any{"assignee_id": 3}, actor)
	if status != fiber.StatusOK {
		t.Fatalf("assign status %d: %+v", status, env.Error)
	}
	status, _ = doRequest(t, app, fiber.MethodPost, "/tickets/1/escalate", nil, actor)
	if status != fiber.StatusOK {
		t.Fatalf("escalate status %d", status)
	}
	status, env = doRequest(t, app, fiber.MethodPost, "/tickets/1/close", map[string]any{"resolution": "replaced fuse"}, actor)
	if status != fiber.StatusOK {
		t.Fatalf("close status %d: %+v", status, env.Error)
	}

	status, env = doRequest(t, app, fiber.MethodGet, "/tickets/1/audit", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("audit status %d", status)
	}
	var entries []struct {
		ActorID     int64  `json:"actor_id"`
		Description string `json:"description"`
	}
	if err := json.Unmarshal(env.Data, &entries); err != nil {
		t.Fatalf("decode audit: %v", err)
	}
	want := []string{
		"Ticket assigned to user 3",
		"Ticket priority changed from Medium to High",
		"Ticket escalated from Medium to High",
		"Ticket closed and resolution logged.",
	}
	if len(entries) != len(want) {
		t.Fatalf("expected %d entries, got %+v", len(want), entries)
	}
	for i, w := range want {
		if entries[i].Description != w {
			t.Fatalf("entry %d: expected %q, got %q", i, w, entries[i].Description)
		}
	}
	if entries[1].ActorID != 3 {
		t.Fatalf("priority change should be attributed to assignee 3, got %d", entries[1].ActorID)
	}

	status, env = doRequest(t, app, fiber.MethodGet, "/tickets/1/sla", nil, nil)
	if status != fiber.StatusOK {
		t.Fatalf("sla status %d", status)
	}
	var snapshot sla.Snapshot
	if err := json.Unmarshal(env.Data, &snapshot); err != nil {
		t.Fatalf("decode sla: %v", err)
	}
	if snapshot.TicketID != id || snapshot.RemainingHours != 24 {
		t.Fatalf("unexpected sla snapshot %+v", snapshot)
	}

	status, _ = doRequest(t, app, fiber.MethodDelete, "/tickets/1", nil, nil)
	if status != fiber.StatusNoContent {
		t.Fatalf("delete status %d", status)
	}
	status, env = doRequest(t, app, fiber.MethodGet, "/tickets/1", nil, nil)
	if status != fiber.StatusNotFound || env.Error == nil || env.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected NOT_FOUND after delete, got %d %+v", status, env.Error)
	}

	if metrics.Snapshot().Operations["close|OK"] != 1 {
		t.Fatalf("close not counted: %v", metrics.Snapshot().Operations)
	}
}

func TestErrorResponses(t *testing.T) {
	app, _ := newTestApp(t)
	createTicket(t, app)

	cases := []struct {
		name    string
		method  string
		path    string
		body    any
		headers map[string]string
		status  int
		code    string
	}{
		{"bad id", fiber.MethodGet, "/tickets/abc", nil, nil, fiber.StatusBadRequest, "VALIDATION_FAILED"},
		{"missing ticket", fiber.MethodPost, "/tickets/99/escalate", nil, nil, fiber.StatusNotFound, "NOT_FOUND"},
		{"bad actor header", fiber.MethodPost, "/tickets/1/escalate", nil, map[string]string{handlers.ActorHeader: "x"}, fiber.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown actor", fiber.MethodPost, "/tickets/1/escalate", nil, map[string]string{handlers.ActorHeader: "42"}, fiber.StatusNotFound, "NOT_FOUND"},
		{"missing resolution", fiber.MethodPost, "/tickets/1/close", map[string]any{}, nil, fiber.StatusBadRequest, "VALIDATION_FAILED"},
		{"stale version", fiber.MethodPatch, "/tickets/1", map[string]any{"description": "new"}, map[string]string{fiber.HeaderIfMatch: `"7"`}, fiber.StatusConflict, "CONCURRENCY_CONFLICT"},
		{"unknown priority", fiber.MethodPatch, "/tickets/1", map[string]any{"priority": "critical"}, nil, fiber.StatusBadRequest, "VALIDATION_FAILED"},
		{"sla before creation", fiber.MethodPost, "/tickets", map[string]any{
			"requester_id": 1, "category_id": 1, "description": "x",
			"created_at": "2026-02-02T08:00:00Z", "sla_due": "2026-02-02T07:00:00Z",
		}, nil, fiber.StatusBadRequest, "VALIDATION_FAILED"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, env := doRequest(t, app, tc.method, tc.path, tc.body, tc.headers)
			if status != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, status)
			}
			if env.Error == nil || env.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, env.Error)
			}
		})
	}
}

func TestPatchWithMatchingVersion(t *testing.T) {
	app, _ := newTestApp(t)
	createTicket(t, app)

	status, env := doRequest(t, app, fiber.MethodPatch, "/tickets/1", map[string]any{"priority": "Urgent"},
		map[string]string{fiber.HeaderIfMatch: "1", handlers.ActorHeader: "2"})
	if status != fiber.StatusOK {
		t.Fatalf("patch status %d: %+v", status, env.Error)
	}
	var ticket struct {
		Priority string `json:"priority"`
		Version  int64  `json:"version"`
	}
	if err := json.Unmarshal(env.Data, &ticket); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ticket.Priority != "Urgent" || ticket.Version != 2 {
		t.Fatalf("unexpected ticket %+v", ticket)
	}
}

func TestDirectResolutionEndpointClosesTicket(t *testing.T) {
	app, _ := newTestApp(t)
	createTicket(t, app)

	status, _ := doRequest(t, app, fiber.MethodPost, "/tickets/1/resolutions", map[string]any{"resolution": "tenant reset breaker"}, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("resolution status %d", status)
	}
	_, env := doRequest(t, app, fiber.MethodGet, "/tickets/1", nil, nil)
	var ticket struct {
		StatusID int64 `json:"status_id"`
	}
	if err := json.Unmarshal(env.Data, &ticket); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ticket.StatusID != 3 {
		t.Fatalf("expected Closed status 3, got %d", ticket.StatusID)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/health/ready", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected ready, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err = app.Test(req, -1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	var snap observability.MetricsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode metrics: %v", err)
	}
	if snap.Requests["/health/ready|GET|200"] != 1 {
		t.Fatalf("ready probe not counted: %v", snap.Requests)
	}
}

func TestPriorityNamesAreCaseInsensitive(t *testing.T) {
	app, _ := newTestApp(t)

	status, env := doRequest(t, app, fiber.MethodPost, "/tickets", map[string]any{
		"requester_id": 1,
		"category_id":  1,
		"description":  "Water heater pilot out",
		"priority":     "urgent",
	}, nil)
	if status != fiber.StatusCreated {
		t.Fatalf("create status %d: %+v", status, env.Error)
	}
	var ticket struct {
		Priority string `json:"priority"`
	}
	if err := json.Unmarshal(env.Data, &ticket); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ticket.Priority != "Urgent" {
		t.Fatalf("expected Urgent, got %q", ticket.Priority)
	}

	status, env = doRequest(t, app, fiber.MethodPatch, "/tickets/1", map[string]any{"priority": " low "}, nil)
	if status != fiber.StatusOK {
		t.Fatalf("patch status %d: %+v", status, env.Error)
	}
	if err := json.Unmarshal(env.Data, &ticket); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ticket.Priority != "Low" {
		t.Fatalf("expected Low, got %q", ticket.Priority)
	}
}

func TestConflictIsRetryableAndCountedByRoute(t *testing.T) {
	app, metrics := newTestApp(t)
	createTicket(t, app)

	status, env := doRequest(t, app, fiber.MethodPatch, "/tickets/1", map[string]any{"description": "new"},
		map[string]string{fiber.HeaderIfMatch: "5"})
	if status != fiber.StatusConflict || env.Error == nil {
		t.Fatalf("expected conflict, got %d", status)
	}
	if !env.Error.Retryable {
		t.Fatal("conflict should be marked retryable")
	}

	_, env = doRequest(t, app, fiber.MethodGet, "/tickets/99", nil, nil)
	if env.Error == nil || env.Error.Retryable {
		t.Fatalf("not found must not be retryable: %+v", env.Error)
	}

	errs := metrics.Snapshot().Errors
	if errs["/tickets/:id|PATCH|CONCURRENCY_CONFLICT"] != 1 || errs["/tickets/:id|GET|NOT_FOUND"] != 1 {
		t.Fatalf("unexpected error counters: %v", errs)
	}
}
