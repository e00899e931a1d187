package agent

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackcard-ai/concierge/internal/domain"
	"github.com/blackcard-ai/concierge/internal/store"
)

func newAgentRouter(t *testing.T, gen *scriptedGen, limit int) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	repo := seededRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	orch := NewOrchestrator(OrchestratorConfig{Generator: gen, Repo: repo})
	h := NewHandler(orch, repo, NewRateLimiter(ctx, limit, time.Minute))

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	h.RegisterWebhooks(r)
	return r, repo
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) domain.AgentResponse {
	t.Helper()
	var resp domain.AgentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

func TestHandleWearable(t *testing.T) {
	t.Parallel()
	h, repo := newAgentRouter(t, &scriptedGen{replies: []string{"Easy walk only."}}, 0)

	w := post(t, h, "/events/wearable", `{"device_type":"whoop","recovery_score":25}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeResponse(t, w)
	assert.Equal(t, AgentBiometricSentry, resp.AgentName)
	assert.Equal(t, domain.ActionRed, resp.SuggestedAction)

	latest, err := repo.LatestEvent(context.Background(), DemoClientID, domain.EventTypeWearable)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.ActionRed, latest.AgentDecision)
	assert.Equal(t, "Easy walk only.", latest.AgentMessage)
	assert.Equal(t, 25, ScoreFromPayload(latest.Payload))
}

func TestHandleVisionRedactsMedia(t *testing.T) {
	t.Parallel()
	h, repo := newAgentRouter(t, &scriptedGen{}, 0)
	image := base64.StdEncoding.EncodeToString([]byte("\xff\xd8\xff\xe0fake-jpeg"))

	w := post(t, h, "/events/vision", `{"user_id":"auth0|ian","image_base64":"`+image+`","user_query":"Knee friendly"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.ActionWorkoutGenerated, decodeResponse(t, w).SuggestedAction)

	latest, err := repo.LatestEvent(context.Background(), "auth0|ian", domain.EventTypeVision)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Contains(t, string(latest.Payload), domain.RedactedMedia)
	assert.NotContains(t, string(latest.Payload), image)
}

func TestHandleChat(t *testing.T) {
	t.Parallel()
	h, _ := newAgentRouter(t, &scriptedGen{}, 0)

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/events/chat", `{"user_id":"1","message":"  "}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, "/events/chat", `{"message":`).Code)

	w := post(t, h, "/events/chat", `{"user_id":"1","message":"What's on today?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.ActionIdle, decodeResponse(t, w).SuggestedAction)
}

func TestHandleIntervention(t *testing.T) {
	t.Parallel()
	h, _ := newAgentRouter(t, &scriptedGen{replies: []string{"Time to move, Bob."}}, 0)

	w := post(t, h, "/events/intervention/auth0|bob", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "Time to move, Bob.", got["message"])
	assert.Equal(t, domain.ActionManualIntervention, got["decision"])

	w = get(t, h, "/events?limit=1")
	require.Equal(t, http.StatusOK, w.Code)
	var events []domain.EventLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventTypeIntervention, events[0].EventType)
}

func TestHandlePlan(t *testing.T) {
	t.Parallel()
	h, _ := newAgentRouter(t, &scriptedGen{replies: []string{validPlan}}, 0)

	w := get(t, h, "/workouts/plan/auth0|alice")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		ClientID      string          `json:"client_id"`
		Outcome       string          `json:"outcome"`
		RecoveryScore int             `json:"recovery_score"`
		Structured    json.RawMessage `json:"structured"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "auth0|alice", got.ClientID)
	assert.Equal(t, PlanStructured, got.Outcome)
	assert.Equal(t, 85, got.RecoveryScore)
	assert.NotEmpty(t, got.Structured)
}

func TestListEventsValidation(t *testing.T) {
	t.Parallel()
	h, _ := newAgentRouter(t, &scriptedGen{}, 0)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/events?limit=0").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/events?limit=ten").Code)

	w := get(t, h, "/events?limit=500")
	require.Equal(t, http.StatusOK, w.Code)
	var events []domain.EventLog
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 3)

	w = get(t, h, "/events?trainer_id=auth0|nobody")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestEventRateLimit(t *testing.T) {
	t.Parallel()
	h, _ := newAgentRouter(t, &scriptedGen{}, 2)

	for range 2 {
		assert.Equal(t, http.StatusOK, post(t, h, "/events/wearable", `{"user_id":"auth0|alice","recovery_score":80}`).Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, post(t, h, "/events/wearable", `{"user_id":"auth0|alice","recovery_score":80}`).Code)
	assert.Equal(t, http.StatusOK, post(t, h, "/events/wearable", `{"user_id":"auth0|bob","recovery_score":80}`).Code)
}

func TestPlanAndInterventionShareRateLimit(t *testing.T) {
	t.Parallel()
	h, _ := newAgentRouter(t, &scriptedGen{}, 2)

	assert.Equal(t, http.StatusOK, get(t, h, "/workouts/plan/auth0|alice").Code)
	assert.Equal(t, http.StatusOK, post(t, h, "/events/intervention/auth0|alice", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/workouts/plan/auth0|alice").Code)
	assert.Equal(t, http.StatusTooManyRequests, post(t, h, "/events/intervention/auth0|alice", "").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/workouts/plan/auth0|bob").Code)
}

func TestRateLimiterWindow(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	now := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(ctx, 1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	now = now.Add(61 * time.Second)
	assert.True(t, rl.Allow("a"))

	now = now.Add(2 * time.Minute)
	rl.evict()
	assert.Empty(t, rl.requests)

	var nilLimiter *RateLimiter
	assert.True(t, nilLimiter.Allow("a"))
}

func TestTerraWebhook(t *testing.T) {
	t.Parallel()
	h, repo := newAgentRouter(t, &scriptedGen{}, 0)

	w := post(t, h, "/webhooks/terra", `{"type":"body","user":{"user_id":"auth0|alice"},"data":[{}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ignored","reason":"Type body not relevant"}`, w.Body.String())

	w = post(t, h, "/webhooks/terra", `{"type":"daily","user":{"user_id":"auth0|alice"},"data":[]}`)
	assert.JSONEq(t, `{"status":"ignored","reason":"No data points"}`, w.Body.String())

	w = post(t, h, "/webhooks/terra", `{"type":"daily","user":{"user_id":"auth0|alice"},
		"data":[{"scores":{"readiness":32},"device_data":{"name":"Oura Ring"}}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","action":"RED"}`, w.Body.String())

	latest, err := repo.LatestEvent(context.Background(), "auth0|alice", domain.EventTypeWearable)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.ActionRed, latest.AgentDecision)
	assert.Contains(t, string(latest.Payload), "Oura Ring")
}

func TestTerraReadingFeedsPlan(t *testing.T) {
	t.Parallel()
	h, repo := newAgentRouter(t, &scriptedGen{}, 0)

	w := post(t, h, "/webhooks/terra", `{"type":"daily","user":{"user_id":"terra-9"},
		"data":[{"scores":{"recovery":20},"device_data":{"name":"WHOOP 4.0"}}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"status":"ok","action":"RED"}`, w.Body.String())

	orch := NewOrchestrator(OrchestratorConfig{Generator: &scriptedGen{}, Repo: repo})
	assert.Equal(t, 20, orch.Plan(context.Background(), "terra-9").RecoveryScore)
}

func TestWearableScoreNotShadowedByRawData(t *testing.T) {
	t.Parallel()
	h, repo := newAgentRouter(t, &scriptedGen{}, 0)

	w := post(t, h, "/events/wearable",
		`{"user_id":"auth0|carol","recovery_score":20,"data":{"scores":{"sleep":90}}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.ActionRed, decodeResponse(t, w).SuggestedAction)

	orch := NewOrchestrator(OrchestratorConfig{Generator: &scriptedGen{}, Repo: repo})
	assert.Equal(t, 20, orch.Plan(context.Background(), "auth0|carol").RecoveryScore)
}

func TestTerraToWearable(t *testing.T) {
	t.Parallel()
	got := TerraToWearable(map[string]any{"scores": map[string]any{"recovery": 71.0, "readiness": 40.0}})
	assert.Equal(t, 71, got.RecoveryScore)
	assert.Equal(t, "Unknown Device", got.DeviceType)

	got = TerraToWearable(map[string]any{})
	assert.Equal(t, 0, got.RecoveryScore)
}

func TestWhatsAppWebhook(t *testing.T) {
	t.Parallel()
	h, repo := newAgentRouter(t, &scriptedGen{}, 0)

	assert.Equal(t, http.StatusBadRequest, post(t, h, "/webhooks/whatsapp", `{"From":"","Body":"hi"}`).Code)

	w := post(t, h, "/webhooks/whatsapp", `{"From":"+447700900123","Body":"Can I train today?"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, idleMessage, got["reply"])

	latest, err := repo.LatestEvent(context.Background(), "+447700900123", domain.EventTypeChat)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, domain.ActionIdle, latest.AgentDecision)
}
