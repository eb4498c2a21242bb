package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"example.com/avatar/internal/auth"
	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/export"
	"example.com/avatar/internal/morph"
	"example.com/avatar/internal/personalization"
	"example.com/avatar/internal/synthesis"
)

func newTestHandler(t *testing.T, repo domain.AvatarRepository) *Handler {
	t.Helper()
	// No shape-model assets in the temp dir, so the placeholder backend serves.
	provider := synthesis.NewProvider(t.TempDir(), domain.GenderNeutral)
	exporter := export.NewFileExporter(t.TempDir())
	service := domain.NewService(repo, provider, personalization.NewAdjuster(), morph.NewEngine(), exporter, domain.GenderNeutral)
	return NewHandler(service)
}

func authedRequest(method, target string, body []byte, scopes ...string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	scopeSet := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		scopeSet[scope] = struct{}{}
	}
	claims := &auth.Claims{
		Subject:   "tester",
		TenantID:  "tenant-1",
		Scopes:    scopeSet,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return req.WithContext(auth.WithClaims(req.Context(), claims))
}

func TestGenerateAvatarSuccess(t *testing.T) {
	repo := newMemoryRepo()
	handler := newTestHandler(t, repo)

	body, _ := json.Marshal(GenerateAvatarRequest{
		UserID: "user-1",
		Metrics: DexaMetricsPayload{
			TotalFatPercent: fp(25),
			LeanMassKg:      fp(55),
		},
	})

	rr := httptest.NewRecorder()
	handler.generateAvatar(rr, authedRequest(http.MethodPost, "/v1/avatars", body, auth.ScopeAvatarsWrite))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp GenerateAvatarResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Avatar.AvatarID == "" {
		t.Fatal("expected avatar id")
	}
	if resp.Avatar.Backend != string(domain.BackendPlaceholder) {
		t.Fatalf("expected placeholder backend got %s", resp.Avatar.Backend)
	}
	if !resp.Avatar.AssumedBMI {
		t.Fatal("expected assumed_bmi true without height/weight")
	}
	for i, beta := range resp.Avatar.Betas {
		if beta != 0 {
			t.Fatalf("expected zero beta %d for reference body, got %f", i, beta)
		}
	}
	if resp.Avatar.Scale != 1.0 {
		t.Fatalf("expected scale 1.0 got %f", resp.Avatar.Scale)
	}
	if resp.Replay {
		t.Fatal("first generation must not be a replay")
	}
}

func TestGenerateAvatarIdempotentReplay(t *testing.T) {
	repo := newMemoryRepo()
	handler := newTestHandler(t, repo)

	body, _ := json.Marshal(GenerateAvatarRequest{
		UserID:  "user-1",
		Metrics: DexaMetricsPayload{TotalFatPercent: fp(25), LeanMassKg: fp(55)},
	})

	first := authedRequest(http.MethodPost, "/v1/avatars", body, auth.ScopeAvatarsWrite)
	first.Header.Set("Idempotency-Key", "req-42")
	rr := httptest.NewRecorder()
	handler.generateAvatar(rr, first)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rr.Code)
	}

	second := authedRequest(http.MethodPost, "/v1/avatars", body, auth.ScopeAvatarsWrite)
	second.Header.Set("Idempotency-Key", "req-42")
	rr = httptest.NewRecorder()
	handler.generateAvatar(rr, second)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 replay got %d", rr.Code)
	}

	var resp GenerateAvatarResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Replay {
		t.Fatal("expected idempotent_replay true")
	}
}

func TestGenerateAvatarWithTargetFat(t *testing.T) {
	repo := newMemoryRepo()
	handler := newTestHandler(t, repo)

	target := 18.0
	body, _ := json.Marshal(GenerateAvatarRequest{
		UserID:           "user-1",
		Metrics:          DexaMetricsPayload{TotalFatPercent: fp(32), LeanMassKg: fp(55)},
		TargetFatPercent: &target,
	})

	rr := httptest.NewRecorder()
	handler.generateAvatar(rr, authedRequest(http.MethodPost, "/v1/avatars", body, auth.ScopeAvatarsWrite))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp GenerateAvatarResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Target == nil {
		t.Fatal("expected target state in response")
	}
	if resp.Target.AvatarID == resp.Avatar.AvatarID {
		t.Fatal("target must be a distinct state")
	}
}

func TestGenerateAvatarImplausibleMetrics(t *testing.T) {
	handler := newTestHandler(t, newMemoryRepo())

	body, _ := json.Marshal(GenerateAvatarRequest{
		UserID:  "user-1",
		Metrics: DexaMetricsPayload{TotalFatPercent: fp(85), LeanMassKg: fp(55)},
	})

	rr := httptest.NewRecorder()
	handler.generateAvatar(rr, authedRequest(http.MethodPost, "/v1/avatars", body, auth.ScopeAvatarsWrite))

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d: %s", rr.Code, rr.Body.String())
	}

	var errBody map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &errBody); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if errBody["type"] != "invalid_metrics" {
		t.Fatalf("expected invalid_metrics got %s", errBody["type"])
	}
}

func TestGenerateAvatarRequiresUserID(t *testing.T) {
	handler := newTestHandler(t, newMemoryRepo())

	body, _ := json.Marshal(GenerateAvatarRequest{
		Metrics: DexaMetricsPayload{TotalFatPercent: fp(25), LeanMassKg: fp(55)},
	})

	rr := httptest.NewRecorder()
	handler.generateAvatar(rr, authedRequest(http.MethodPost, "/v1/avatars", body, auth.ScopeAvatarsWrite))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestGenerateAvatarRequiresWriteScope(t *testing.T) {
	handler := newTestHandler(t, newMemoryRepo())

	body, _ := json.Marshal(GenerateAvatarRequest{
		UserID:  "user-1",
		Metrics: DexaMetricsPayload{TotalFatPercent: fp(25), LeanMassKg: fp(55)},
	})

	rr := httptest.NewRecorder()
	handler.generateAvatar(rr, authedRequest(http.MethodPost, "/v1/avatars", body, auth.ScopeAvatarsRead))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestGetAvatarNotFound(t *testing.T) {
	handler := newTestHandler(t, newMemoryRepo())

	rr := httptest.NewRecorder()
	handler.getAvatar(rr, authedRequest(http.MethodGet, "/v1/avatars/missing", nil, auth.ScopeAvatarsRead), "missing")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestListAvatarsRequiresUserID(t *testing.T) {
	handler := newTestHandler(t, newMemoryRepo())

	rr := httptest.NewRecorder()
	handler.listAvatars(rr, authedRequest(http.MethodGet, "/v1/avatars", nil, auth.ScopeAvatarsRead))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestCreateMorphStepsOutOfRange(t *testing.T) {
	handler := newTestHandler(t, newMemoryRepo())

	for _, steps := range []int{0, 1, 121} {
		body, _ := json.Marshal(CreateMorphRequest{
			UserID:        "user-1",
			StartAvatarID: "a",
			EndAvatarID:   "b",
			Steps:         steps,
		})

		rr := httptest.NewRecorder()
		handler.createMorph(rr, authedRequest(http.MethodPost, "/v1/morphs", body, auth.ScopeAvatarsWrite))

		if rr.Code != http.StatusBadRequest {
			t.Fatalf("steps=%d: expected 400 got %d", steps, rr.Code)
		}
	}
}

func TestCreateMorphSuccess(t *testing.T) {
	repo := newMemoryRepo()
	handler := newTestHandler(t, repo)

	// Generate two real avatars through the pipeline so morphing has
	// consistent placeholder provenance.
	for _, fat := range []float64{32, 18} {
		body, _ := json.Marshal(GenerateAvatarRequest{
			UserID:  "user-1",
			Metrics: DexaMetricsPayload{TotalFatPercent: fp(fat), LeanMassKg: fp(55)},
		})
		rr := httptest.NewRecorder()
		handler.generateAvatar(rr, authedRequest(http.MethodPost, "/v1/avatars", body, auth.ScopeAvatarsWrite))
		if rr.Code != http.StatusCreated {
			t.Fatalf("setup generation failed: %d %s", rr.Code, rr.Body.String())
		}
	}

	if len(repo.order) != 2 {
		t.Fatalf("expected 2 stored avatars, got %d", len(repo.order))
	}

	body, _ := json.Marshal(CreateMorphRequest{
		UserID:        "user-1",
		StartAvatarID: repo.order[0],
		EndAvatarID:   repo.order[1],
		Steps:         3,
	})

	rr := httptest.NewRecorder()
	handler.createMorph(rr, authedRequest(http.MethodPost, "/v1/morphs", body, auth.ScopeAvatarsWrite))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp MorphView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Steps != 3 {
		t.Fatalf("expected 3 steps got %d", resp.Steps)
	}
	if len(resp.StepAssets) != 3 {
		t.Fatalf("expected 3 step assets got %d", len(resp.StepAssets))
	}
	if resp.Backend != string(domain.BackendPlaceholder) {
		t.Fatalf("expected placeholder backend got %s", resp.Backend)
	}
}

func TestGetMorphNotFound(t *testing.T) {
	handler := newTestHandler(t, newMemoryRepo())

	rr := httptest.NewRecorder()
	handler.getMorph(rr, authedRequest(http.MethodGet, "/v1/morphs/missing", nil, auth.ScopeAvatarsRead), "missing")

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
}

func TestHandlersRejectMissingClaims(t *testing.T) {
	handler := newTestHandler(t, newMemoryRepo())

	rr := httptest.NewRecorder()
	handler.generateAvatar(rr, httptest.NewRequest(http.MethodPost, "/v1/avatars", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func fp(v float64) *float64 { return &v }

type memoryRepo struct {
	avatars   map[string]domain.AvatarState
	sequences map[string]domain.MorphSequence
	byIdem    map[string]domain.AvatarState
	order     []string
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		avatars:   make(map[string]domain.AvatarState),
		sequences: make(map[string]domain.MorphSequence),
		byIdem:    make(map[string]domain.AvatarState),
	}
}

func (m *memoryRepo) FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*domain.AvatarState, error) {
	if idempotencyKey == "" {
		return nil, nil
	}
	if state, ok := m.byIdem[idempotencyKey]; ok {
		return &state, nil
	}
	return nil, nil
}

func (m *memoryRepo) CreateAvatar(ctx context.Context, state domain.AvatarState, idempotencyKey string) error {
	m.avatars[state.ID] = state
	m.order = append(m.order, state.ID)
	if idempotencyKey != "" {
		m.byIdem[idempotencyKey] = state
	}
	return nil
}

func (m *memoryRepo) GetAvatar(ctx context.Context, tenantID, avatarID string) (*domain.AvatarState, error) {
	if state, ok := m.avatars[avatarID]; ok && state.TenantID == tenantID {
		return &state, nil
	}
	return nil, nil
}

func (m *memoryRepo) ListAvatarsByUser(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.AvatarState, *domain.Cursor, error) {
	out := make([]domain.AvatarState, 0)
	for _, id := range m.order {
		state := m.avatars[id]
		if state.TenantID == tenantID && state.UserID == userID {
			out = append(out, state)
		}
	}
	return out, nil, nil
}

func (m *memoryRepo) CreateMorphSequence(ctx context.Context, seq domain.MorphSequence) error {
	m.sequences[seq.ID] = seq
	return nil
}

func (m *memoryRepo) GetMorphSequence(ctx context.Context, tenantID, sequenceID string) (*domain.MorphSequence, error) {
	if seq, ok := m.sequences[sequenceID]; ok && seq.TenantID == tenantID {
		return &seq, nil
	}
	return nil, nil
}
