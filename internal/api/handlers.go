// Package api exposes HTTP handlers for the avatar service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/avatar/internal/auth"
	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/persistence"
)

// Morph step bounds accepted over the API.
const (
	minMorphSteps = 2
	maxMorphSteps = 120
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/avatars", h.avatars)
	mux.HandleFunc("/v1/avatars/", h.avatarByID)
	mux.HandleFunc("/v1/morphs", h.morphs)
	mux.HandleFunc("/v1/morphs/", h.morphByID)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) avatars(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.generateAvatar(w, r)
	case http.MethodGet:
		h.listAvatars(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) avatarByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/avatars/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing avatar id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getAvatar(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) morphs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createMorph(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) morphByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/morphs/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing sequence id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getMorph(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) generateAvatar(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeAvatarsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope avatars:write required")
		return
	}

	var req GenerateAvatarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")

	result, err := h.service.GenerateAvatar(r.Context(), domain.GenerateAvatarInput{
		TenantID:         claims.TenantID,
		UserID:           req.UserID,
		Metrics:          req.Metrics.toDomain(),
		Landmarks:        req.Landmarks.toDomain(),
		TargetFatPercent: req.TargetFatPercent,
		IdempotencyKey:   idempotencyKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := GenerateAvatarResponse{
		Avatar: toAvatarView(result.Avatar),
		Replay: result.Replay,
	}
	if result.Target != nil {
		target := toAvatarView(*result.Target)
		resp.Target = &target
	}

	status := http.StatusCreated
	if result.Replay {
		status = http.StatusOK
	}
	writeJSON(w, status, resp)
}

func (h *Handler) getAvatar(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeAvatarsRead) && !claims.HasScope(auth.ScopeAvatarsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope avatars:read required")
		return
	}

	state, err := h.service.GetAvatar(r.Context(), claims.TenantID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAvatarView(*state))
}

func (h *Handler) listAvatars(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeAvatarsRead) && !claims.HasScope(auth.ScopeAvatarsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope avatars:read required")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing user_id parameter")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	cursorToken := r.URL.Query().Get("cursor")
	cursor, err := persistence.DecodeCursor(cursorToken)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	states, next, err := h.service.ListAvatarsByUser(r.Context(), claims.TenantID, userID, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]AvatarView, 0, len(states))
	for _, state := range states {
		items = append(items, toAvatarView(state))
	}

	resp := ListAvatarsResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) createMorph(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeAvatarsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope avatars:write required")
		return
	}

	var req CreateMorphRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	seq, err := h.service.CreateMorphSequence(r.Context(), domain.CreateMorphSequenceInput{
		TenantID:      claims.TenantID,
		UserID:        req.UserID,
		StartAvatarID: req.StartAvatarID,
		EndAvatarID:   req.EndAvatarID,
		Steps:         req.Steps,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMorphView(*seq))
}

func (h *Handler) getMorph(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeAvatarsRead) && !claims.HasScope(auth.ScopeAvatarsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope avatars:read required")
		return
	}

	seq, err := h.service.GetMorphSequence(r.Context(), claims.TenantID, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toMorphView(*seq))
}

// DexaMetricsPayload carries the already-parsed scan record.
type DexaMetricsPayload struct {
	TotalFatPercent    *float64 `json:"total_fat_percent"`
	LeanMassKg         *float64 `json:"lean_mass_kg"`
	BoneMineralDensity *float64 `json:"bone_mineral_density,omitempty"`
	ArmsFatPercent     *float64 `json:"arms_fat_percent,omitempty"`
	LegsFatPercent     *float64 `json:"legs_fat_percent,omitempty"`
	TrunkFatPercent    *float64 `json:"trunk_fat_percent,omitempty"`
	AndroidGynoidRatio *float64 `json:"android_gynoid_ratio,omitempty"`
	HeightCm           *float64 `json:"height_cm,omitempty"`
	WeightKg           *float64 `json:"weight_kg,omitempty"`
}

func (p DexaMetricsPayload) toDomain() domain.DexaMetrics {
	return domain.DexaMetrics{
		TotalFatPercent:    p.TotalFatPercent,
		LeanMassKg:         p.LeanMassKg,
		BoneMineralDensity: p.BoneMineralDensity,
		ArmsFatPercent:     p.ArmsFatPercent,
		LegsFatPercent:     p.LegsFatPercent,
		TrunkFatPercent:    p.TrunkFatPercent,
		AndroidGynoidRatio: p.AndroidGynoidRatio,
		HeightCm:           p.HeightCm,
		WeightKg:           p.WeightKg,
	}
}

// LandmarksPayload carries photo-derived proportion distances, or a failure
// signal when the pose was not detected.
type LandmarksPayload struct {
	ShoulderWidth  float64 `json:"shoulder_width"`
	HipWidth       float64 `json:"hip_width"`
	TorsoLength    float64 `json:"torso_length"`
	ReferenceScale float64 `json:"reference_scale"`
	Detected       bool    `json:"detected"`
}

func (p *LandmarksPayload) toDomain() *domain.Landmarks {
	if p == nil {
		return nil
	}
	return &domain.Landmarks{
		ShoulderWidth:  p.ShoulderWidth,
		HipWidth:       p.HipWidth,
		TorsoLength:    p.TorsoLength,
		ReferenceScale: p.ReferenceScale,
		Detected:       p.Detected,
	}
}

// GenerateAvatarRequest is the payload for POST /v1/avatars.
type GenerateAvatarRequest struct {
	UserID           string             `json:"user_id"`
	Metrics          DexaMetricsPayload `json:"dexa_metrics"`
	Landmarks        *LandmarksPayload  `json:"landmarks,omitempty"`
	TargetFatPercent *float64           `json:"target_fat_percent,omitempty"`
}

// Validate ensures request correctness. Metric plausibility itself is the
// normalizer's concern and surfaces as invalid_metrics.
func (r GenerateAvatarRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if r.TargetFatPercent != nil && (*r.TargetFatPercent < 0 || *r.TargetFatPercent > 70) {
		return errors.New("target_fat_percent must be within [0, 70]")
	}
	return nil
}

// CreateMorphRequest is the payload for POST /v1/morphs.
type CreateMorphRequest struct {
	UserID        string `json:"user_id"`
	StartAvatarID string `json:"start_avatar_id"`
	EndAvatarID   string `json:"end_avatar_id"`
	Steps         int    `json:"steps"`
}

// Validate ensures request correctness.
func (r CreateMorphRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.StartAvatarID) == "" {
		return errors.New("start_avatar_id is required")
	}
	if strings.TrimSpace(r.EndAvatarID) == "" {
		return errors.New("end_avatar_id is required")
	}
	if r.Steps < minMorphSteps || r.Steps > maxMorphSteps {
		return fmt.Errorf("steps must be within [%d, %d]", minMorphSteps, maxMorphSteps)
	}
	return nil
}

// AvatarView exposes avatar metadata.
type AvatarView struct {
	AvatarID               string          `json:"avatar_id"`
	TenantID               string          `json:"tenant_id"`
	UserID                 string          `json:"user_id"`
	Gender                 string          `json:"gender"`
	Backend                string          `json:"backend"`
	Betas                  []float64       `json:"betas"`
	Scale                  float64         `json:"scale"`
	RegionalBias           map[string]bool `json:"regional_bias,omitempty"`
	AssumedBMI             bool            `json:"assumed_bmi"`
	PersonalizationApplied bool            `json:"personalization_applied"`
	GLBPath                string          `json:"glb_path"`
	MetadataPath           string          `json:"metadata_path"`
	CreatedAt              time.Time       `json:"created_at"`
}

// GenerateAvatarResponse describes the response body for generation.
type GenerateAvatarResponse struct {
	Avatar AvatarView  `json:"avatar"`
	Target *AvatarView `json:"target,omitempty"`
	Replay bool        `json:"idempotent_replay"`
}

// ListAvatarsResponse packages list results.
type ListAvatarsResponse struct {
	Items      []AvatarView `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// MorphStepView addresses one exported step of a sequence.
type MorphStepView struct {
	Index        int    `json:"index"`
	GLBPath      string `json:"glb_path"`
	MetadataPath string `json:"metadata_path"`
}

// MorphView exposes morph-sequence metadata with per-step asset paths.
type MorphView struct {
	SequenceID    string          `json:"sequence_id"`
	TenantID      string          `json:"tenant_id"`
	UserID        string          `json:"user_id"`
	StartAvatarID string          `json:"start_avatar_id"`
	EndAvatarID   string          `json:"end_avatar_id"`
	Steps         int             `json:"steps"`
	Backend       string          `json:"backend"`
	Directory     string          `json:"directory"`
	StepAssets    []MorphStepView `json:"step_assets"`
	CreatedAt     time.Time       `json:"created_at"`
}

func writeDomainError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	var topology *domain.TopologyMismatchError

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusUnprocessableEntity, "invalid_metrics", validation.Error())
	case errors.As(err, &topology):
		writeError(w, http.StatusConflict, "topology_mismatch", topology.Error())
	case errors.Is(err, domain.ErrAvatarNotFound):
		writeError(w, http.StatusNotFound, "not_found", "avatar not found")
	case errors.Is(err, domain.ErrMorphSequenceNotFound):
		writeError(w, http.StatusNotFound, "not_found", "morph sequence not found")
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toAvatarView(state domain.AvatarState) AvatarView {
	return AvatarView{
		AvatarID:               state.ID,
		TenantID:               state.TenantID,
		UserID:                 state.UserID,
		Gender:                 string(state.Gender),
		Backend:                string(state.Backend),
		Betas:                  state.Params.Betas[:],
		Scale:                  state.Params.Scale,
		RegionalBias:           state.Params.RegionalBias,
		AssumedBMI:             state.Params.AssumedBMI,
		PersonalizationApplied: state.Params.PersonalizationApplied,
		GLBPath:                state.GLBPath,
		MetadataPath:           state.MetadataPath,
		CreatedAt:              state.CreatedAt,
	}
}

func toMorphView(seq domain.MorphSequence) MorphView {
	steps := make([]MorphStepView, 0, seq.Steps)
	for i := 0; i < seq.Steps; i++ {
		steps = append(steps, MorphStepView{
			Index:        i,
			GLBPath:      fmt.Sprintf("%s/step_%03d.glb", seq.Directory, i),
			MetadataPath: fmt.Sprintf("%s/step_%03d.json", seq.Directory, i),
		})
	}
	return MorphView{
		SequenceID:    seq.ID,
		TenantID:      seq.TenantID,
		UserID:        seq.UserID,
		StartAvatarID: seq.StartAvatarID,
		EndAvatarID:   seq.EndAvatarID,
		Steps:         seq.Steps,
		Backend:       string(seq.Backend),
		Directory:     seq.Directory,
		StepAssets:    steps,
		CreatedAt:     seq.CreatedAt,
	}
}
