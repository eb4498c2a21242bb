// Package domain defines the body-composition → avatar pipeline and its
// orchestration service.
package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"example.com/avatar/internal/geometry"
)

// AvatarRepository captures persistence operations. Loaded states carry
// parameters and provenance but no mesh: synthesis is deterministic, so meshes
// are recomputed from parameters when needed.
type AvatarRepository interface {
	FindByIdempotency(ctx context.Context, tenantID, userID, idempotencyKey string) (*AvatarState, error)
	CreateAvatar(ctx context.Context, state AvatarState, idempotencyKey string) error
	GetAvatar(ctx context.Context, tenantID, avatarID string) (*AvatarState, error)
	ListAvatarsByUser(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]AvatarState, *Cursor, error)
	CreateMorphSequence(ctx context.Context, seq MorphSequence) error
	GetMorphSequence(ctx context.Context, tenantID, sequenceID string) (*MorphSequence, error)
}

// MeshSynthesizer produces a mesh for a parameter vector. Implementations
// guarantee constant vertex/face topology per (variant, gender, configuration)
// tuple across repeated calls.
type MeshSynthesizer interface {
	Synthesize(params ShapeParameters, gender GenderVariant) (geometry.Mesh, BackendVariant, error)
}

// Personalizer blends photo-derived proportions into shape parameters. It
// never fails: when landmarks are unusable it returns the input unchanged with
// PersonalizationApplied false.
type Personalizer interface {
	Apply(params ShapeParameters, landmarks *Landmarks) ShapeParameters
}

// Morpher interpolates between two synthesized states.
type Morpher interface {
	Sequence(a, b AvatarState, steps int) ([]AvatarState, error)
}

// Exporter writes mesh + metadata pairs to the configured output location.
type Exporter interface {
	ExportState(state AvatarState) (glbPath, metadataPath string, err error)
	ExportSequence(seq MorphSequence) (directory string, err error)
}

// Service orchestrates avatar generation and morphing workflows.
type Service struct {
	repo         AvatarRepository
	synth        MeshSynthesizer
	personalizer Personalizer
	morpher      Morpher
	exporter     Exporter
	gender       GenderVariant
}

// NewService constructs a Service.
func NewService(repo AvatarRepository, synth MeshSynthesizer, personalizer Personalizer, morpher Morpher, exporter Exporter, gender GenderVariant) *Service {
	return &Service{
		repo:         repo,
		synth:        synth,
		personalizer: personalizer,
		morpher:      morpher,
		exporter:     exporter,
		gender:       gender,
	}
}

// GenerateAvatarInput captures the payload from the API layer.
type GenerateAvatarInput struct {
	TenantID         string
	UserID           string
	Metrics          DexaMetrics
	Landmarks        *Landmarks
	TargetFatPercent *float64
	IdempotencyKey   string
}

// GenerateAvatarResult bundles the generated state with an optional
// target-composition state.
type GenerateAvatarResult struct {
	Avatar AvatarState
	Target *AvatarState
	Replay bool
}

// GenerateAvatar runs the full pipeline: normalize → map → synthesize →
// optional personalization re-blend and re-synthesis → export → persist.
// When a target fat percent is supplied a second, target-composition state is
// generated so callers can morph between the two.
func (s *Service) GenerateAvatar(ctx context.Context, input GenerateAvatarInput) (*GenerateAvatarResult, error) {
	if existing, err := s.repo.FindByIdempotency(ctx, input.TenantID, input.UserID, input.IdempotencyKey); err == nil && existing != nil {
		return &GenerateAvatarResult{Avatar: *existing, Replay: true}, nil
	}

	state, err := s.buildState(ctx, input.TenantID, input.UserID, input.Metrics, input.Landmarks, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	result := &GenerateAvatarResult{Avatar: *state}

	if input.TargetFatPercent != nil {
		targetMetrics := input.Metrics
		targetMetrics.TotalFatPercent = input.TargetFatPercent
		target, err := s.buildState(ctx, input.TenantID, input.UserID, targetMetrics, input.Landmarks, "")
		if err != nil {
			return nil, err
		}
		result.Target = target
	}

	return result, nil
}

func (s *Service) buildState(ctx context.Context, tenantID, userID string, metrics DexaMetrics, landmarks *Landmarks, idempotencyKey string) (*AvatarState, error) {
	normalized, err := Normalize(metrics)
	if err != nil {
		return nil, err
	}

	params := MapParameters(normalized, metrics.BMI())
	mesh, variant, err := s.synth.Synthesize(params, s.gender)
	if err != nil {
		return nil, err
	}

	if landmarks != nil {
		adjusted := s.personalizer.Apply(params, landmarks)
		if adjusted.PersonalizationApplied {
			params = adjusted
			mesh, variant, err = s.synth.Synthesize(params, s.gender)
			if err != nil {
				return nil, err
			}
		}
	}

	state := AvatarState{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		UserID:    userID,
		Gender:    s.gender,
		Params:    params,
		Mesh:      mesh,
		Backend:   variant,
		CreatedAt: time.Now().UTC(),
	}

	glbPath, metadataPath, err := s.exporter.ExportState(state)
	if err != nil {
		return nil, err
	}
	state.GLBPath = glbPath
	state.MetadataPath = metadataPath

	if err := s.repo.CreateAvatar(ctx, state, idempotencyKey); err != nil {
		return nil, err
	}

	return &state, nil
}

// GetAvatar fetches avatar metadata by ID.
func (s *Service) GetAvatar(ctx context.Context, tenantID, avatarID string) (*AvatarState, error) {
	state, err := s.repo.GetAvatar(ctx, tenantID, avatarID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrAvatarNotFound
	}
	return state, nil
}

// ListAvatarsByUser fetches avatar metadata with cursor pagination.
func (s *Service) ListAvatarsByUser(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]AvatarState, *Cursor, error) {
	return s.repo.ListAvatarsByUser(ctx, tenantID, userID, cursor, limit)
}

// CreateMorphSequenceInput captures a morph request between two stored avatars.
type CreateMorphSequenceInput struct {
	TenantID      string
	UserID        string
	StartAvatarID string
	EndAvatarID   string
	Steps         int
}

// CreateMorphSequence re-synthesizes the endpoint meshes from their stored
// parameters, interpolates, exports each step, and persists the sequence.
func (s *Service) CreateMorphSequence(ctx context.Context, input CreateMorphSequenceInput) (*MorphSequence, error) {
	start, err := s.GetAvatar(ctx, input.TenantID, input.StartAvatarID)
	if err != nil {
		return nil, err
	}
	end, err := s.GetAvatar(ctx, input.TenantID, input.EndAvatarID)
	if err != nil {
		return nil, err
	}

	if start.Backend != end.Backend {
		return nil, &TopologyMismatchError{
			Reason: "avatars were produced by different backend variants",
		}
	}

	if err := s.rehydrate(start); err != nil {
		return nil, err
	}
	if err := s.rehydrate(end); err != nil {
		return nil, err
	}

	states, err := s.morpher.Sequence(*start, *end, input.Steps)
	if err != nil {
		return nil, err
	}

	seq := MorphSequence{
		ID:            uuid.NewString(),
		TenantID:      input.TenantID,
		UserID:        input.UserID,
		StartAvatarID: start.ID,
		EndAvatarID:   end.ID,
		Steps:         input.Steps,
		Backend:       start.Backend,
		States:        states,
		CreatedAt:     time.Now().UTC(),
	}

	directory, err := s.exporter.ExportSequence(seq)
	if err != nil {
		return nil, err
	}
	seq.Directory = directory

	if err := s.repo.CreateMorphSequence(ctx, seq); err != nil {
		return nil, err
	}

	return &seq, nil
}

// rehydrate recomputes a stored state's mesh from its parameters. Synthesis is
// deterministic, so this reproduces the original mesh bit for bit as long as
// the resolved backend still matches the stored provenance.
func (s *Service) rehydrate(state *AvatarState) error {
	mesh, variant, err := s.synth.Synthesize(state.Params, state.Gender)
	if err != nil {
		return err
	}
	if variant != state.Backend {
		return &TopologyMismatchError{
			Reason: "stored avatar was produced by the " + string(state.Backend) + " backend, which is no longer available",
		}
	}
	state.Mesh = mesh
	return nil
}

// GetMorphSequence fetches morph-sequence metadata by ID.
func (s *Service) GetMorphSequence(ctx context.Context, tenantID, sequenceID string) (*MorphSequence, error) {
	seq, err := s.repo.GetMorphSequence(ctx, tenantID, sequenceID)
	if err != nil {
		return nil, err
	}
	if seq == nil {
		return nil, ErrMorphSequenceNotFound
	}
	return seq, nil
}
