package domain

import (
	"time"

	"example.com/avatar/internal/geometry"
)

// GenderVariant selects which body-model variant a backend synthesizes.
type GenderVariant string

const (
	GenderNeutral GenderVariant = "neutral"
	GenderMale    GenderVariant = "male"
	GenderFemale  GenderVariant = "female"
)

// ParseGenderVariant maps a raw string onto a known variant, defaulting to neutral.
func ParseGenderVariant(raw string) GenderVariant {
	switch GenderVariant(raw) {
	case GenderMale:
		return GenderMale
	case GenderFemale:
		return GenderFemale
	default:
		return GenderNeutral
	}
}

// BackendVariant identifies which synthesis strategy produced a mesh.
type BackendVariant string

const (
	BackendLicensed    BackendVariant = "licensed"
	BackendPlaceholder BackendVariant = "placeholder"
)

// AvatarState is one generated body state: parameters, the synthesized mesh,
// and provenance. Immutable after creation; morphing and re-personalization
// always produce new states.
type AvatarState struct {
	ID       string
	TenantID string
	UserID   string
	Gender   GenderVariant
	Params   ShapeParameters
	Mesh     geometry.Mesh
	Backend  BackendVariant

	GLBPath      string
	MetadataPath string
	CreatedAt    time.Time
}

// MorphSequence is an ordered list of avatar states interpolating between a
// start and end state. Purely derived: recomputable from its inputs.
type MorphSequence struct {
	ID            string
	TenantID      string
	UserID        string
	StartAvatarID string
	EndAvatarID   string
	Steps         int
	Backend       BackendVariant
	States        []AvatarState
	Directory     string
	CreatedAt     time.Time
}

// Landmarks carries photo-derived proportion distances from the
// personalization source, in pixel or normalized units relative to
// ReferenceScale. Detected is false when pose extraction found nothing.
type Landmarks struct {
	ShoulderWidth  float64
	HipWidth       float64
	TorsoLength    float64
	ReferenceScale float64
	Detected       bool
}

// Cursor models the pagination token for avatar listings.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}
