package synthesis

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/geometry"
)

// Placeholder lattice resolution. Fixed, so every placeholder mesh shares
// vertex count and face connectivity regardless of parameters.
const (
	placeholderRings    = 24
	placeholderSegments = 32
)

// Base ellipsoid semi-axes, elongated to mimic a torso.
const (
	axisX = 0.7
	axisY = 1.2
	axisZ = 0.5
)

// PlaceholderBackend is the procedural fallback: a closed latitude/longitude
// lattice over a torso-shaped ellipsoid, radially deformed per latitude band
// by the trunk, limb, and distribution betas. Fully deterministic.
type PlaceholderBackend struct{}

// NewPlaceholderBackend constructs the fallback backend.
func NewPlaceholderBackend() *PlaceholderBackend {
	return &PlaceholderBackend{}
}

// Variant identifies this backend in avatar provenance.
func (b *PlaceholderBackend) Variant() domain.BackendVariant {
	return domain.BackendPlaceholder
}

// Synthesize builds the lattice. The gender variant does not alter topology;
// it nudges the shoulder/hip emphasis so the silhouettes differ.
func (b *PlaceholderBackend) Synthesize(params domain.ShapeParameters, gender domain.GenderVariant) (geometry.Mesh, error) {
	const (
		rings    = placeholderRings
		segments = placeholderSegments
	)

	shoulderShift, hipShift := genderShifts(gender)

	vertices := make([]r3.Vec, 0, 2+(rings-1)*segments)
	vertices = append(vertices, r3.Vec{Y: axisY * heightFactor(params)})

	for i := 1; i < rings; i++ {
		theta := math.Pi * float64(i) / rings
		v := float64(i) / rings // 0 at crown, 1 at base
		radial := radialFactor(params, v, shoulderShift, hipShift)
		y := axisY * math.Cos(theta) * heightFactor(params)

		for j := 0; j < segments; j++ {
			phi := 2 * math.Pi * float64(j) / segments
			sin := math.Sin(theta)
			vertices = append(vertices, r3.Vec{
				X: axisX * sin * math.Cos(phi) * radial,
				Y: y,
				Z: axisZ * sin * math.Sin(phi) * radial,
			})
		}
	}

	vertices = append(vertices, r3.Vec{Y: -axisY * heightFactor(params)})
	bottom := len(vertices) - 1

	ring := func(i, j int) int { return 1 + i*segments + (j % segments) }

	faces := make([][3]int, 0, 2*segments*(rings-1))
	for j := 0; j < segments; j++ {
		faces = append(faces, [3]int{0, ring(0, j+1), ring(0, j)})
	}
	for i := 0; i < rings-2; i++ {
		for j := 0; j < segments; j++ {
			a, b := ring(i, j), ring(i, j+1)
			c, d := ring(i+1, j), ring(i+1, j+1)
			faces = append(faces, [3]int{a, d, c}, [3]int{a, b, d})
		}
	}
	for j := 0; j < segments; j++ {
		faces = append(faces, [3]int{bottom, ring(rings-2, j), ring(rings-2, j+1)})
	}

	mesh := geometry.Mesh{Vertices: vertices, Faces: faces}
	mesh.Scale(params.Scale)
	mesh.RecomputeNormals()
	return mesh, nil
}

// heightFactor stretches the lattice along the vertical axis for stature.
func heightFactor(params domain.ShapeParameters) float64 {
	return 1 + 0.05*params.Betas[2]
}

// radialFactor widens or narrows one latitude band. v runs 0 (crown) to 1
// (base); the bands approximate shoulders, trunk, hips, and legs.
func radialFactor(params domain.ShapeParameters, v, shoulderShift, hipShift float64) float64 {
	factor := 1 + 0.04*params.Betas[3] // overall mass

	switch {
	case v < 0.35: // shoulder girdle and arms
		factor += 0.06*params.Betas[domain.BetaUpperBodyWidth] + 0.02*params.Betas[1] + shoulderShift
	case v < 0.55: // trunk and abdomen
		factor += 0.08*params.Betas[0] + 0.05*params.Betas[4] + 0.02*params.Betas[9]
	case v < 0.70: // hip girdle
		factor += 0.07*params.Betas[domain.BetaLowerBodyWidth] + hipShift
	default: // legs
		factor += 0.06 * params.Betas[7]
	}

	return factor
}

func genderShifts(gender domain.GenderVariant) (shoulder, hip float64) {
	switch gender {
	case domain.GenderMale:
		return 0.04, -0.02
	case domain.GenderFemale:
		return -0.02, 0.04
	default:
		return 0, 0
	}
}
