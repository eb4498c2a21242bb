package synthesis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/geometry"
)

// shapeModelBundle is the on-disk JSON layout of a licensed shape-model asset:
// a mean shape, its triangulation, and up to NumShapeParams basis displacement
// fields. Bundles are produced externally; this package only loads and
// validates them.
type shapeModelBundle struct {
	Variant   string         `json:"variant"`
	MeanShape [][3]float64   `json:"mean_shape"`
	Faces     [][3]int       `json:"faces"`
	Basis     [][][3]float64 `json:"shape_basis"`
}

// shapeModel is a validated, loaded bundle ready for synthesis.
type shapeModel struct {
	meanShape []r3.Vec
	faces     [][3]int
	basis     [][]r3.Vec
}

// bundleCandidates returns the file names probed for a gender variant, most
// specific first. A neutral bundle serves as the fallback for any gender.
func bundleCandidates(gender domain.GenderVariant) []string {
	specific := fmt.Sprintf("SHAPE_%s.json", strings.ToUpper(string(gender)))
	if gender == domain.GenderNeutral {
		return []string{specific}
	}
	return []string{specific, "SHAPE_NEUTRAL.json"}
}

// loadShapeModel locates, parses, and validates the bundle for a gender
// variant. Every failure is wrapped in a ModelLoadError so the provider can
// downgrade to the placeholder backend.
func loadShapeModel(dir string, gender domain.GenderVariant) (*shapeModel, error) {
	var path string
	for _, name := range bundleCandidates(gender) {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
			break
		}
	}
	if path == "" {
		return nil, &domain.ModelLoadError{
			Variant: string(gender),
			Err:     fmt.Errorf("no bundle found in %s", dir),
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ModelLoadError{Variant: string(gender), Err: err}
	}

	var bundle shapeModelBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return nil, &domain.ModelLoadError{
			Variant: string(gender),
			Err:     fmt.Errorf("corrupt bundle %s: %w", path, err),
		}
	}

	model, err := buildShapeModel(bundle)
	if err != nil {
		return nil, &domain.ModelLoadError{
			Variant: string(gender),
			Err:     fmt.Errorf("invalid bundle %s: %w", path, err),
		}
	}
	return model, nil
}

func buildShapeModel(bundle shapeModelBundle) (*shapeModel, error) {
	if len(bundle.MeanShape) == 0 {
		return nil, fmt.Errorf("mean shape is empty")
	}
	if len(bundle.Basis) == 0 || len(bundle.Basis) > domain.NumShapeParams {
		return nil, fmt.Errorf("expected 1..%d basis fields, got %d", domain.NumShapeParams, len(bundle.Basis))
	}

	model := &shapeModel{
		meanShape: make([]r3.Vec, len(bundle.MeanShape)),
		faces:     make([][3]int, len(bundle.Faces)),
		basis:     make([][]r3.Vec, len(bundle.Basis)),
	}
	for i, v := range bundle.MeanShape {
		model.meanShape[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}
	copy(model.faces, bundle.Faces)

	for bi, field := range bundle.Basis {
		if len(field) != len(bundle.MeanShape) {
			return nil, fmt.Errorf("basis %d has %d displacements for %d vertices", bi, len(field), len(bundle.MeanShape))
		}
		vecs := make([]r3.Vec, len(field))
		for i, d := range field {
			vecs[i] = r3.Vec{X: d[0], Y: d[1], Z: d[2]}
		}
		model.basis[bi] = vecs
	}

	mean := geometry.Mesh{Vertices: model.meanShape, Faces: model.faces}
	if err := mean.Validate(); err != nil {
		return nil, fmt.Errorf("mean shape is not a valid manifold: %w", err)
	}

	return model, nil
}
