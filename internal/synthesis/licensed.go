package synthesis

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/geometry"
)

// LicensedBackend synthesizes meshes from an externally licensed parametric
// body model: vertices = mean shape + Σ(βᵢ × basisᵢ), uniformly scaled.
// Bundles are loaded per gender variant on first use and cached; the bundle
// for the configured default gender is loaded eagerly at construction so
// backend selection can fail over before the first request.
type LicensedBackend struct {
	dir string

	mu     sync.Mutex
	models map[domain.GenderVariant]*shapeModel
}

// NewLicensedBackend probes and validates the bundle for the default gender.
// Returns a ModelLoadError when assets are absent or corrupt.
func NewLicensedBackend(dir string, defaultGender domain.GenderVariant) (*LicensedBackend, error) {
	b := &LicensedBackend{
		dir:    dir,
		models: make(map[domain.GenderVariant]*shapeModel),
	}
	model, err := loadShapeModel(dir, defaultGender)
	if err != nil {
		return nil, err
	}
	b.models[defaultGender] = model
	return b, nil
}

// Variant identifies this backend in avatar provenance.
func (b *LicensedBackend) Variant() domain.BackendVariant {
	return domain.BackendLicensed
}

// Synthesize applies the shape blend formula and the uniform scale factor.
// Topology is the bundle's topology, so it is constant per gender variant.
func (b *LicensedBackend) Synthesize(params domain.ShapeParameters, gender domain.GenderVariant) (geometry.Mesh, error) {
	model, err := b.model(gender)
	if err != nil {
		return geometry.Mesh{}, err
	}

	mesh := geometry.Mesh{
		Vertices: make([]r3.Vec, len(model.meanShape)),
		Faces:    make([][3]int, len(model.faces)),
	}
	copy(mesh.Vertices, model.meanShape)
	copy(mesh.Faces, model.faces)

	for bi, field := range model.basis {
		beta := params.Betas[bi]
		if beta == 0 {
			continue
		}
		for vi, displacement := range field {
			mesh.Vertices[vi] = r3.Add(mesh.Vertices[vi], r3.Scale(beta, displacement))
		}
	}

	mesh.Scale(params.Scale)
	mesh.RecomputeNormals()
	return mesh, nil
}

func (b *LicensedBackend) model(gender domain.GenderVariant) (*shapeModel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if model, ok := b.models[gender]; ok {
		return model, nil
	}
	model, err := loadShapeModel(b.dir, gender)
	if err != nil {
		return nil, err
	}
	b.models[gender] = model
	return model, nil
}
