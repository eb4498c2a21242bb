// Package synthesis provides the pluggable mesh-generation backends and the
// process-wide backend selection.
package synthesis

import (
	"log"
	"sync"
	"time"

	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/geometry"
	"example.com/avatar/internal/observability"
)

// Backend is the mesh-synthesis capability contract. Implementations must
// return manifold meshes with outward unit normals and constant topology per
// (variant, gender, configuration) tuple.
type Backend interface {
	Variant() domain.BackendVariant
	Synthesize(params domain.ShapeParameters, gender domain.GenderVariant) (geometry.Mesh, error)
}

// Provider resolves which backend serves this process. The licensed backend
// is attempted first; if its assets are absent or fail validation the
// placeholder backend is used instead. Resolution happens once, lazily, under
// a mutex-guarded compute-once cell so concurrent first callers cannot race
// to probe the assets twice, and the choice is read-only afterwards.
type Provider struct {
	assetDir      string
	defaultGender domain.GenderVariant

	mu       sync.Mutex
	resolved Backend
}

// NewProvider constructs the provider. No assets are touched until first use.
func NewProvider(assetDir string, defaultGender domain.GenderVariant) *Provider {
	return &Provider{assetDir: assetDir, defaultGender: defaultGender}
}

// Synthesize generates a mesh with the resolved backend and reports which
// variant produced it.
func (p *Provider) Synthesize(params domain.ShapeParameters, gender domain.GenderVariant) (geometry.Mesh, domain.BackendVariant, error) {
	backend := p.backend()

	start := time.Now()
	mesh, err := backend.Synthesize(params, gender)
	if err != nil {
		return geometry.Mesh{}, backend.Variant(), err
	}
	observability.RecordSynthesis(string(backend.Variant()), time.Since(start))

	return mesh, backend.Variant(), nil
}

// Variant reports the resolved backend variant, forcing resolution if needed.
func (p *Provider) Variant() domain.BackendVariant {
	return p.backend().Variant()
}

func (p *Provider) backend() Backend {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resolved != nil {
		return p.resolved
	}

	licensed, err := NewLicensedBackend(p.assetDir, p.defaultGender)
	if err != nil {
		// Logged once: selection is permanent for the process lifetime.
		log.Printf("synthesis: falling back to placeholder backend: %v", err)
		p.resolved = NewPlaceholderBackend()
	} else {
		p.resolved = licensed
	}

	observability.RecordBackendSelected(p.resolved.Variant() == domain.BackendLicensed)
	return p.resolved
}
