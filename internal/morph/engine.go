// Package morph interpolates between two synthesized avatar states.
package morph

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/geometry"
	"example.com/avatar/internal/observability"
)

// Engine produces discrete transition sequences between two avatar states
// that share backend provenance and mesh topology. Sequence is a pure
// function of (a, b, steps): no interpolated state depends on another, so
// interior steps are computed in parallel into an index-addressed slice.
type Engine struct {
	workers int
}

// NewEngine constructs an Engine sized to the available CPUs.
func NewEngine() *Engine {
	return &Engine{workers: runtime.GOMAXPROCS(0)}
}

// Sequence returns steps states walking from a to b. Endpoints are exact
// copies of the input meshes so boundary states carry no floating-point
// round-off. Interior vertices are interpolated linearly at t = i/(steps-1)
// and normals are recomputed from the interpolated geometry rather than
// interpolated themselves, which would drift off unit length.
func (e *Engine) Sequence(a, b domain.AvatarState, steps int) ([]domain.AvatarState, error) {
	if steps < 2 {
		return nil, &domain.ValidationError{Field: "steps", Reason: "must be at least 2"}
	}
	if a.Backend != b.Backend {
		return nil, &domain.TopologyMismatchError{
			Reason: fmt.Sprintf("cannot morph across backend variants %s and %s", a.Backend, b.Backend),
		}
	}
	if !a.Mesh.SameTopology(b.Mesh) {
		return nil, &domain.TopologyMismatchError{
			Reason: fmt.Sprintf("meshes differ in topology: %d/%d vertices, %d/%d faces",
				len(a.Mesh.Vertices), len(b.Mesh.Vertices), len(a.Mesh.Faces), len(b.Mesh.Faces)),
		}
	}

	states := make([]domain.AvatarState, steps)
	states[0] = endpointState(a)
	states[steps-1] = endpointState(b)

	indices := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indices {
				t := float64(i) / float64(steps-1)
				states[i] = interpolateState(a, b, t)
			}
		}()
	}
	for i := 1; i < steps-1; i++ {
		indices <- i
	}
	close(indices)
	wg.Wait()

	observability.RecordMorphSequence()
	return states, nil
}

// endpointState copies an input state verbatim under a fresh identifier.
func endpointState(s domain.AvatarState) domain.AvatarState {
	out := s
	out.ID = uuid.NewString()
	out.Params = s.Params.Clone()
	out.Mesh = s.Mesh.Clone()
	return out
}

func interpolateState(a, b domain.AvatarState, t float64) domain.AvatarState {
	mesh := geometry.Mesh{
		Vertices: make([]r3.Vec, len(a.Mesh.Vertices)),
		Faces:    make([][3]int, len(a.Mesh.Faces)),
	}
	copy(mesh.Faces, a.Mesh.Faces)

	for i := range mesh.Vertices {
		mesh.Vertices[i] = r3.Add(
			r3.Scale(1-t, a.Mesh.Vertices[i]),
			r3.Scale(t, b.Mesh.Vertices[i]),
		)
	}
	mesh.RecomputeNormals()

	return domain.AvatarState{
		ID:        uuid.NewString(),
		TenantID:  a.TenantID,
		UserID:    a.UserID,
		Gender:    a.Gender,
		Params:    a.Params.Interpolate(b.Params, t),
		Mesh:      mesh,
		Backend:   a.Backend,
		CreatedAt: a.CreatedAt,
	}
}
