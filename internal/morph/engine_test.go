package morph

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/geometry"
	"example.com/avatar/internal/synthesis"
)

func placeholderState(t *testing.T, beta0, scale float64) domain.AvatarState {
	t.Helper()
	params := domain.ShapeParameters{Scale: scale, RegionalBias: map[string]bool{}}
	params.Betas[0] = beta0

	mesh, err := synthesis.NewPlaceholderBackend().Synthesize(params, domain.GenderNeutral)
	require.NoError(t, err)

	return domain.AvatarState{
		ID:       "state",
		TenantID: "tenant-1",
		UserID:   "user-1",
		Gender:   domain.GenderNeutral,
		Params:   params,
		Mesh:     mesh,
		Backend:  domain.BackendPlaceholder,
	}
}

func TestSequenceEndpointsAreExactCopies(t *testing.T) {
	engine := NewEngine()
	a := placeholderState(t, -1.0, 0.9)
	b := placeholderState(t, 1.5, 1.2)

	states, err := engine.Sequence(a, b, 5)
	require.NoError(t, err)
	require.Len(t, states, 5)

	require.Equal(t, a.Mesh.Vertices, states[0].Mesh.Vertices)
	require.Equal(t, b.Mesh.Vertices, states[4].Mesh.Vertices)
	require.NotEqual(t, a.ID, states[0].ID, "endpoint states carry fresh identifiers")
	require.NotEqual(t, b.ID, states[4].ID)
}

func TestSequenceInteriorStatesInterpolateLinearly(t *testing.T) {
	engine := NewEngine()
	a := placeholderState(t, -1.0, 1.0)
	b := placeholderState(t, 1.0, 1.0)

	states, err := engine.Sequence(a, b, 3)
	require.NoError(t, err)

	mid := states[1]
	for i := range mid.Mesh.Vertices {
		want := r3.Add(r3.Scale(0.5, a.Mesh.Vertices[i]), r3.Scale(0.5, b.Mesh.Vertices[i]))
		require.InDelta(t, want.X, mid.Mesh.Vertices[i].X, 1e-12)
		require.InDelta(t, want.Y, mid.Mesh.Vertices[i].Y, 1e-12)
		require.InDelta(t, want.Z, mid.Mesh.Vertices[i].Z, 1e-12)
	}
	require.InDelta(t, 0.0, mid.Params.Betas[0], 1e-12)
}

func TestSequenceIdentityMorphKeepsGeometry(t *testing.T) {
	engine := NewEngine()
	a := placeholderState(t, 0.5, 1.1)

	states, err := engine.Sequence(a, a, 4)
	require.NoError(t, err)
	require.Len(t, states, 4)

	for si, state := range states {
		require.Truef(t, state.Mesh.SameTopology(a.Mesh), "state %d changed topology", si)
		for i := range state.Mesh.Vertices {
			require.InDelta(t, a.Mesh.Vertices[i].X, state.Mesh.Vertices[i].X, 1e-12)
			require.InDelta(t, a.Mesh.Vertices[i].Y, state.Mesh.Vertices[i].Y, 1e-12)
			require.InDelta(t, a.Mesh.Vertices[i].Z, state.Mesh.Vertices[i].Z, 1e-12)
		}
	}
}

func TestSequenceRecomputesUnitNormals(t *testing.T) {
	engine := NewEngine()
	a := placeholderState(t, -1.5, 0.8)
	b := placeholderState(t, 1.5, 1.3)

	states, err := engine.Sequence(a, b, 6)
	require.NoError(t, err)

	for si, state := range states {
		require.Lenf(t, state.Mesh.Normals, len(state.Mesh.Vertices), "state %d normals missing", si)
		for ni, n := range state.Mesh.Normals {
			require.InDeltaf(t, 1.0, r3.Norm(n), 1e-9, "state %d normal %d off unit length", si, ni)
		}
	}
}

func TestSequenceRejectsTooFewSteps(t *testing.T) {
	engine := NewEngine()
	a := placeholderState(t, 0, 1.0)

	_, err := engine.Sequence(a, a, 1)
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
	require.Equal(t, "steps", validation.Field)
}

func TestSequenceRejectsBackendMismatch(t *testing.T) {
	engine := NewEngine()
	a := placeholderState(t, 0, 1.0)
	b := placeholderState(t, 0, 1.0)
	b.Backend = domain.BackendLicensed

	_, err := engine.Sequence(a, b, 3)
	var mismatch *domain.TopologyMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestSequenceRejectsTopologyMismatch(t *testing.T) {
	engine := NewEngine()
	a := placeholderState(t, 0, 1.0)
	b := placeholderState(t, 0, 1.0)
	b.Mesh = geometry.Mesh{
		Vertices: b.Mesh.Vertices[:len(b.Mesh.Vertices)-1],
		Faces:    b.Mesh.Faces,
	}

	_, err := engine.Sequence(a, b, 3)
	var mismatch *domain.TopologyMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestSequenceDoesNotMutateInputs(t *testing.T) {
	engine := NewEngine()
	a := placeholderState(t, -1.0, 1.0)
	b := placeholderState(t, 1.0, 1.0)
	before := a.Mesh.Clone()

	states, err := engine.Sequence(a, b, 3)
	require.NoError(t, err)

	states[0].Mesh.Vertices[0] = r3.Vec{X: 99}
	require.Equal(t, before.Vertices, a.Mesh.Vertices)
}
