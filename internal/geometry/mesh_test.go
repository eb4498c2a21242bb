package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func tetrahedron() Mesh {
	return Mesh{
		Vertices: []r3.Vec{
			{X: 1, Y: 1, Z: 1},
			{X: 1, Y: -1, Z: -1},
			{X: -1, Y: 1, Z: -1},
			{X: -1, Y: -1, Z: 1},
		},
		Faces: [][3]int{{0, 2, 1}, {0, 1, 3}, {0, 3, 2}, {1, 2, 3}},
	}
}

func TestValidateAcceptsClosedManifold(t *testing.T) {
	require.NoError(t, tetrahedron().Validate())
}

func TestValidateRejectsOpenMesh(t *testing.T) {
	mesh := tetrahedron()
	mesh.Faces = mesh.Faces[:3]
	require.Error(t, mesh.Validate())
}

func TestValidateRejectsOutOfRangeIndex(t *testing.T) {
	mesh := tetrahedron()
	mesh.Faces[0][0] = 99
	require.Error(t, mesh.Validate())
}

func TestValidateRejectsDegenerateFace(t *testing.T) {
	mesh := tetrahedron()
	mesh.Faces[0] = [3]int{1, 1, 2}
	require.Error(t, mesh.Validate())
}

func TestRecomputeNormalsAreUnitAndOutward(t *testing.T) {
	mesh := tetrahedron()
	mesh.RecomputeNormals()
	require.Len(t, mesh.Normals, len(mesh.Vertices))

	for i, n := range mesh.Normals {
		require.InDeltaf(t, 1.0, r3.Norm(n), 1e-9, "normal %d is not unit length", i)
		// Every tetrahedron vertex normal points away from the centroid.
		require.Positivef(t, r3.Dot(n, mesh.Vertices[i]), "normal %d points inward", i)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	mesh := tetrahedron()
	mesh.RecomputeNormals()

	clone := mesh.Clone()
	clone.Vertices[0] = r3.Vec{X: 9}
	clone.Faces[0][0] = 3

	require.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, mesh.Vertices[0])
	require.Equal(t, [3]int{0, 2, 1}, mesh.Faces[0])
}

func TestSameTopology(t *testing.T) {
	a := tetrahedron()
	b := tetrahedron()
	// Moving vertices does not change topology.
	b.Scale(2)
	require.True(t, a.SameTopology(b))

	b.Faces[0] = [3]int{0, 1, 2}
	require.False(t, a.SameTopology(b))

	c := tetrahedron()
	c.Vertices = append(c.Vertices, r3.Vec{})
	require.False(t, a.SameTopology(c))
}

func TestScaleIsUniform(t *testing.T) {
	mesh := tetrahedron()
	mesh.Scale(0.5)
	require.InDelta(t, math.Sqrt(3)/2, r3.Norm(mesh.Vertices[0]), 1e-12)
}
