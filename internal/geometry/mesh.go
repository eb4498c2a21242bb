// Package geometry holds the mesh representation shared by synthesis backends
// and the morph engine.
package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mesh is an indexed triangle mesh with per-vertex normals. Vertex count and
// face connectivity are fixed for a given backend variant and configuration,
// which is what makes vertex-level morphing between two meshes well-defined.
type Mesh struct {
	Vertices []r3.Vec
	Faces    [][3]int
	Normals  []r3.Vec
}

// Clone returns a deep copy so callers can hand meshes around without aliasing.
func (m Mesh) Clone() Mesh {
	out := Mesh{
		Vertices: make([]r3.Vec, len(m.Vertices)),
		Faces:    make([][3]int, len(m.Faces)),
		Normals:  make([]r3.Vec, len(m.Normals)),
	}
	copy(out.Vertices, m.Vertices)
	copy(out.Faces, m.Faces)
	copy(out.Normals, m.Normals)
	return out
}

// SameTopology reports whether two meshes share vertex count and face connectivity.
func (m Mesh) SameTopology(other Mesh) bool {
	if len(m.Vertices) != len(other.Vertices) || len(m.Faces) != len(other.Faces) {
		return false
	}
	for i, face := range m.Faces {
		if face != other.Faces[i] {
			return false
		}
	}
	return true
}

// Scale multiplies every vertex position by factor, in place.
func (m *Mesh) Scale(factor float64) {
	for i, v := range m.Vertices {
		m.Vertices[i] = r3.Scale(factor, v)
	}
}

// RecomputeNormals rebuilds smooth per-vertex normals from the current
// geometry. Face normals come from the cross product of each face's edge
// vectors; accumulating the unnormalized cross products weights each face by
// its area before the final per-vertex normalization.
func (m *Mesh) RecomputeNormals() {
	if len(m.Normals) != len(m.Vertices) {
		m.Normals = make([]r3.Vec, len(m.Vertices))
	} else {
		for i := range m.Normals {
			m.Normals[i] = r3.Vec{}
		}
	}

	for _, face := range m.Faces {
		a, b, c := m.Vertices[face[0]], m.Vertices[face[1]], m.Vertices[face[2]]
		cross := r3.Cross(r3.Sub(b, a), r3.Sub(c, a))
		m.Normals[face[0]] = r3.Add(m.Normals[face[0]], cross)
		m.Normals[face[1]] = r3.Add(m.Normals[face[1]], cross)
		m.Normals[face[2]] = r3.Add(m.Normals[face[2]], cross)
	}

	for i, n := range m.Normals {
		if r3.Norm(n) == 0 {
			// Degenerate star; keep a stable default rather than NaN.
			m.Normals[i] = r3.Vec{Z: 1}
			continue
		}
		m.Normals[i] = r3.Unit(n)
	}
}

// Validate checks structural soundness: in-range face indices and every edge
// shared by exactly two faces with opposite winding, i.e. a closed manifold.
func (m Mesh) Validate() error {
	if len(m.Vertices) == 0 || len(m.Faces) == 0 {
		return fmt.Errorf("mesh is empty")
	}

	type edge struct{ from, to int }
	edges := make(map[edge]int, len(m.Faces)*3)

	for fi, face := range m.Faces {
		for _, idx := range face {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("face %d references vertex %d outside [0,%d)", fi, idx, len(m.Vertices))
			}
		}
		if face[0] == face[1] || face[1] == face[2] || face[0] == face[2] {
			return fmt.Errorf("face %d is degenerate", fi)
		}
		edges[edge{face[0], face[1]}]++
		edges[edge{face[1], face[2]}]++
		edges[edge{face[2], face[0]}]++
	}

	for e, count := range edges {
		if count != 1 {
			return fmt.Errorf("directed edge %d->%d used %d times, winding is inconsistent", e.from, e.to, count)
		}
		if edges[edge{e.to, e.from}] != 1 {
			return fmt.Errorf("edge %d->%d has no opposing half-edge, mesh is not watertight", e.from, e.to)
		}
	}

	return nil
}
