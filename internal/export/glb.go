// Package export writes avatar states to the binary glTF interchange format
// with a companion structured metadata record.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"example.com/avatar/internal/domain"
	"example.com/avatar/internal/geometry"
)

// FileExporter persists mesh + metadata pairs under a configured output
// directory: <dir>/<avatar id>.glb|.json for single states and
// <dir>/morphs/<sequence id>/step_NNN.glb|.json for morph steps.
type FileExporter struct {
	outputDir string
}

// NewFileExporter constructs a FileExporter rooted at outputDir.
func NewFileExporter(outputDir string) *FileExporter {
	return &FileExporter{outputDir: outputDir}
}

// StateMetadata is the structured record exported next to each GLB.
type StateMetadata struct {
	AvatarID               string          `json:"avatar_id"`
	Betas                  []float64       `json:"betas"`
	Scale                  float64         `json:"scale"`
	RegionalBias           map[string]bool `json:"regional_bias,omitempty"`
	Backend                string          `json:"backend"`
	Gender                 string          `json:"gender"`
	AssumedBMI             bool            `json:"assumed_bmi"`
	PersonalizationApplied bool            `json:"personalization_applied"`
	CreatedAt              time.Time       `json:"created_at"`
}

// ExportState writes the state's mesh and metadata, returning both paths.
func (e *FileExporter) ExportState(state domain.AvatarState) (string, string, error) {
	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		return "", "", err
	}

	glbPath := filepath.Join(e.outputDir, state.ID+".glb")
	metadataPath := filepath.Join(e.outputDir, state.ID+".json")

	if err := writeGLB(glbPath, state.Mesh); err != nil {
		return "", "", err
	}
	if err := writeMetadata(metadataPath, state); err != nil {
		return "", "", err
	}
	return glbPath, metadataPath, nil
}

// ExportSequence writes every step of a morph sequence, addressable by step
// index, and returns the sequence directory.
func (e *FileExporter) ExportSequence(seq domain.MorphSequence) (string, error) {
	dir := filepath.Join(e.outputDir, "morphs", seq.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	for i, state := range seq.States {
		glbPath := filepath.Join(dir, fmt.Sprintf("step_%03d.glb", i))
		metadataPath := filepath.Join(dir, fmt.Sprintf("step_%03d.json", i))
		if err := writeGLB(glbPath, state.Mesh); err != nil {
			return "", err
		}
		if err := writeMetadata(metadataPath, state); err != nil {
			return "", err
		}
	}
	return dir, nil
}

func writeGLB(path string, mesh geometry.Mesh) error {
	doc := gltf.NewDocument()

	positions := make([][3]float32, len(mesh.Vertices))
	normals := make([][3]float32, len(mesh.Normals))
	for i, v := range mesh.Vertices {
		positions[i] = [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
	}
	for i, n := range mesh.Normals {
		normals[i] = [3]float32{float32(n.X), float32(n.Y), float32(n.Z)}
	}
	indices := make([]uint32, 0, len(mesh.Faces)*3)
	for _, face := range mesh.Faces {
		indices = append(indices, uint32(face[0]), uint32(face[1]), uint32(face[2]))
	}

	posAccessor := modeler.WritePosition(doc, positions)
	nrmAccessor := modeler.WriteNormal(doc, normals)
	idxAccessor := modeler.WriteIndices(doc, indices)

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "body",
		Primitives: []*gltf.Primitive{{
			Indices: gltf.Index(idxAccessor),
			Attributes: map[string]int{
				gltf.POSITION: posAccessor,
				gltf.NORMAL:   nrmAccessor,
			},
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "body", Mesh: gltf.Index(0)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	return gltf.SaveBinary(doc, path)
}

func writeMetadata(path string, state domain.AvatarState) error {
	record := StateMetadata{
		AvatarID:               state.ID,
		Betas:                  state.Params.Betas[:],
		Scale:                  state.Params.Scale,
		RegionalBias:           state.Params.RegionalBias,
		Backend:                string(state.Backend),
		Gender:                 string(state.Gender),
		AssumedBMI:             state.Params.AssumedBMI,
		PersonalizationApplied: state.Params.PersonalizationApplied,
		CreatedAt:              state.CreatedAt,
	}

	body, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o644)
}
