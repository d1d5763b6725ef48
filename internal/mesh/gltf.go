package mesh

import (
	"fmt"
	"io"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// EncodeGLB writes m as a single-mesh binary glTF document with positions,
// normals and uint32 indices.
func EncodeGLB(w io.Writer, m *Mesh, name string) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("encode glb: %w", err)
	}
	if len(m.Triangles) == 0 {
		return fmt.Errorf("encode glb: mesh %q has no triangles", name)
	}

	positions := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
	}
	normals := make([][3]float32, len(m.Normals))
	for i, n := range m.Normals {
		normals[i] = [3]float32{float32(n[0]), float32(n[1]), float32(n[2])}
	}
	indices := make([]uint32, 0, len(m.Triangles)*3)
	for _, idx := range m.Indices() {
		indices = append(indices, uint32(idx))
	}

	doc := gltf.NewDocument()
	posAccessor := modeler.WritePosition(doc, positions)
	normAccessor := modeler.WriteNormal(doc, normals)
	idxAccessor := modeler.WriteIndices(doc, indices)

	doc.Meshes = []*gltf.Mesh{{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Indices: gltf.Index(idxAccessor),
			Attributes: map[string]int{
				gltf.POSITION: posAccessor,
				gltf.NORMAL:   normAccessor,
			},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode glb: %w", err)
	}
	return nil
}
