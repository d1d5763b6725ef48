// Package mesh converts OBJ text into indexed triangle meshes and provides the
// small amount of tooling the harness needs around them (rescaling, OBJ and
// GLB writers, simplification).
package mesh

import (
	"fmt"

	"github.com/ungerik/go3d/float64/vec3"
)

// Triangle is a triple of zero-based vertex indices.
type Triangle [3]int

// Bounds is an axis-aligned bounding box. The zero value describes an empty mesh.
type Bounds struct {
	Min, Max vec3.T
}

// Center returns the midpoint of the box.
func (b Bounds) Center() vec3.T {
	return vec3.T{
		(b.Min[0] + b.Max[0]) / 2,
		(b.Min[1] + b.Max[1]) / 2,
		(b.Min[2] + b.Max[2]) / 2,
	}
}

// Size returns the extent of the box along each axis.
func (b Bounds) Size() vec3.T {
	return vec3.Sub(&b.Max, &b.Min)
}

// Mesh is an indexed triangle mesh. It is built fresh by every parse and is
// owned by the caller.
type Mesh struct {
	Vertices  []vec3.T
	Triangles []Triangle
	Normals   []vec3.T // one per vertex
	Bounds    Bounds
}

// New assembles a mesh and derives its normals and bounds.
func New(vertices []vec3.T, triangles []Triangle) *Mesh {
	if vertices == nil {
		vertices = []vec3.T{}
	}
	if triangles == nil {
		triangles = []Triangle{}
	}
	m := &Mesh{
		Vertices:  vertices,
		Triangles: triangles,
	}
	m.RecalculateNormals()
	m.RecalculateBounds()
	return m
}

// Indices flattens the triangles into the triangle-index sequence.
func (m *Mesh) Indices() []int {
	out := make([]int, 0, len(m.Triangles)*3)
	for _, t := range m.Triangles {
		out = append(out, t[0], t[1], t[2])
	}
	return out
}

// Validate reports the first triangle that references a vertex outside the
// vertex sequence. The parser does not call it unless strict indices are on.
func (m *Mesh) Validate() error {
	for i, t := range m.Triangles {
		for _, idx := range t {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("triangle %d references vertex %d of %d: %w", i, idx, len(m.Vertices), ErrIndexOutOfRange)
			}
		}
	}
	return nil
}

func (m *Mesh) inRange(t Triangle) bool {
	n := len(m.Vertices)
	return t[0] >= 0 && t[0] < n && t[1] >= 0 && t[1] < n && t[2] >= 0 && t[2] < n
}

// RecalculateNormals computes area-weighted per-vertex normals from the
// triangle winding. Triangles with out-of-range indices contribute nothing.
func (m *Mesh) RecalculateNormals() {
	normals := make([]vec3.T, len(m.Vertices))
	for _, t := range m.Triangles {
		if !m.inRange(t) {
			continue
		}
		e1 := vec3.Sub(&m.Vertices[t[1]], &m.Vertices[t[0]])
		e2 := vec3.Sub(&m.Vertices[t[2]], &m.Vertices[t[0]])
		n := vec3.Cross(&e1, &e2)
		for _, idx := range t {
			normals[idx].Add(&n)
		}
	}
	for i := range normals {
		normals[i].Normalize()
	}
	m.Normals = normals
}

// RecalculateBounds recomputes the axis-aligned box around all vertices.
func (m *Mesh) RecalculateBounds() {
	if len(m.Vertices) == 0 {
		m.Bounds = Bounds{}
		return
	}
	b := Bounds{Min: m.Vertices[0], Max: m.Vertices[0]}
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			if v[i] < b.Min[i] {
				b.Min[i] = v[i]
			}
			if v[i] > b.Max[i] {
				b.Max[i] = v[i]
			}
		}
	}
	m.Bounds = b
}

// Transformed returns a copy with every vertex scaled uniformly and then
// translated. Normals are unchanged by a uniform scale.
func (m *Mesh) Transformed(position vec3.T, scale float64) *Mesh {
	vertices := make([]vec3.T, len(m.Vertices))
	for i, v := range m.Vertices {
		scaled := v.Scaled(scale)
		vertices[i] = *scaled.Add(&position)
	}
	triangles := make([]Triangle, len(m.Triangles))
	copy(triangles, m.Triangles)
	normals := make([]vec3.T, len(m.Normals))
	copy(normals, m.Normals)

	out := &Mesh{Vertices: vertices, Triangles: triangles, Normals: normals}
	out.RecalculateBounds()
	return out
}
