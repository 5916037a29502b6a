package math

// GeometryGenerateNormals assigns a face normal to every vertex of every
// triangle. Shared vertices end up with the normal of the last face.
func GeometryGenerateNormals(vertices []Vertex3D, indices []uint32) {
	for i := 0; i+2 < len(indices); i += 3 {
		i0 := indices[i+0]
		i1 := indices[i+1]
		i2 := indices[i+2]

		edge1 := vertices[i1].Position.Sub(vertices[i0].Position)
		edge2 := vertices[i2].Position.Sub(vertices[i0].Position)

		normal := edge1.Cross(edge2).Normalized()

		vertices[i0].Normal = normal
		vertices[i1].Normal = normal
		vertices[i2].Normal = normal
	}
}

type cubeFace struct {
	normal  Vec3
	corners [4]Vec3
}

// GenerateCube builds a unit cube centred on the origin with side length
// size. Each face has its own four vertices so normals stay flat, giving
// 24 vertices and 36 counter-clockwise indices.
func GenerateCube(size float32) ([]Vertex3D, []uint32) {
	h := size * 0.5
	faces := [6]cubeFace{
		// front
		{Vec3{0, 0, 1}, [4]Vec3{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}}},
		// back
		{Vec3{0, 0, -1}, [4]Vec3{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}},
		// top
		{Vec3{0, 1, 0}, [4]Vec3{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}}},
		// bottom
		{Vec3{0, -1, 0}, [4]Vec3{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}},
		// right
		{Vec3{1, 0, 0}, [4]Vec3{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}}},
		// left
		{Vec3{-1, 0, 0}, [4]Vec3{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}},
	}
	uvs := [4]Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	vertices := make([]Vertex3D, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for c, corner := range f.corners {
			vertices = append(vertices, Vertex3D{Position: corner, Normal: f.normal, Texcoord: uvs[c]})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vertices, indices
}

// GeneratePlane builds a subdivided plane in the XZ plane facing +Y.
// xSegments and zSegments below one are treated as one.
func GeneratePlane(width, depth float32, xSegments, zSegments uint32) ([]Vertex3D, []uint32) {
	xSegments = max(xSegments, 1)
	zSegments = max(zSegments, 1)

	vertices := make([]Vertex3D, 0, (xSegments+1)*(zSegments+1))
	for z := uint32(0); z <= zSegments; z++ {
		for x := uint32(0); x <= xSegments; x++ {
			u := float32(x) / float32(xSegments)
			v := float32(z) / float32(zSegments)
			vertices = append(vertices, Vertex3D{
				Position: Vec3{(u - 0.5) * width, 0, (v - 0.5) * depth},
				Texcoord: Vec2{u, v},
			})
		}
	}

	stride := xSegments + 1
	indices := make([]uint32, 0, xSegments*zSegments*6)
	for z := uint32(0); z < zSegments; z++ {
		for x := uint32(0); x < xSegments; x++ {
			i0 := z*stride + x
			i1 := i0 + 1
			i2 := i0 + stride
			i3 := i2 + 1
			indices = append(indices, i0, i2, i1, i1, i2, i3)
		}
	}

	GeometryGenerateNormals(vertices, indices)
	return vertices, indices
}
