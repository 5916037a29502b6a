package vulkan

import (
	"encoding/binary"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/math"
)

// Mesh is a static indexed triangle list in device local memory.
type Mesh struct {
	VertexBuffer *Buffer
	IndexBuffer  *Buffer
	IndexCount   uint32
}

func MeshUpload(context *Context, vertices []math.Vertex3D, indices []uint32) (*Mesh, error) {
	vertexBuffer, err := UploadBuffer(context, EncodeVertices(vertices), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return nil, err
	}
	indexBuffer, err := UploadBuffer(context, EncodeIndices(indices), vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit))
	if err != nil {
		vertexBuffer.Destroy(context)
		return nil, err
	}
	return &Mesh{
		VertexBuffer: vertexBuffer,
		IndexBuffer:  indexBuffer,
		IndexCount:   uint32(len(indices)),
	}, nil
}

func (m *Mesh) Destroy(context *Context) {
	if m.VertexBuffer != nil {
		m.VertexBuffer.Destroy(context)
		m.VertexBuffer = nil
	}
	if m.IndexBuffer != nil {
		m.IndexBuffer.Destroy(context)
		m.IndexBuffer = nil
	}
}

// EncodeVertices packs vertices with the layout described by the pipeline's
// vertex input: position, normal, texture coordinate.
func EncodeVertices(vertices []math.Vertex3D) []byte {
	out := make([]byte, len(vertices)*math.Vertex3DSize)
	for i, v := range vertices {
		base := i * math.Vertex3DSize
		putVec3(out, base, v.Position)
		putVec3(out, base+12, v.Normal)
		putFloat(out, base+24, v.Texcoord.X)
		putFloat(out, base+28, v.Texcoord.Y)
	}
	return out
}

func EncodeIndices(indices []uint32) []byte {
	out := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(out[i*4:], idx)
	}
	return out
}
