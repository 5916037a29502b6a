package vulkan

import (
	"encoding/binary"
	stdmath "math"
	"time"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/vkloop/engine/math"
)

const (
	// TransformBlockSize is the std140 size of three mat4 and a mat3.
	TransformBlockSize = 3*64 + 3*16
	// LightingBlockSize is the std140 size of the lighting block.
	LightingBlockSize = 64
)

// Camera and light of the scene. The camera sits on +Z looking down -Z.
var (
	CameraPosition = math.NewVec3(0, 0, 2)
	CameraFront    = math.NewVec3Forward()
	CameraUp       = math.NewVec3Up()

	LightPosition = math.NewVec3(2, 2, 2)
	LightColor    = math.NewVec3One()
)

const (
	FieldOfViewDegrees float32 = 45
	NearClip           float32 = 0.1
	FarClip            float32 = 10
	RotationDegPerSec  float32 = 90
	AmbientStrength    float32 = 0.1
	SpecularStrength   float32 = 0.5
)

// FrameUniforms is bound at binding 0 and read by the vertex stage.
type FrameUniforms struct {
	Model  math.Mat4
	View   math.Mat4
	Proj   math.Mat4
	Normal math.Mat3
}

// Lighting is bound at binding 1 and read by the fragment stage.
type Lighting struct {
	LightPos   math.Vec3
	ViewPos    math.Vec3
	LightColor math.Vec3
	Ambient    float32
	Specular   float32
}

// ComputeFrameUniforms builds the transforms for a frame rendered elapsed
// after start into an image of the given extent. The mesh spins about the
// world Y axis on top of its base transform, which may be nil.
func ComputeFrameUniforms(elapsed time.Duration, extent vk.Extent2D, base *math.Transform) FrameUniforms {
	angle := math.DegToRad(RotationDegPerSec) * float32(elapsed.Seconds())
	spin := math.NewQuatFromAxisAngle(math.NewVec3Up(), angle, true).ToMat4()
	model := spin.Mul(base.GetWorld())

	view := math.NewMat4LookAt(CameraPosition, CameraPosition.Add(CameraFront), CameraUp)

	aspect := float32(1)
	if extent.Height > 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}
	proj := math.NewMat4Perspective(math.DegToRad(FieldOfViewDegrees), aspect, NearClip, FarClip)
	// Vulkan clip space has Y pointing down.
	proj.Data[5] *= -1

	return FrameUniforms{
		Model:  model,
		View:   view,
		Proj:   proj,
		Normal: model.NormalMatrix(),
	}
}

func ComputeLighting() Lighting {
	return Lighting{
		LightPos:   LightPosition,
		ViewPos:    CameraPosition,
		LightColor: LightColor,
		Ambient:    AmbientStrength,
		Specular:   SpecularStrength,
	}
}

func putFloat(dst []byte, offset int, v float32) {
	binary.LittleEndian.PutUint32(dst[offset:], stdmath.Float32bits(v))
}

func putVec3(dst []byte, offset int, v math.Vec3) {
	putFloat(dst, offset, v.X)
	putFloat(dst, offset+4, v.Y)
	putFloat(dst, offset+8, v.Z)
}

// Bytes encodes the uniforms with std140 layout. The mat3 takes three
// columns padded to 16 bytes each.
func (u FrameUniforms) Bytes() []byte {
	out := make([]byte, TransformBlockSize)
	offset := 0
	for _, m := range []math.Mat4{u.Model, u.View, u.Proj} {
		for _, v := range m.Data {
			putFloat(out, offset, v)
			offset += 4
		}
	}
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			putFloat(out, offset+row*4, u.Normal.Data[col*3+row])
		}
		offset += 16
	}
	return out
}

// Bytes encodes the lighting block with std140 layout. Ambient packs into
// the padding after LightColor.
func (l Lighting) Bytes() []byte {
	out := make([]byte, LightingBlockSize)
	putVec3(out, 0, l.LightPos)
	putVec3(out, 16, l.ViewPos)
	putVec3(out, 32, l.LightColor)
	putFloat(out, 44, l.Ambient)
	putFloat(out, 48, l.Specular)
	return out
}

// UniformSets holds one transform buffer, one lighting buffer and one
// descriptor set per swapchain image.
type UniformSets struct {
	context    *Context
	pool       vk.DescriptorPool
	Sets       []vk.DescriptorSet
	transforms []*Buffer
	lighting   []*Buffer
}

func NewUniformSets(context *Context, layout vk.DescriptorSetLayout, imageCount uint32) (*UniformSets, error) {
	us := &UniformSets{context: context}
	driver := context.Driver

	stack := &ReleaseStack{}
	defer stack.Release()

	pool, res := driver.CreateDescriptorPool(&vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       imageCount,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: 2 * imageCount,
		}},
	})
	if err := checkResult("create descriptor pool", res); err != nil {
		return nil, err
	}
	us.pool = Track(stack, pool, driver.DestroyDescriptorPool)

	hostVisible := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	usage := vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	destroy := func(b *Buffer) { b.Destroy(context) }

	us.Sets = make([]vk.DescriptorSet, imageCount)
	us.transforms = make([]*Buffer, imageCount)
	us.lighting = make([]*Buffer, imageCount)
	writes := make([]vk.WriteDescriptorSet, 0, 2*imageCount)
	for i := uint32(0); i < imageCount; i++ {
		transform, err := NewBuffer(context, TransformBlockSize, usage, hostVisible)
		if err != nil {
			return nil, err
		}
		us.transforms[i] = Track(stack, transform, destroy)

		lighting, err := NewBuffer(context, LightingBlockSize, usage, hostVisible)
		if err != nil {
			return nil, err
		}
		us.lighting[i] = Track(stack, lighting, destroy)

		set, res := driver.AllocateDescriptorSet(pool, layout)
		if err := checkResult("allocate descriptor set", res); err != nil {
			return nil, err
		}
		us.Sets[i] = set

		writes = append(writes,
			vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      0,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeUniformBuffer,
				PBufferInfo: []vk.DescriptorBufferInfo{{
					Buffer: transform.Handle,
					Offset: 0,
					Range:  TransformBlockSize,
				}},
			},
			vk.WriteDescriptorSet{
				SType:           vk.StructureTypeWriteDescriptorSet,
				DstSet:          set,
				DstBinding:      1,
				DescriptorCount: 1,
				DescriptorType:  vk.DescriptorTypeUniformBuffer,
				PBufferInfo: []vk.DescriptorBufferInfo{{
					Buffer: lighting.Handle,
					Offset: 0,
					Range:  LightingBlockSize,
				}},
			},
		)
	}
	driver.UpdateDescriptorSets(writes)

	stack.Disarm()
	return us, nil
}

// Update writes both blocks of imageIndex. The image must not be in use by
// the device.
func (us *UniformSets) Update(imageIndex uint32, frame FrameUniforms, lighting Lighting) error {
	if err := us.transforms[imageIndex].Write(us.context, frame.Bytes()); err != nil {
		return err
	}
	return us.lighting[imageIndex].Write(us.context, lighting.Bytes())
}

// Destroy frees the buffers and the pool, which releases the sets with it.
func (us *UniformSets) Destroy() {
	for _, b := range us.transforms {
		b.Destroy(us.context)
	}
	for _, b := range us.lighting {
		b.Destroy(us.context)
	}
	if us.pool != nil {
		us.context.Driver.DestroyDescriptorPool(us.pool)
		us.pool = nil
	}
	us.transforms = nil
	us.lighting = nil
	us.Sets = nil
}
