package vulkan

import (
	vk "github.com/goki/vulkan"
)

type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
}

// NewBuffer creates a buffer of size bytes and binds freshly allocated
// memory with the requested properties to it.
func NewBuffer(context *Context, size vk.DeviceSize, usage vk.BufferUsageFlags, properties vk.MemoryPropertyFlags) (*Buffer, error) {
	driver := context.Driver
	handle, res := driver.CreateBuffer(size, usage)
	if err := checkResult("create buffer", res); err != nil {
		return nil, err
	}
	memory, res := driver.AllocateBufferMemory(handle, properties)
	if err := checkResult("allocate buffer memory", res); err != nil {
		driver.DestroyBuffer(handle)
		return nil, err
	}
	return &Buffer{Handle: handle, Memory: memory, Size: size}, nil
}

// Write copies data to the start of a host visible buffer.
func (b *Buffer) Write(context *Context, data []byte) error {
	if vk.DeviceSize(len(data)) > b.Size {
		err := &Error{Op: "write buffer", Kind: KindCreationFailed, Result: vk.ErrorMemoryMapFailed}
		return err
	}
	return checkResult("write buffer", context.Driver.WriteMemory(b.Memory, data))
}

func (b *Buffer) Destroy(context *Context) {
	if b.Handle != nil {
		context.Driver.DestroyBuffer(b.Handle)
		b.Handle = nil
	}
	if b.Memory != nil {
		context.Driver.FreeMemory(b.Memory)
		b.Memory = nil
	}
	b.Size = 0
}

// UploadBuffer creates a device local buffer holding data. The bytes go
// through a host visible staging buffer and a one time transfer on the
// graphics queue, which is waited on before returning.
func UploadBuffer(context *Context, data []byte, usage vk.BufferUsageFlags) (*Buffer, error) {
	size := vk.DeviceSize(len(data))

	staging, err := NewBuffer(context, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy(context)

	if err := staging.Write(context, data); err != nil {
		return nil, err
	}

	buffer, err := NewBuffer(context, size,
		usage|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}

	cb, err := AllocateAndBeginSingleUse(context, context.CommandPool)
	if err != nil {
		buffer.Destroy(context)
		return nil, err
	}
	context.Driver.CmdCopyBuffer(cb.Handle, staging.Handle, buffer.Handle, size)
	if err := cb.EndSingleUse(context, context.CommandPool, context.GraphicsQueue); err != nil {
		buffer.Destroy(context)
		return nil, err
	}
	return buffer, nil
}
