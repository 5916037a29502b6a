package vulkan

import (
	vk "github.com/goki/vulkan"
)

type CommandBufferState int

const (
	COMMAND_BUFFER_STATE_NOT_ALLOCATED CommandBufferState = iota
	COMMAND_BUFFER_STATE_READY
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
)

type CommandBuffer struct {
	Handle vk.CommandBuffer
	// Command buffer state.
	State CommandBufferState
}

// AllocateCommandBuffers allocates count primary command buffers from pool.
func AllocateCommandBuffers(context *Context, pool vk.CommandPool, count uint32) ([]*CommandBuffer, error) {
	handles, res := context.Driver.AllocateCommandBuffers(pool, count)
	if err := checkResult("allocate command buffers", res); err != nil {
		return nil, err
	}
	buffers := make([]*CommandBuffer, len(handles))
	for i, handle := range handles {
		buffers[i] = &CommandBuffer{Handle: handle, State: COMMAND_BUFFER_STATE_READY}
	}
	return buffers, nil
}

func (cb *CommandBuffer) Free(context *Context, pool vk.CommandPool) {
	if cb.Handle != nil {
		context.Driver.FreeCommandBuffers(pool, []vk.CommandBuffer{cb.Handle})
	}
	cb.Handle = nil
	cb.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (cb *CommandBuffer) Begin(context *Context, isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	var flags vk.CommandBufferUsageFlags
	if isSingleUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := checkResult("begin command buffer", context.Driver.BeginCommandBuffer(cb.Handle, flags)); err != nil {
		return err
	}
	cb.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (cb *CommandBuffer) End(context *Context) error {
	if err := checkResult("end command buffer", context.Driver.EndCommandBuffer(cb.Handle)); err != nil {
		return err
	}
	cb.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (cb *CommandBuffer) BeginRenderPass(context *Context, info *vk.RenderPassBeginInfo) {
	context.Driver.CmdBeginRenderPass(cb.Handle, info)
	cb.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (cb *CommandBuffer) EndRenderPass(context *Context) {
	context.Driver.CmdEndRenderPass(cb.Handle)
	cb.State = COMMAND_BUFFER_STATE_RECORDING
}

func (cb *CommandBuffer) UpdateSubmitted() {
	cb.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (cb *CommandBuffer) Reset() {
	cb.State = COMMAND_BUFFER_STATE_READY
}

/**
 * Allocates and begins recording to a one time command buffer.
 */
func AllocateAndBeginSingleUse(context *Context, pool vk.CommandPool) (*CommandBuffer, error) {
	buffers, err := AllocateCommandBuffers(context, pool, 1)
	if err != nil {
		return nil, err
	}
	cb := buffers[0]
	if err := cb.Begin(context, true, false, false); err != nil {
		cb.Free(context, pool)
		return nil, err
	}
	return cb, nil
}

/**
 * Ends recording, submits to and waits for queue operation and frees the provided command buffer.
 */
func (cb *CommandBuffer) EndSingleUse(context *Context, pool vk.CommandPool, queue vk.Queue) error {
	defer cb.Free(context, pool)

	// End the command buffer.
	if err := cb.End(context); err != nil {
		return err
	}

	// Submit the queue
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	if err := checkResult("queue submit", context.Driver.QueueSubmit(queue, submitInfo, vk.NullFence)); err != nil {
		return err
	}
	cb.UpdateSubmitted()

	// Wait for it to finish
	return checkResult("queue wait idle", context.Driver.QueueWaitIdle(queue))
}
