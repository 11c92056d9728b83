// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/capture"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// readbackUsage is the buffer usage for CPU readback staging buffers.
const readbackUsage = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst

// Buffer implements capture.Buffer over a hal staging buffer. Mapping is
// emulated on top of fences: when the submission fence that wrote this
// buffer signals, the contents are read back through hal.Queue.ReadBuffer
// and held until Unmap.
type Buffer struct {
	device    *Device
	halBuffer hal.Buffer
	size      uint64

	mu        sync.Mutex
	cb        func(capture.MapStatus)
	mapped    []byte
	done      bool
	status    capture.MapStatus
	destroyed bool
}

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// MapAsync requests a map-for-read of the whole buffer. The callback
// fires during a later Device.Poll, after the submission fence that wrote
// the buffer has signaled.
func (b *Buffer) MapAsync(callback func(capture.MapStatus)) error {
	b.mu.Lock()
	switch {
	case b.destroyed:
		b.mu.Unlock()
		return ErrBufferDestroyed
	case b.cb != nil:
		b.mu.Unlock()
		return ErrBufferMapPending
	}
	b.cb = callback
	deliverNow := b.done
	b.mu.Unlock()

	// The copy already completed; hand the callback to the next Poll so
	// completion is still only ever observed from the poll driver.
	if deliverNow {
		b.device.enqueueReady(b)
	}
	return nil
}

// MappedRange returns the read-back bytes. Only valid between a
// MapStatusSuccess callback and Unmap.
func (b *Buffer) MappedRange() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return nil, ErrBufferDestroyed
	}
	if b.mapped == nil {
		return nil, ErrBufferNotMapped
	}
	return b.mapped, nil
}

// Unmap releases the CPU copy of the buffer contents.
func (b *Buffer) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed {
		return ErrBufferDestroyed
	}
	if b.mapped == nil {
		return ErrBufferNotMapped
	}
	b.mapped = nil
	return nil
}

// Destroy releases the hal buffer. A pending map callback fires with
// MapStatusDestroyed. Idempotent.
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	cb := b.cb
	b.cb = nil
	b.mapped = nil
	b.mu.Unlock()

	if cb != nil {
		cb(capture.MapStatusDestroyed)
	}
	b.device.device.DestroyBuffer(b.halBuffer)
}

// complete resolves this buffer's part of a finished submission. On
// success the staging contents are copied out through the queue before
// the callback fires. Called by the poll driver with no locks held.
func (b *Buffer) complete(status capture.MapStatus) {
	b.mu.Lock()
	if b.destroyed || b.done {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	var data []byte
	if status == capture.MapStatusSuccess {
		data = make([]byte, b.size)
		if err := b.device.queue.ReadBuffer(b.halBuffer, 0, data); err != nil {
			capture.Logger().Warn("wgpu: staging readback failed", "err", err)
			data = nil
			status = capture.MapStatusError
		}
	}

	b.mu.Lock()
	b.done = true
	b.status = status
	b.mapped = data
	cb := b.cb
	b.cb = nil
	b.mu.Unlock()

	if cb != nil {
		cb(status)
	}
}

// notify fires a callback registered after the copy had already
// completed. Called by the poll driver.
func (b *Buffer) notify() {
	b.mu.Lock()
	cb := b.cb
	b.cb = nil
	status := b.status
	b.mu.Unlock()

	if cb != nil {
		cb(status)
	}
}

// Encoder implements capture.CommandEncoder. It records the usage
// transitions and the copy itself, and remembers which staging buffers
// the batch writes so Submit can gate their readback on the fence.
type Encoder struct {
	device   *Device
	encoder  hal.CommandEncoder
	targets  []*Buffer
	finished bool
}

// CopyTextureToBuffer records a full-texture copy into dst. The source
// must be a hal.Texture and dst must come from CreateReadbackBuffer.
//
// The texture is transitioned RenderAttachment to CopySrc around the copy
// and back afterwards. Vulkan and DX12 require the explicit barrier; it
// is a no-op on Metal, GLES, software, and noop backends.
func (e *Encoder) CopyTextureToBuffer(src capture.Texture, dst capture.Buffer, desc capture.TextureDescriptor, layout capture.ImageCopyLayout) error {
	if e.finished {
		return ErrEncoderFinished
	}
	tex, ok := src.(hal.Texture)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotHALTexture, src)
	}
	buf, ok := dst.(*Buffer)
	if !ok {
		return fmt.Errorf("%w: %T", ErrNotAdapterBuffer, dst)
	}

	e.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageRenderAttachment,
			NewUsage: gputypes.TextureUsageCopySrc,
		},
	}})

	e.encoder.CopyTextureToBuffer(tex, buf.halBuffer, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{
			Offset:       layout.Offset,
			BytesPerRow:  layout.BytesPerRow,
			RowsPerImage: layout.RowsPerImage,
		},
		TextureBase: hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		Size: hal.Extent3D{
			Width:              uint32(desc.Width),  //nolint:gosec // validated positive
			Height:             uint32(desc.Height), //nolint:gosec // validated positive
			DepthOrArrayLayers: 1,
		},
	}})

	e.encoder.TransitionTextures([]hal.TextureBarrier{{
		Texture: tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: gputypes.TextureUsageCopySrc,
			NewUsage: gputypes.TextureUsageRenderAttachment,
		},
	}})

	e.targets = append(e.targets, buf)
	return nil
}

// Finish ends encoding and returns the recorded batch.
func (e *Encoder) Finish() (capture.CommandBuffer, error) {
	if e.finished {
		return nil, ErrEncoderFinished
	}
	e.finished = true
	cmd, err := e.encoder.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("wgpu: end encoding: %w", err)
	}
	return &commandBuffer{cmd: cmd, targets: e.targets}, nil
}

// commandBuffer pairs a recorded hal command buffer with the staging
// buffers it writes.
type commandBuffer struct {
	cmd     hal.CommandBuffer
	targets []*Buffer
}
