// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wgpu adapts gogpu/wgpu's hardware abstraction layer to the
// capture interfaces. Asynchronous buffer mapping is driven by fences:
// every capture submission carries a fence, and Device.Poll turns fence
// signals into map callbacks and CPU-visible bytes.
package wgpu

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/capture"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// Adapter errors.
var (
	// ErrNoHALDevice is returned when a device provider does not expose
	// wgpu/hal handles.
	ErrNoHALDevice = errors.New("wgpu: provider does not expose hal device and queue")

	// ErrNotHALTexture is returned when a capture source is not a
	// hal.Texture.
	ErrNotHALTexture = errors.New("wgpu: texture is not a hal.Texture")

	// ErrNotAdapterBuffer is returned when a copy destination or command
	// buffer was not created by this adapter.
	ErrNotAdapterBuffer = errors.New("wgpu: object was not created by this adapter")

	// ErrBufferNotMapped is returned by MappedRange before a successful
	// map completion or after Unmap.
	ErrBufferNotMapped = errors.New("wgpu: buffer is not mapped")

	// ErrBufferMapPending is returned by MapAsync when a map request is
	// already outstanding.
	ErrBufferMapPending = errors.New("wgpu: buffer map already pending")

	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("wgpu: buffer has been destroyed")

	// ErrEncoderFinished is returned when recording into an encoder after
	// Finish.
	ErrEncoderFinished = errors.New("wgpu: command encoder already finished")
)

// fenceWaitTimeout bounds a blocking Poll so a wedged driver cannot hang
// the caller forever; capture-level timeouts handle the abandoned
// snapshot.
const fenceWaitTimeout = time.Second

// submission is one submitted capture batch awaiting its fence.
type submission struct {
	fence   hal.Fence
	value   uint64
	cmds    []hal.CommandBuffer
	targets []*Buffer
}

// Device implements capture.Device over hal.Device and hal.Queue.
//
// Thread Safety: Device is safe for concurrent use. The submission list
// is protected by a mutex; map callbacks are invoked outside it.
type Device struct {
	mu          sync.Mutex
	device      hal.Device
	queue       hal.Queue
	submissions []*submission
	ready       []*Buffer
}

// NewDevice wraps existing hal handles. The caller retains ownership of
// the device and queue; the adapter never destroys them.
func NewDevice(device hal.Device, queue hal.Queue) *Device {
	return &Device{device: device, queue: queue}
}

// FromContext builds a Device from a gpucontext device provider (for
// example a gogpu window). The provider must expose its wgpu/hal handles
// through HalDevice() any and HalQueue() any.
func FromContext(provider gpucontext.DeviceProvider) (*Device, error) {
	hp, ok := provider.(interface {
		HalDevice() any
		HalQueue() any
	})
	if !ok {
		return nil, ErrNoHALDevice
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALDevice)
	}
	return NewDevice(device, queue), nil
}

// Queue returns the capture.Queue for this device.
func (d *Device) Queue() *Queue {
	return &Queue{device: d}
}

// CreateReadbackBuffer creates a MapRead | CopyDst staging buffer sized
// for one row-padded frame.
func (d *Device) CreateReadbackBuffer(size uint64, label string) (capture.Buffer, error) {
	if label == "" {
		label = "capture_staging"
	}
	halBuf, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: readbackUsage,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create staging buffer: %w", err)
	}
	return &Buffer{device: d, halBuffer: halBuf, size: size}, nil
}

// CreateCommandEncoder creates an encoder for one capture submission.
func (d *Device) CreateCommandEncoder(label string) (capture.CommandEncoder, error) {
	if label == "" {
		label = "capture_copy"
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: label,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("wgpu: begin encoding: %w", err)
	}
	return &Encoder{device: d, encoder: enc}, nil
}

// Poll delivers completed map requests and checks the fences of
// outstanding submissions, reading back buffer contents and firing map
// callbacks as copies complete. With wait=true and no completion already
// at hand it blocks on the oldest fence, bounded by fenceWaitTimeout.
//
// Fence wait failures mean the device is gone: every outstanding callback
// is failed with MapStatusDeviceLost and the error is returned wrapped in
// capture.ErrDeviceLost.
func (d *Device) Poll(wait bool) error {
	progressed := d.deliverReady()

	d.mu.Lock()
	pending := make([]*submission, len(d.submissions))
	copy(pending, d.submissions)
	d.mu.Unlock()

	var lost error
	for i, sub := range pending {
		var timeout time.Duration
		if wait && i == 0 && !progressed {
			timeout = fenceWaitTimeout
		}
		if lost != nil {
			d.completeSubmission(sub, capture.MapStatusDeviceLost)
			continue
		}
		signaled, err := d.device.Wait(sub.fence, sub.value, timeout)
		switch {
		case err != nil:
			lost = fmt.Errorf("%w: fence wait: %v", capture.ErrDeviceLost, err)
			d.completeSubmission(sub, capture.MapStatusDeviceLost)
		case signaled:
			d.completeSubmission(sub, capture.MapStatusSuccess)
			progressed = true
		}
	}
	return lost
}

// deliverReady fires callbacks for buffers whose copies completed before
// their MapAsync was observed. Reports whether any callback fired.
func (d *Device) deliverReady() bool {
	d.mu.Lock()
	ready := d.ready
	d.ready = nil
	d.mu.Unlock()

	for _, b := range ready {
		b.notify()
	}
	return len(ready) > 0
}

// completeSubmission resolves one submitted batch: on success the staging
// buffers are read back into CPU memory, then each target's map callback
// fires with the final status. Command buffers and the fence are released
// either way.
func (d *Device) completeSubmission(sub *submission, status capture.MapStatus) {
	d.mu.Lock()
	for i, s := range d.submissions {
		if s == sub {
			d.submissions = append(d.submissions[:i], d.submissions[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	for _, cmd := range sub.cmds {
		d.device.FreeCommandBuffer(cmd)
	}
	d.device.DestroyFence(sub.fence)

	for _, b := range sub.targets {
		b.complete(status)
	}
}

// enqueueReady defers a completed buffer's callback to the next Poll.
func (d *Device) enqueueReady(b *Buffer) {
	d.mu.Lock()
	d.ready = append(d.ready, b)
	d.mu.Unlock()
}

// Queue implements capture.Queue. Each submission carries a fresh fence
// that Poll later uses to observe copy completion.
type Queue struct {
	device *Device
}

// Submit submits recorded command buffers as one batch. A single fence
// covers the batch and gates the readback of every staging buffer it
// writes.
func (q *Queue) Submit(buffers ...capture.CommandBuffer) error {
	if len(buffers) == 0 {
		return nil
	}

	cmds := make([]hal.CommandBuffer, 0, len(buffers))
	var targets []*Buffer
	for _, cb := range buffers {
		rec, ok := cb.(*commandBuffer)
		if !ok {
			return ErrNotAdapterBuffer
		}
		cmds = append(cmds, rec.cmd)
		targets = append(targets, rec.targets...)
	}

	d := q.device
	fence, err := d.device.CreateFence()
	if err != nil {
		return fmt.Errorf("%w: create fence: %v", capture.ErrDeviceLost, err)
	}
	if err := d.queue.Submit(cmds, fence, 1); err != nil {
		d.device.DestroyFence(fence)
		return fmt.Errorf("%w: submit: %v", capture.ErrDeviceLost, err)
	}

	d.mu.Lock()
	d.submissions = append(d.submissions, &submission{
		fence:   fence,
		value:   1,
		cmds:    cmds,
		targets: targets,
	})
	d.mu.Unlock()
	return nil
}
