package capture

import "fmt"

// This file defines the narrow slice of a GPU backend that frame capture
// needs: a texture handle, a copy-texture-to-buffer command, an asynchronous
// map-for-read operation, and a device poll that drives map completions.
// Device and adapter creation are the host's responsibility; backend/wgpu
// provides the production implementation over gogpu/wgpu.

// TextureFormat represents the pixel format of a captured texture.
type TextureFormat uint8

const (
	// FormatRGBA8 is the standard RGBA format with 8 bits per channel.
	FormatRGBA8 TextureFormat = iota

	// FormatBGRA8 is BGRA format, often used for surface presentation.
	FormatBGRA8

	// FormatR8 is single-channel 8-bit format, used for masks.
	FormatR8
)

// String returns a human-readable name for the format.
func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatBGRA8:
		return "BGRA8"
	case FormatR8:
		return "R8"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// BytesPerPixel returns the number of bytes per pixel for the format.
func (f TextureFormat) BytesPerPixel() int {
	switch f {
	case FormatRGBA8, FormatBGRA8:
		return 4
	case FormatR8:
		return 1
	default:
		return 4
	}
}

// TextureDescriptor describes the source texture of a capture. The host
// supplies it alongside the texture handle; capture never inspects the
// handle itself.
type TextureDescriptor struct {
	// Width is the texture width in pixels.
	Width int

	// Height is the texture height in pixels.
	Height int

	// Format is the pixel format.
	Format TextureFormat

	// SampleCount is the multisample count. Captures require a resolved
	// (single-sample) source; values > 1 are rejected by Capture.
	SampleCount int

	// Label is an optional debug name carried through to buffer labels.
	Label string
}

// MapStatus represents the result of an asynchronous map operation.
type MapStatus int

const (
	// MapStatusSuccess indicates mapping completed and the buffer contents
	// are readable through MappedRange.
	MapStatusSuccess MapStatus = iota

	// MapStatusDeviceLost indicates the device was lost before mapping
	// completed. Fatal for the owning capturer.
	MapStatusDeviceLost

	// MapStatusError indicates the driver rejected or failed the mapping.
	MapStatusError

	// MapStatusDestroyed indicates the buffer was destroyed before the
	// mapping completed.
	MapStatusDestroyed
)

// String returns the string representation of MapStatus.
func (s MapStatus) String() string {
	switch s {
	case MapStatusSuccess:
		return "Success"
	case MapStatusDeviceLost:
		return "DeviceLost"
	case MapStatusError:
		return "Error"
	case MapStatusDestroyed:
		return "Destroyed"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// ImageCopyLayout describes the memory layout of a texture-to-buffer copy.
type ImageCopyLayout struct {
	// Offset is the byte offset into the destination buffer.
	Offset uint64

	// BytesPerRow is the padded stride between rows in the buffer. Must be
	// a multiple of the device's row alignment (see PaddedRowBytes).
	BytesPerRow uint32

	// RowsPerImage is the number of rows; equal to the texture height for
	// 2D captures.
	RowsPerImage uint32
}

// Texture is an opaque handle to a GPU texture supplied by the rendering
// subsystem. Capture passes it through to the backend unmodified.
type Texture interface{}

// Buffer is a GPU buffer that can be copied into and then mapped for
// reading on the CPU.
//
// The mapping callback is invoked from within Device.Poll; completion is
// never spontaneous. Ownership of a Buffer moves between capture stages
// (the capturer while the copy and map are outstanding, then exactly one
// worker), so implementations need not support concurrent access to the
// mapped range.
type Buffer interface {
	// Size returns the buffer size in bytes.
	Size() uint64

	// MapAsync initiates an asynchronous map-for-read of the whole buffer.
	// The callback fires during a later Device.Poll call.
	MapAsync(callback func(MapStatus)) error

	// MappedRange returns the mapped bytes. Only valid after the MapAsync
	// callback reported MapStatusSuccess and before Unmap.
	MappedRange() ([]byte, error)

	// Unmap releases the CPU mapping.
	Unmap() error

	// Destroy releases the buffer. Idempotent.
	Destroy()
}

// CommandEncoder records GPU commands for one capture submission.
type CommandEncoder interface {
	// CopyTextureToBuffer records a full-texture copy into dst. The
	// descriptor supplies the copy extent; the layout supplies the padded
	// row stride.
	CopyTextureToBuffer(src Texture, dst Buffer, desc TextureDescriptor, layout ImageCopyLayout) error

	// Finish completes encoding and returns the command buffer. The encoder
	// cannot be used afterwards.
	Finish() (CommandBuffer, error)
}

// CommandBuffer is an opaque recorded command sequence ready for submission.
type CommandBuffer interface{}

// Queue submits recorded command buffers to the GPU in order.
type Queue interface {
	Submit(buffers ...CommandBuffer) error
}

// Device is the capture-facing surface of a GPU device.
type Device interface {
	// CreateReadbackBuffer creates a buffer suitable as the destination of
	// CopyTextureToBuffer and a subsequent MapAsync (MapRead | CopyDst
	// usage in WebGPU terms).
	CreateReadbackBuffer(size uint64, label string) (Buffer, error)

	// CreateCommandEncoder creates an encoder for one capture submission.
	CreateCommandEncoder(label string) (CommandEncoder, error)

	// Poll advances outstanding asynchronous map operations, invoking their
	// callbacks as they complete. With wait=false it performs a non-blocking
	// check; with wait=true it blocks until at least one outstanding
	// operation completes, returning immediately if none are outstanding.
	// Returns ErrDeviceLost (possibly wrapped) if the device is gone.
	Poll(wait bool) error
}
