package capture

import "errors"

// Capture errors.
var (
	// ErrDeviceLost is returned when the driver reports that the GPU device
	// is no longer valid. This is fatal: the capturer stops issuing captures
	// and the host must tear down and recreate its GPU resources.
	ErrDeviceLost = errors.New("capture: GPU device lost")

	// ErrMalformedBuffer is returned when a mapped readback buffer is smaller
	// than the row-padding math requires. This indicates a driver or
	// size-computation bug upstream, not a recoverable condition.
	ErrMalformedBuffer = errors.New("capture: mapped buffer smaller than computed size")

	// ErrQueueFull is returned by Capture when non-blocking admission is
	// configured and all worker slots are occupied.
	ErrQueueFull = errors.New("capture: all worker slots are in flight")

	// ErrTimedOut reports that a snapshot's deadline elapsed before the
	// driver completed the buffer mapping. The frame callback is never
	// invoked for a timed-out snapshot. Delivered asynchronously through the
	// error handler, wrapped with the snapshot index.
	ErrTimedOut = errors.New("capture: snapshot timed out before mapping completed")

	// ErrCallbackPanicked reports that a user frame callback panicked during
	// delivery. The panic is recovered at the worker boundary; the worker
	// continues processing subsequent snapshots. Delivered asynchronously
	// through the error handler, wrapped with the snapshot index.
	ErrCallbackPanicked = errors.New("capture: frame callback panicked")

	// ErrCapturerClosed is returned when operating on a closed capturer.
	ErrCapturerClosed = errors.New("capture: capturer has been closed")

	// ErrSnapshotDone is returned by Snapshot.Read when the snapshot has
	// already reached a terminal state.
	ErrSnapshotDone = errors.New("capture: snapshot already delivered or timed out")

	// ErrNilTexture is returned by Capture when the source texture is nil.
	ErrNilTexture = errors.New("capture: texture is nil")

	// ErrInvalidDimensions is returned when a texture descriptor has a
	// non-positive width or height.
	ErrInvalidDimensions = errors.New("capture: invalid texture dimensions")

	// ErrNilDevice is returned by New when the device or queue is nil.
	ErrNilDevice = errors.New("capture: device and queue must not be nil")

	// ErrMultisampled is returned by Capture when the texture descriptor
	// reports a sample count above one. Multisampled textures must be
	// resolved before capture.
	ErrMultisampled = errors.New("capture: multisampled textures must be resolved before capture")
)
