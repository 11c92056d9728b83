// Package capture records rendered GPU frames to CPU-accessible memory and
// delivers the pixel data to user code without stalling the render loop.
//
// # Overview
//
// Capturing a frame from the GPU involves three independently timed actors:
// the render thread, which produces frames at a fixed cadence and must never
// block on disk I/O; the GPU driver, which completes buffer-to-CPU mapping
// asynchronously and out of order; and a bounded pool of worker goroutines,
// which strip row padding, build packed pixel buffers, and run the user's
// per-frame callback. TextureCapturer coordinates all three.
//
// # Quick Start
//
//	import "github.com/gogpu/capture"
//
//	cap, err := capture.New(device, queue,
//	    capture.WithWorkers(4),
//	    capture.WithFrameHandler(func(frame *capture.Frame) {
//	        frame.SavePNG(fmt.Sprintf("frame_%05d.png", frame.Index))
//	    }),
//	)
//
//	// Inside the render loop, after drawing into tex:
//	cap.Capture(tex, desc, nil)
//	cap.Poll(false) // advance outstanding GPU map operations
//
//	// At shutdown, drain everything:
//	cap.AwaitActiveSnapshots()
//	cap.Close()
//
// # Backpressure
//
// At most one snapshot per worker may be in flight. When the limit is
// reached, Capture blocks the render thread until a worker finishes a
// delivery. The stall is bounded, in contrast to unbounded queuing. Hosts that
// prefer to drop frames instead can opt into non-blocking admission with
// WithNonBlockingAdmission, in which case Capture returns ErrQueueFull.
//
// # Ordering
//
// Mapping completes in submission order, but deliveries across snapshots are
// unordered because workers run in parallel. Each Frame carries the index of
// its originating capture so sinks that need ordered output can reorder.
//
// # GPU backends
//
// The capture engine is written against the narrow Device, Queue, Buffer and
// CommandEncoder interfaces in this package. backend/wgpu provides the
// production implementation over gogpu/wgpu.
package capture

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
