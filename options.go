package capture

import (
	"runtime"
	"time"
)

// Option configures a TextureCapturer during creation.
// Use functional options to customize capturer behavior.
//
// Example:
//
//	// Default blocking admission, one worker per CPU
//	cap, err := capture.New(device, queue)
//
//	// Bounded latency: drop frames instead of stalling the render loop
//	cap, err := capture.New(device, queue,
//	    capture.WithWorkers(2),
//	    capture.WithNonBlockingAdmission(),
//	)
type Option func(*capturerOptions)

// capturerOptions holds optional configuration for capturer creation.
type capturerOptions struct {
	workers     int
	timeout     time.Duration
	nonBlocking bool
	frameFn     FrameFunc
	errorFn     ErrorFunc
}

// defaultOptions returns the default capturer options.
func defaultOptions() capturerOptions {
	return capturerOptions{
		workers: runtime.GOMAXPROCS(0),
		timeout: 0, // no deadline unless configured
	}
}

// WithWorkers sets the number of worker goroutines and, with it, the
// in-flight snapshot limit. Values <= 0 fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *capturerOptions) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithTimeout bounds how long a snapshot may wait for the driver to map
// its buffer. On expiry the snapshot resolves as TimedOut, its callback is
// never invoked, and it stops counting against the in-flight limit, so a
// stalled driver cannot starve future captures. Zero disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *capturerOptions) {
		o.timeout = d
	}
}

// WithNonBlockingAdmission makes Capture return ErrQueueFull instead of
// blocking when all worker slots are occupied. Hosts that would rather
// drop a frame than stall the render loop should set this.
func WithNonBlockingAdmission() Option {
	return func(o *capturerOptions) {
		o.nonBlocking = true
	}
}

// WithFrameHandler sets the default per-frame callback used when Capture
// is called with a nil callback. The handler runs on a worker goroutine;
// anything it touches must be safe to use off the render thread.
func WithFrameHandler(fn FrameFunc) Option {
	return func(o *capturerOptions) {
		o.frameFn = fn
	}
}

// WithErrorHandler sets the callback for asynchronous per-snapshot
// failures: timeouts and recovered callback panics. These occur after the
// originating Capture call has returned, so they cannot be surfaced as its
// return value. The handler may run on a worker goroutine or on the
// polling thread. Without a handler, failures are logged and skipped.
func WithErrorHandler(fn ErrorFunc) Option {
	return func(o *capturerOptions) {
		o.errorFn = fn
	}
}
