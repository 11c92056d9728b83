package capture

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// FrameFunc is the host's per-frame callback, invoked on a worker
// goroutine with the padding-stripped pixel data. The host is responsible
// for the thread safety of anything it touches inside the callback.
type FrameFunc func(frame *Frame)

// ErrorFunc receives asynchronous per-snapshot failures (timeouts,
// recovered callback panics). See WithErrorHandler.
type ErrorFunc func(err error)

// pollInterval is the yield between drain iterations when waiting for
// workers to free a slot.
const pollInterval = 100 * time.Microsecond

// TextureCapturer captures GPU textures to CPU-accessible memory and
// delivers them to user code through a bounded worker pool.
//
// Create one capturer per capture target (a window or offscreen render
// target). The render thread calls Capture after drawing and Poll once per
// iteration; worker goroutines run the callbacks. Call
// AwaitActiveSnapshots (or Close, which implies it) before tearing down
// the device so no capture is lost.
type TextureCapturer struct {
	device Device
	queue  Queue
	pool   *workerPool

	workers     int
	timeout     time.Duration
	nonBlocking bool
	frameFn     FrameFunc
	errorFn     ErrorFunc

	mu         sync.Mutex
	inflight   int
	pending    map[uint64]*Snapshot
	nextIndex  uint64
	deviceLost bool
	closed     bool
}

// New creates a capturer for the given device and queue. The worker pool
// starts immediately.
func New(device Device, queue Queue, opts ...Option) (*TextureCapturer, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &TextureCapturer{
		device:      device,
		queue:       queue,
		pool:        newWorkerPool(o.workers),
		workers:     o.workers,
		timeout:     o.timeout,
		nonBlocking: o.nonBlocking,
		frameFn:     o.frameFn,
		errorFn:     o.errorFn,
		pending:     make(map[uint64]*Snapshot),
	}

	Logger().Info("capture: capturer started",
		"workers", o.workers, "timeout", o.timeout, "nonblocking", o.nonBlocking)
	return c, nil
}

// Workers returns the worker count, which is also the in-flight limit.
func (c *TextureCapturer) Workers() int { return c.workers }

// InFlight returns the number of snapshots requested but not yet
// delivered or timed out.
func (c *TextureCapturer) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight
}

// Capture records a copy of texture into a freshly allocated row-padded
// readback buffer, submits it, and begins the asynchronous map request.
// The returned Snapshot completes on a worker goroutine once Poll observes
// the mapping: fn (or the WithFrameHandler default when fn is nil)
// receives the packed frame.
//
// When all worker slots are occupied Capture blocks, driving Poll
// internally, until a delivery frees one. The stall is intentional and
// bounded, rather than unbounded queuing. With WithNonBlockingAdmission it
// returns ErrQueueFull instead.
//
// Driver-level failures (ErrDeviceLost) surface from this call; timeouts
// and callback panics are reported later through the error handler.
func (c *TextureCapturer) Capture(texture Texture, desc TextureDescriptor, fn FrameFunc) (*Snapshot, error) {
	if texture == nil {
		return nil, ErrNilTexture
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, desc.Width, desc.Height)
	}
	if desc.SampleCount > 1 {
		return nil, fmt.Errorf("%w: sample count %d", ErrMultisampled, desc.SampleCount)
	}

	if err := c.acquireSlot(); err != nil {
		return nil, err
	}

	snap, err := c.submitCapture(texture, desc, fn)
	if err != nil {
		c.releaseSlot()
		if errors.Is(err, ErrDeviceLost) {
			c.markDeviceLost()
		}
		return nil, err
	}

	Logger().Debug("capture: snapshot requested",
		"index", snap.index,
		"size", fmt.Sprintf("%dx%d", desc.Width, desc.Height),
		"format", desc.Format,
		"padded_bytes", snap.buf.TotalBytes())
	return snap, nil
}

// submitCapture allocates the buffer, records and submits the copy, and
// starts the map request. The caller holds an in-flight slot.
func (c *TextureCapturer) submitCapture(texture Texture, desc TextureDescriptor, fn FrameFunc) (*Snapshot, error) {
	buf, err := newRowPaddedBuffer(c.device, desc)
	if err != nil {
		return nil, fmt.Errorf("capture: readback buffer: %w", err)
	}

	snap := &Snapshot{
		owner: c,
		desc:  desc,
		buf:   buf,
		state: SnapshotRequested,
		fn:    fn,
	}
	if snap.fn == nil {
		snap.fn = c.frameFn
	}
	if c.timeout > 0 {
		snap.deadline = time.Now().Add(c.timeout)
	}

	c.mu.Lock()
	snap.index = c.nextIndex
	c.nextIndex++
	c.pending[snap.index] = snap
	c.mu.Unlock()

	if err := c.encodeAndSubmit(texture, snap); err != nil {
		c.unregister(snap)
		buf.release()
		return nil, err
	}

	if err := snap.startMapping(); err != nil {
		c.unregister(snap)
		buf.release()
		return nil, fmt.Errorf("capture: map request: %w", err)
	}
	return snap, nil
}

// encodeAndSubmit records the texture-to-buffer copy and submits it on
// the queue. GPU command buffers execute in submission order, so mappings
// complete in capture order even though deliveries do not.
func (c *TextureCapturer) encodeAndSubmit(texture Texture, snap *Snapshot) error {
	encoder, err := c.device.CreateCommandEncoder(snap.desc.Label)
	if err != nil {
		return fmt.Errorf("capture: command encoder: %w", err)
	}
	if err := encoder.CopyTextureToBuffer(texture, snap.buf.buffer, snap.desc, snap.buf.layout()); err != nil {
		return fmt.Errorf("capture: copy command: %w", err)
	}
	cmd, err := encoder.Finish()
	if err != nil {
		return fmt.Errorf("capture: finish encoder: %w", err)
	}
	if err := c.queue.Submit(cmd); err != nil {
		return fmt.Errorf("capture: submit: %w", err)
	}
	return nil
}

// Poll advances all outstanding GPU map operations and expires overdue
// snapshots. The host must call it once per render iteration (or more
// often); without it no snapshot can ever complete. This is the only path
// on which snapshots transition from Mapping to Mapped.
//
// wait=false performs a non-blocking check. wait=true blocks until at
// least one outstanding map completes (used internally while draining).
func (c *TextureCapturer) Poll(wait bool) error {
	if err := c.device.Poll(wait); err != nil {
		if errors.Is(err, ErrDeviceLost) {
			c.markDeviceLost()
		}
		return err
	}
	c.sweepTimeouts(time.Now())
	return nil
}

// sweepTimeouts abandons pending snapshots whose deadline has passed.
func (c *TextureCapturer) sweepTimeouts(now time.Time) {
	if c.timeout <= 0 {
		return
	}

	c.mu.Lock()
	var expired []*Snapshot
	for _, snap := range c.pending {
		if snap.expired(now) {
			expired = append(expired, snap)
		}
	}
	c.mu.Unlock()

	for _, snap := range expired {
		if snap.markTimedOut() {
			c.finish(snap, fmt.Errorf("%w: snapshot %d after %s",
				ErrTimedOut, snap.index, c.timeout))
		}
	}
}

// AwaitActiveSnapshots drives Poll until every snapshot created before the
// call has reached a terminal state (Delivered or TimedOut). Each callback
// for previously submitted captures is observed exactly once before this
// returns. Use it to guarantee no capture is lost at shutdown.
//
// Returns early with the device error if the device is lost while
// draining.
func (c *TextureCapturer) AwaitActiveSnapshots() error {
	for {
		c.mu.Lock()
		n := c.inflight
		c.mu.Unlock()
		if n == 0 {
			return nil
		}
		if err := c.Poll(true); err != nil {
			return err
		}
		// Mapped snapshots are now with the workers; give them room.
		time.Sleep(pollInterval)
	}
}

// Close drains all active snapshots, shuts the worker pool down, and
// reclaims any buffers left behind by timed-out snapshots. Further
// Capture calls return ErrCapturerClosed. Idempotent.
func (c *TextureCapturer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	drainErr := c.AwaitActiveSnapshots()
	c.pool.close()
	c.abandonPending()

	Logger().Info("capture: capturer closed")
	return drainErr
}

// abandonPending force-terminates any snapshot still tracked after the
// pool has stopped (possible only when the device died mid-drain) and
// frees its buffer.
func (c *TextureCapturer) abandonPending() {
	c.mu.Lock()
	var orphans []*Snapshot
	for _, snap := range c.pending {
		orphans = append(orphans, snap)
	}
	c.mu.Unlock()

	for _, snap := range orphans {
		if snap.markTimedOut() {
			snap.mu.Lock()
			snap.releaseLocked()
			snap.mu.Unlock()
			c.finish(snap, fmt.Errorf("%w: snapshot %d abandoned at close",
				ErrTimedOut, snap.index))
		}
	}
}

// acquireSlot claims one in-flight slot, enforcing backpressure at
// admission time. While blocked it keeps driving Poll so outstanding maps
// still complete even though the render thread is parked here.
func (c *TextureCapturer) acquireSlot() error {
	for {
		c.mu.Lock()
		switch {
		case c.closed:
			c.mu.Unlock()
			return ErrCapturerClosed
		case c.deviceLost:
			c.mu.Unlock()
			return ErrDeviceLost
		case c.inflight < c.workers:
			c.inflight++
			c.mu.Unlock()
			return nil
		}
		c.mu.Unlock()

		if c.nonBlocking {
			return ErrQueueFull
		}
		if err := c.Poll(true); err != nil {
			return err
		}
		time.Sleep(pollInterval)
	}
}

// releaseSlot returns an in-flight slot without a snapshot outcome (used
// when Capture fails after admission).
func (c *TextureCapturer) releaseSlot() {
	c.mu.Lock()
	if c.inflight > 0 {
		c.inflight--
	}
	c.mu.Unlock()
}

// unregister removes a snapshot from the pending set.
func (c *TextureCapturer) unregister(s *Snapshot) {
	c.mu.Lock()
	delete(c.pending, s.index)
	c.mu.Unlock()
}

// finish records a snapshot reaching a terminal state: it stops counting
// against the in-flight limit and, if the snapshot failed, the error is
// reported through the error handler (or logged when none is set).
func (c *TextureCapturer) finish(s *Snapshot, err error) {
	c.mu.Lock()
	delete(c.pending, s.index)
	if c.inflight > 0 {
		c.inflight--
	}
	fn := c.errorFn
	c.mu.Unlock()

	if err == nil {
		return
	}
	Logger().Warn("capture: snapshot not delivered", "index", s.index, "err", err)
	if fn != nil {
		fn(err)
	}
}

// markDeviceLost latches the fatal device-lost condition; all subsequent
// Capture calls fail fast with ErrDeviceLost.
func (c *TextureCapturer) markDeviceLost() {
	c.mu.Lock()
	if !c.deviceLost {
		c.deviceLost = true
		Logger().Warn("capture: device lost, no further captures will be issued")
	}
	c.mu.Unlock()
}
