package capture

import (
	"fmt"
	"sync"
	"time"
)

// SnapshotState represents the lifecycle stage of one capture job.
//
// States advance strictly Requested → Mapping → Mapped → Delivered for a
// successful capture. TimedOut is the alternate terminal state: the
// snapshot was abandoned before delivery, either because its deadline
// elapsed or because the driver failed the mapping.
type SnapshotState int

const (
	// SnapshotRequested means the copy command has been recorded but the
	// map request has not yet been submitted to the driver.
	SnapshotRequested SnapshotState = iota

	// SnapshotMapping means the asynchronous map-for-read has been
	// submitted; completion is driven only by Poll.
	SnapshotMapping

	// SnapshotMapped means the driver signalled completion and the snapshot
	// has been handed to the worker pool.
	SnapshotMapped

	// SnapshotDelivered means the frame callback has returned and the GPU
	// buffer has been released.
	SnapshotDelivered

	// SnapshotTimedOut means the snapshot was abandoned without delivery.
	// The frame callback is never invoked; the GPU buffer is reclaimed
	// when (and if) the driver completes the outstanding map.
	SnapshotTimedOut
)

// String returns the string representation of SnapshotState.
func (s SnapshotState) String() string {
	switch s {
	case SnapshotRequested:
		return "Requested"
	case SnapshotMapping:
		return "Mapping"
	case SnapshotMapped:
		return "Mapped"
	case SnapshotDelivered:
		return "Delivered"
	case SnapshotTimedOut:
		return "TimedOut"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// terminal reports whether the state is Delivered or TimedOut.
func (s SnapshotState) terminal() bool {
	return s == SnapshotDelivered || s == SnapshotTimedOut
}

// Snapshot is one in-flight capture job. It owns its readback buffer
// exclusively until delivery: the capturer holds it while the copy and map
// are outstanding, then exactly one worker holds it until the callback
// returns. Only the job queue and the in-flight counter are shared state;
// the buffer itself never needs a lock.
type Snapshot struct {
	owner *TextureCapturer
	index uint64
	desc  TextureDescriptor
	buf   RowPaddedBuffer

	// deadline is zero when no timeout is configured.
	deadline time.Time

	mu       sync.Mutex
	state    SnapshotState
	fn       FrameFunc
	released bool
}

// Index returns the capture sequence number assigned by the capturer.
func (s *Snapshot) Index() uint64 { return s.index }

// Descriptor returns the source texture descriptor.
func (s *Snapshot) Descriptor() TextureDescriptor { return s.desc }

// State returns the snapshot's current lifecycle stage.
func (s *Snapshot) State() SnapshotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Read attaches the frame callback invoked on a worker goroutine once the
// GPU mapping completes. It replaces any callback supplied to Capture or
// configured with WithFrameHandler for this snapshot.
//
// Returns ErrSnapshotDone if the snapshot has already reached a terminal
// state or has been handed to a worker.
func (s *Snapshot) Read(fn FrameFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SnapshotRequested && s.state != SnapshotMapping {
		return ErrSnapshotDone
	}
	s.fn = fn
	return nil
}

// startMapping transitions Requested → Mapping and submits the async map
// request. Called by Capture with no competing accessors.
func (s *Snapshot) startMapping() error {
	s.mu.Lock()
	s.state = SnapshotMapping
	s.mu.Unlock()

	return s.buf.buffer.MapAsync(s.onMapComplete)
}

// onMapComplete is invoked from within Device.Poll when the driver finishes
// (or fails) the map request. This is the only place the Mapping → Mapped
// transition occurs. On success the snapshot is enqueued on the worker
// pool; a full queue blocks the polling thread, which is bounded by the
// worker count rather than by I/O latency.
func (s *Snapshot) onMapComplete(status MapStatus) {
	s.mu.Lock()
	if s.state == SnapshotTimedOut {
		// Abandoned while the map was outstanding. The driver is done with
		// the buffer now, so reclaim it; in-flight was already decremented.
		s.releaseLocked()
		s.mu.Unlock()
		return
	}

	if status != MapStatusSuccess {
		s.state = SnapshotTimedOut
		s.releaseLocked()
		s.mu.Unlock()

		err := fmt.Errorf("capture: snapshot %d: mapping failed: %s", s.index, status)
		if status == MapStatusDeviceLost {
			err = fmt.Errorf("%w: snapshot %d", ErrDeviceLost, s.index)
			s.owner.markDeviceLost()
		}
		s.owner.finish(s, err)
		return
	}

	s.state = SnapshotMapped
	s.mu.Unlock()

	Logger().Debug("capture: snapshot mapped",
		"index", s.index, "bytes", s.buf.TotalBytes())
	s.owner.pool.submit(s)
}

// markTimedOut transitions a not-yet-mapped snapshot to TimedOut. The
// buffer is left alone: the driver may still write into it, so it is
// reclaimed by onMapComplete or at capturer close. Reports whether the
// transition happened.
func (s *Snapshot) markTimedOut() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SnapshotRequested && s.state != SnapshotMapping {
		return false
	}
	s.state = SnapshotTimedOut
	return true
}

// deliver runs on a worker goroutine: strip the row padding, build the
// packed frame, invoke the user callback, then release the GPU buffer.
// A panic in user code is recovered here so it can never take down the
// worker; it is reported through the error handler instead.
func (s *Snapshot) deliver() {
	packed, err := s.buf.packed()
	if err != nil {
		s.mu.Lock()
		s.state = SnapshotTimedOut
		s.releaseLocked()
		s.mu.Unlock()
		s.owner.finish(s, fmt.Errorf("snapshot %d: %w", s.index, err))
		return
	}

	frame := &Frame{
		Index:  s.index,
		Width:  s.desc.Width,
		Height: s.desc.Height,
		Format: s.desc.Format,
		Pix:    packed,
	}

	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()

	err = invokeFrameFunc(fn, frame)
	if err == nil && fn == nil {
		Logger().Warn("capture: snapshot delivered with no callback attached",
			"index", s.index)
	}
	if err != nil {
		err = fmt.Errorf("%w: snapshot %d: %v", ErrCallbackPanicked, s.index, err)
	}

	s.mu.Lock()
	s.state = SnapshotDelivered
	s.releaseLocked()
	s.mu.Unlock()

	s.owner.finish(s, err)
}

// invokeFrameFunc calls fn with the frame, converting a panic into an
// error at the worker boundary.
func invokeFrameFunc(fn FrameFunc, frame *Frame) (err error) {
	if fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	fn(frame)
	return nil
}

// releaseLocked frees the GPU buffer once. Callers hold s.mu.
func (s *Snapshot) releaseLocked() {
	if s.released {
		return
	}
	s.released = true
	s.buf.release()
}

// expired reports whether the snapshot has a deadline and it has passed.
func (s *Snapshot) expired(now time.Time) bool {
	return !s.deadline.IsZero() && now.After(s.deadline)
}
