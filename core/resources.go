package session

import (
	"sync"

	"github.com/lukavetter/aria-core/core/audio"
	"github.com/lukavetter/aria-core/core/transport"
)

// resourceSet is the single owner of every handle a session acquires:
// the transport (control channel plus underlying connection), the
// capture stream, the playback sink and the activity sampling timer.
// Release is idempotent; each handle is cleared after its first release
// so nothing is ever freed twice.
type resourceSet struct {
	mu        sync.Mutex
	transport transport.Transport
	capture   audio.CaptureClient
	// captureCloser releases a capture device the session acquired
	// itself, as opposed to one handed in by the caller.
	captureCloser func()
	sink          audio.PlaybackSink
	activity      *activityMonitor
}

func newResourceSet() *resourceSet {
	return &resourceSet{}
}

func (r *resourceSet) SetTransport(tr transport.Transport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transport = tr
}

func (r *resourceSet) Transport() transport.Transport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transport
}

func (r *resourceSet) SetCapture(capture audio.CaptureClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capture = capture
}

func (r *resourceSet) SetCaptureCloser(closer func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captureCloser = closer
}

func (r *resourceSet) SetSink(sink audio.PlaybackSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

func (r *resourceSet) Sink() audio.PlaybackSink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sink
}

func (r *resourceSet) SetActivity(activity *activityMonitor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activity = activity
}

// Release tears everything down in dependency order: control channel and
// connection first, then the capture stream, the playback sink, and the
// activity timer. Failures are logged and do not stop the remaining
// releases.
func (r *resourceSet) Release() {
	r.mu.Lock()
	tr := r.transport
	capture := r.capture
	captureCloser := r.captureCloser
	sink := r.sink
	activity := r.activity
	r.transport = nil
	r.capture = nil
	r.captureCloser = nil
	r.sink = nil
	r.activity = nil
	r.mu.Unlock()

	if tr != nil {
		if err := tr.Close(); err != nil {
			logger.Warn("failed to close transport", "error", err)
		}
	}
	if capture != nil {
		if err := capture.StopCapture(); err != nil {
			logger.Warn("failed to stop capture stream", "error", err)
		}
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			logger.Warn("failed to close playback sink", "error", err)
		}
	}
	if captureCloser != nil {
		captureCloser()
	}
	if activity != nil {
		activity.Stop()
	}
}
