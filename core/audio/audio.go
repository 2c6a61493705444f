// Package audio defines the capture and playback surfaces the session
// manager consumes. Concrete device backends live in the vendor
// subpackages (miniaudio, portaudio).
package audio

import "context"

// CaptureClient is one microphone capture stream. StartCapture begins
// delivering raw frames to onAudio; StopCapture releases the device.
type CaptureClient interface {
	StartCapture(ctx context.Context, onAudio func(frame []byte)) error
	StopCapture() error
}

// PlaybackSink receives remote audio for local playout.
type PlaybackSink interface {
	Write(frame []byte) error
	Close() error
}
