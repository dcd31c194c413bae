package audio

import (
	"os"
	"sync/atomic"
	"time"
)

const fakeChunkFrames = 1024

// FakeContext replays a WAV file as a capture device, padding with
// silence once the file ends. Used by tests and the -fake demo mode.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	samples, _, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	return &FakeContext{pcm: pcm, realtime: realtime}, nil
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime}, nil
}

type FakeCapture struct {
	pcm      []byte
	realtime bool

	cb   atomic.Pointer[DataCallback]
	stop chan struct{}
	done chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) { f.cb.Store(&cb) }
func (f *FakeCapture) ClearCallback()              { f.cb.Store(nil) }

func (f *FakeCapture) Start() error {
	f.stop = make(chan struct{})
	f.done = make(chan struct{})

	chunkBytes := fakeChunkFrames * 2
	interval := time.Duration(fakeChunkFrames) * time.Second / time.Duration(SampleRate)
	if !f.realtime {
		interval = time.Millisecond
	}

	go func() {
		defer close(f.done)
		pos := 0
		silence := make([]byte, chunkBytes)
		for {
			select {
			case <-f.stop:
				return
			case <-time.After(interval):
			}

			cb := f.cb.Load()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				end := min(pos+chunkBytes, len(f.pcm))
				chunk := make([]byte, end-pos)
				copy(chunk, f.pcm[pos:end])
				pos = end
				(*cb)(chunk, uint32(len(chunk)/2))
			} else {
				(*cb)(silence, fakeChunkFrames)
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stop == nil {
		return
	}
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
	<-f.done
}

func (f *FakeCapture) Close() {}
