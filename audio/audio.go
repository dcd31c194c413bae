package audio

import "time"

const (
	SampleRate    = 24000
	Channels      = 1
	BitsPerSample = 16

	// WindowDuration is the analysis window handed to the router.
	WindowDuration = 80 * time.Millisecond
	WindowSamples  = SampleRate * 80 / 1000

	WAVHeaderSize = 44

	MimePCM = "audio/pcm;rate=24000"
	MimeWAV = "audio/wav"
)

// Source identifies which side of the conversation a block came from.
type Source string

const (
	SourceInterviewer Source = "interviewer" // system/speaker output
	SourceInterviewee Source = "interviewee" // microphone
)

func (s Source) Other() Source {
	if s == SourceInterviewer {
		return SourceInterviewee
	}
	return SourceInterviewer
}

func (s Source) Label() string {
	if s == SourceInterviewer {
		return "Interviewer"
	}
	return "Interviewee"
}

// Block is one analysis window of normalized mono samples.
// Immutable once produced; ownership passes downstream with the block.
type Block struct {
	Source     Source
	Samples    []float32
	Time       time.Time
	SampleRate int
}

func (b Block) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}
