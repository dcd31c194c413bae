package audio

import (
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

const commandReadSize = 8192

// CommandCapture reads raw PCM from a spawned capture binary's stdout,
// for system/speaker audio that the OS exposes only through a helper
// process. The helper is expected to emit 16-bit little-endian PCM at
// the configured sample rate; stereo input is downmixed to mono.
type CommandCapture struct {
	path     string
	args     []string
	channels int

	cb atomic.Pointer[DataCallback]

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func NewCommandCapture(path string, channels int, args ...string) *CommandCapture {
	if channels <= 0 {
		channels = 2
	}
	return &CommandCapture{path: path, args: args, channels: channels}
}

func (c *CommandCapture) SetCallback(cb DataCallback) { c.cb.Store(&cb) }
func (c *CommandCapture) ClearCallback()              { c.cb.Store(nil) }

func (c *CommandCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return fmt.Errorf("capture command already running")
	}

	cmd := exec.Command(c.path, c.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture command stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", c.path, err)
	}

	c.cmd = cmd
	c.done = make(chan struct{})

	go c.readLoop(stdout, c.done)
	return nil
}

func (c *CommandCapture) readLoop(r io.Reader, done chan struct{}) {
	defer close(done)
	frameBytes := c.channels * 2
	buf := make([]byte, commandReadSize)
	var rem []byte // partial frame carried between reads
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(rem, buf[:n]...)
			whole := len(data) / frameBytes * frameBytes
			rem = append([]byte(nil), data[whole:]...)
			data = data[:whole]
			if c.channels == 2 {
				data = StereoToMono(data)
			} else {
				cp := make([]byte, len(data))
				copy(cp, data)
				data = cp
			}
			if len(data) > 0 {
				if cb := c.cb.Load(); cb != nil {
					(*cb)(data, uint32(len(data)/2))
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (c *CommandCapture) Stop() {
	c.mu.Lock()
	cmd, done := c.cmd, c.done
	c.cmd, c.done = nil, nil
	c.mu.Unlock()

	if cmd == nil {
		return
	}
	cmd.Process.Kill()
	cmd.Wait()
	<-done
}

func (c *CommandCapture) Close() { c.Stop() }
