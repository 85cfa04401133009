package scanner

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"syscall"
)

// ChanSource feeds the sampler from a channel. Used by tests and by
// embedders that run their own symbol detector in-process.
type ChanSource struct {
	C chan string
}

// NewChanSource returns a buffered channel-backed source.
func NewChanSource(buf int) *ChanSource {
	return &ChanSource{C: make(chan string, buf)}
}

func (s *ChanSource) NextFrame(ctx context.Context) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case code := <-s.C:
		return code, true
	default:
		return "", false
	}
}

// PipeSource polls a named pipe written by the camera/symbol-detector
// process, one decoded QR string per line. The pipe is opened
// non-blocking so a sample with no pending line returns immediately,
// keeping the sampler period intact.
type PipeSource struct {
	path    string
	f       *os.File
	pending string
}

// NewPipeSource returns a source reading from the given FIFO path.
func NewPipeSource(path string) *PipeSource {
	return &PipeSource{path: path}
}

func (p *PipeSource) NextFrame(ctx context.Context) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	if p.f == nil {
		f, err := os.OpenFile(p.path, os.O_RDONLY|syscall.O_NONBLOCK, 0)
		if err != nil {
			return "", false
		}
		p.f = f
	}
	buf := make([]byte, 4096)
	n, err := p.f.Read(buf)
	if n > 0 {
		p.pending += string(buf[:n])
	}
	if err != nil && err != io.EOF && !errors.Is(err, syscall.EAGAIN) {
		log.Printf("frames: read %s: %v", p.path, err)
		_ = p.f.Close()
		p.f = nil
	}
	if idx := strings.IndexByte(p.pending, '\n'); idx >= 0 {
		line := strings.TrimSpace(p.pending[:idx])
		p.pending = p.pending[idx+1:]
		if line != "" {
			return line, true
		}
	}
	return "", false
}

// Close releases the pipe.
func (p *PipeSource) Close() error {
	if p.f == nil {
		return nil
	}
	err := p.f.Close()
	p.f = nil
	return err
}
