package capture

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// DefaultReplayChunkSize is the chunk size used by the file replay backend.
const DefaultReplayChunkSize = 64 << 10

// FileBackend replays a pre-recorded video file as if it were a live camera.
// Used for demo stations and end-to-end testing without camera hardware.
type FileBackend struct {
	Path      string
	ChunkSize int
}

// OpenStream loads the file and returns a replay stream.
func (b *FileBackend) OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		return nil, fmt.Errorf("open replay file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("replay file %s is empty", b.Path)
	}
	chunkSize := b.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultReplayChunkSize
	}
	return &fileStream{data: data, chunkSize: chunkSize}, nil
}

type fileStream struct {
	data      []byte
	chunkSize int

	mu      sync.Mutex
	stop    chan struct{}
	started bool
	closed  bool
}

func (s *fileStream) StartRecording(ctx context.Context, interval time.Duration) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("stream is closed")
	}
	if s.started {
		return nil, fmt.Errorf("recording already started")
	}
	s.started = true
	s.stop = make(chan struct{})

	out := make(chan []byte)
	go func(stop chan struct{}) {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		offset := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				end := offset + s.chunkSize
				if end > len(s.data) {
					end = len(s.data)
				}
				chunk := s.data[offset:end]
				offset = end
				select {
				case out <- chunk:
				case <-ctx.Done():
					return
				case <-stop:
					return
				}
				if offset >= len(s.data) {
					offset = 0
				}
			}
		}
	}(s.stop)
	return out, nil
}

func (s *fileStream) StopRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	close(s.stop)
	return nil
}

func (s *fileStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.started = false
		close(s.stop)
	}
	s.closed = true
	return nil
}
