package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wolfiling/gradeproof/internal/submission"
	"pkt.systems/pslog"
)

// Defaults for the capture controller.
const (
	DefaultMaxDuration    = 2 * time.Minute
	DefaultMaxUploadBytes = 50 << 20
	DefaultChunkInterval  = 1 * time.Second
	DefaultTickInterval   = 1 * time.Second
)

// Config configures a Controller. Backend, Gateway, and Uploader are
// required; everything else has defaults.
type Config struct {
	Backend        Backend
	Gateway        Gateway
	Uploader       Uploader
	MaxDuration    time.Duration
	MaxUploadBytes int64
	ChunkInterval  time.Duration
	TickInterval   time.Duration
	Stream         StreamConfig
	Logger         pslog.Logger
	OnEvent        func(Event)
	Now            func() time.Time
}

// Controller is the recording state machine for one grading station. All
// methods are safe for concurrent use.
type Controller struct {
	backend        Backend
	gateway        Gateway
	uploader       Uploader
	maxDuration    time.Duration
	maxUploadBytes int64
	chunkInterval  time.Duration
	tickInterval   time.Duration
	streamCfg      StreamConfig
	logger         pslog.Logger
	onEvent        func(Event)
	now            func() time.Time

	mu           sync.Mutex
	state        State
	sub          *submission.Submission
	qrImage      []byte
	stream       Stream
	chunks       [][]byte
	payload      []byte
	startedAt    time.Time
	elapsed      time.Duration
	recordCancel context.CancelFunc
}

// NewController returns an idle Controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("capture backend is required")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("capture gateway is required")
	}
	if cfg.Uploader == nil {
		return nil, fmt.Errorf("capture uploader is required")
	}
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = DefaultChunkInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = pslog.LoggerFromEnv()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Controller{
		backend:        cfg.Backend,
		gateway:        cfg.Gateway,
		uploader:       cfg.Uploader,
		maxDuration:    cfg.MaxDuration,
		maxUploadBytes: cfg.MaxUploadBytes,
		chunkInterval:  cfg.ChunkInterval,
		tickInterval:   cfg.TickInterval,
		streamCfg:      cfg.Stream,
		logger:         cfg.Logger,
		onEvent:        cfg.OnEvent,
		now:            cfg.Now,
		state:          StateIdle,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submission returns the bound submission, nil when idle.
func (c *Controller) Submission() *submission.Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

// QRImage returns the verification QR fetched during Load, nil when the
// fetch failed or no submission is bound.
func (c *Controller) QRImage() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qrImage
}

// Elapsed returns the length of the current or finished recording.
func (c *Controller) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRecording {
		return c.now().Sub(c.startedAt)
	}
	return c.elapsed
}

func (c *Controller) emit(ev Event) {
	if c.onEvent != nil {
		c.onEvent(ev)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	c.emit(Event{Type: EventState, State: s})
}

// fail moves the controller back to idle with a user-visible message,
// releasing any held stream.
func (c *Controller) fail(message string, err error) {
	c.logger.Warn(message, "err", err)
	c.mu.Lock()
	stream := c.stream
	c.stream = nil
	c.sub = nil
	c.qrImage = nil
	c.chunks = nil
	c.payload = nil
	c.state = StateIdle
	c.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
	c.emit(Event{Type: EventError, State: StateIdle, Message: message})
}

// Load binds a submission to the station: fetches metadata and the
// verification QR, warns about an existing upload, and acquires the camera
// stream. Legal only from idle.
func (c *Controller) Load(ctx context.Context, submissionID string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.state = StateLoading
	c.mu.Unlock()
	c.emit(Event{Type: EventState, State: StateLoading})

	sub, err := c.gateway.Submission(ctx, submissionID)
	if err != nil {
		c.fail("submission lookup failed", err)
		return err
	}

	qrImage, err := c.gateway.QRImage(ctx, submissionID)
	if err != nil {
		c.logger.Warn("qr fetch failed", "submission_id", submissionID, "err", err)
		c.emit(Event{Type: EventNotice, State: StateLoading,
			Message: "verification QR unavailable, continuing without it"})
		qrImage = nil
	}

	existing, err := c.gateway.ExistingVideo(ctx, submissionID)
	if err != nil {
		c.logger.Warn("existing video check failed", "submission_id", submissionID, "err", err)
	} else if existing != nil {
		c.emit(Event{Type: EventNotice, State: StateLoading,
			Message: "a video already exists for this submission and will be replaced"})
	}

	stream, err := c.backend.OpenStream(ctx, c.streamCfg)
	if err != nil {
		c.fail("camera stream unavailable", err)
		return err
	}

	c.mu.Lock()
	if previous := c.stream; previous != nil {
		previous.Close()
	}
	c.stream = stream
	c.sub = sub
	c.qrImage = qrImage
	c.chunks = nil
	c.payload = nil
	c.elapsed = 0
	c.state = StateReady
	c.mu.Unlock()
	c.emit(Event{Type: EventState, State: StateReady})
	return nil
}

// Start begins recording. Legal only from ready.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateReady || c.stream == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	stream := c.stream
	c.chunks = nil
	c.payload = nil
	c.mu.Unlock()

	recCtx, cancel := context.WithCancel(ctx)
	chunks, err := stream.StartRecording(recCtx, c.chunkInterval)
	if err != nil {
		cancel()
		c.fail("recording failed to start", err)
		return err
	}

	c.mu.Lock()
	c.recordCancel = cancel
	c.startedAt = c.now()
	c.state = StateRecording
	c.mu.Unlock()
	c.emit(Event{Type: EventState, State: StateRecording})

	go c.recordLoop(recCtx, chunks)
	return nil
}

// recordLoop accumulates non-empty chunks and enforces the recording
// ceiling at ticker resolution.
func (c *Controller) recordLoop(ctx context.Context, chunks <-chan []byte) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if len(chunk) == 0 {
				continue
			}
			c.mu.Lock()
			if c.state == StateRecording {
				c.chunks = append(c.chunks, chunk)
			}
			c.mu.Unlock()
		case <-ticker.C:
			c.mu.Lock()
			if c.state != StateRecording {
				c.mu.Unlock()
				return
			}
			elapsed := c.now().Sub(c.startedAt)
			c.mu.Unlock()
			c.emit(Event{Type: EventTick, State: StateRecording, Elapsed: elapsed})
			if elapsed >= c.maxDuration {
				c.stop(context.Background(), true)
				return
			}
		}
	}
}

// Stop ends the recording and assembles the payload. Legal only while
// recording.
func (c *Controller) Stop(ctx context.Context) error {
	return c.stop(ctx, false)
}

func (c *Controller) stop(ctx context.Context, auto bool) error {
	c.mu.Lock()
	if c.state != StateRecording {
		c.mu.Unlock()
		return ErrInvalidState
	}
	c.state = StateProcessing
	c.elapsed = c.now().Sub(c.startedAt)
	stream := c.stream
	cancel := c.recordCancel
	c.recordCancel = nil
	c.mu.Unlock()
	c.emit(Event{Type: EventState, State: StateProcessing})

	if cancel != nil {
		cancel()
	}
	if err := stream.StopRecording(ctx); err != nil {
		c.logger.Warn("stop recording", "err", err)
	}

	c.mu.Lock()
	total := 0
	for _, chunk := range c.chunks {
		total += len(chunk)
	}
	payload := make([]byte, 0, total)
	for _, chunk := range c.chunks {
		payload = append(payload, chunk...)
	}
	c.payload = payload
	c.chunks = nil
	c.mu.Unlock()

	if auto {
		c.emit(Event{Type: EventNotice, State: StateProcessing,
			Message: "maximum recording length reached, recording stopped automatically"})
	}
	return nil
}

// Upload sends the recorded payload. Oversized recordings are rejected
// before any network call; a failed upload returns to processing with
// upload still enabled. Legal only from processing.
func (c *Controller) Upload(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateProcessing || c.sub == nil {
		c.mu.Unlock()
		return ErrInvalidState
	}
	payload := c.payload
	if len(payload) == 0 {
		c.mu.Unlock()
		return ErrNoRecording
	}
	if c.maxUploadBytes > 0 && int64(len(payload)) > c.maxUploadBytes {
		c.mu.Unlock()
		c.emit(Event{Type: EventError, State: StateProcessing,
			Message: "recording exceeds the upload size limit"})
		return ErrTooLarge
	}
	submissionID := c.sub.PublicID
	meta := UploadMeta{Duration: c.elapsed.Seconds(), StartedAt: c.startedAt}
	c.state = StateUploading
	c.mu.Unlock()
	c.emit(Event{Type: EventState, State: StateUploading})

	err := c.uploader.Upload(ctx, submissionID, payload, meta, func(sent, total int64) {
		c.emit(Event{Type: EventProgress, State: StateUploading, SentBytes: sent, TotalBytes: total})
	})
	if err != nil {
		c.logger.Warn("upload failed", "submission_id", submissionID, "err", err)
		c.setState(StateProcessing)
		c.emit(Event{Type: EventError, State: StateProcessing,
			Message: "upload failed, you can retry"})
		return err
	}

	c.setState(StateUploaded)
	return nil
}

// Reset returns the controller to idle from any state, releasing the stream
// and clearing all recording data. Safe to call repeatedly.
func (c *Controller) Reset() {
	c.mu.Lock()
	cancel := c.recordCancel
	c.recordCancel = nil
	stream := c.stream
	c.stream = nil
	c.sub = nil
	c.qrImage = nil
	c.chunks = nil
	c.payload = nil
	c.startedAt = time.Time{}
	c.elapsed = 0
	changed := c.state != StateIdle
	c.state = StateIdle
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		stream.Close()
	}
	if changed {
		c.emit(Event{Type: EventState, State: StateIdle})
	}
}
