package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfiling/gradeproof/internal/submission"
)

type fakeStream struct {
	mu      sync.Mutex
	out     chan []byte
	started bool
	stopped bool
	closes  int
}

func (s *fakeStream) StartRecording(ctx context.Context, interval time.Duration) (<-chan []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = make(chan []byte)
	s.started = true
	return s.out, nil
}

func (s *fakeStream) emit(chunk []byte) {
	s.mu.Lock()
	out := s.out
	s.mu.Unlock()
	out <- chunk
}

func (s *fakeStream) StopRecording(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeBackend struct {
	stream  *fakeStream
	openErr error
	opens   int
}

func (b *fakeBackend) OpenStream(ctx context.Context, cfg StreamConfig) (Stream, error) {
	b.opens++
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.stream, nil
}

type fakeGateway struct {
	sub      *submission.Submission
	subErr   error
	qr       []byte
	qrErr    error
	existing *submission.Video
	existErr error
}

func (g *fakeGateway) Submission(ctx context.Context, id string) (*submission.Submission, error) {
	if g.subErr != nil {
		return nil, g.subErr
	}
	return g.sub, nil
}

func (g *fakeGateway) QRImage(ctx context.Context, id string) ([]byte, error) {
	if g.qrErr != nil {
		return nil, g.qrErr
	}
	return g.qr, nil
}

func (g *fakeGateway) ExistingVideo(ctx context.Context, id string) (*submission.Video, error) {
	if g.existErr != nil {
		return nil, g.existErr
	}
	return g.existing, nil
}

type fakeUploader struct {
	mu      sync.Mutex
	err     error
	calls   int
	payload []byte
	meta    UploadMeta
}

func (u *fakeUploader) Upload(ctx context.Context, id string, payload []byte, meta UploadMeta, progress ProgressFunc) error {
	u.mu.Lock()
	u.calls++
	u.payload = payload
	u.meta = meta
	err := u.err
	u.mu.Unlock()
	if err != nil {
		return err
	}
	if progress != nil {
		progress(int64(len(payload)), int64(len(payload)))
	}
	return nil
}

func (u *fakeUploader) callCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) hasNotice(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ev := range r.events {
		if ev.Type == EventNotice && strings.Contains(ev.Message, substr) {
			return true
		}
	}
	return false
}

func testController(t *testing.T, cfg Config) (*Controller, *fakeBackend, *fakeGateway, *fakeUploader, *eventRecorder) {
	t.Helper()
	backend := &fakeBackend{stream: &fakeStream{}}
	gateway := &fakeGateway{
		sub: &submission.Submission{PublicID: "PSA123", CardName: "Charizard"},
		qr:  []byte("qr-png"),
	}
	uploader := &fakeUploader{}
	recorder := &eventRecorder{}

	cfg.Backend = backend
	cfg.Gateway = gateway
	cfg.Uploader = uploader
	cfg.OnEvent = recorder.record
	if cfg.ChunkInterval == 0 {
		cfg.ChunkInterval = time.Millisecond
	}
	if cfg.TickInterval == 0 {
		cfg.TickInterval = 5 * time.Millisecond
	}

	ctrl, err := NewController(cfg)
	require.NoError(t, err)
	return ctrl, backend, gateway, uploader, recorder
}

func TestLoadBindsSubmission(t *testing.T) {
	ctrl, _, _, _, _ := testController(t, Config{})

	require.NoError(t, ctrl.Load(context.Background(), "PSA123"))
	require.Equal(t, StateReady, ctrl.State())
	require.Equal(t, "PSA123", ctrl.Submission().PublicID)
	require.Equal(t, []byte("qr-png"), ctrl.QRImage())
}

func TestLoadContinuesWithoutQR(t *testing.T) {
	ctrl, _, gateway, _, recorder := testController(t, Config{})
	gateway.qrErr = errors.New("timeout")

	require.NoError(t, ctrl.Load(context.Background(), "PSA123"))
	require.Equal(t, StateReady, ctrl.State())
	require.Nil(t, ctrl.QRImage())
	require.True(t, recorder.hasNotice("QR unavailable"))
}

func TestLoadWarnsAboutExistingVideo(t *testing.T) {
	ctrl, _, gateway, _, recorder := testController(t, Config{})
	gateway.existing = &submission.Video{SubmissionID: "PSA123", FileSize: 1024}

	require.NoError(t, ctrl.Load(context.Background(), "PSA123"))
	require.Equal(t, StateReady, ctrl.State())
	require.True(t, recorder.hasNotice("will be replaced"))
}

func TestLoadFailsToIdleOnSubmissionError(t *testing.T) {
	ctrl, backend, gateway, _, _ := testController(t, Config{})
	gateway.subErr = errors.New("not found")

	require.Error(t, ctrl.Load(context.Background(), "PSA999"))
	require.Equal(t, StateIdle, ctrl.State())
	require.Zero(t, backend.opens)
}

func TestLoadFailsToIdleOnStreamError(t *testing.T) {
	ctrl, backend, _, _, _ := testController(t, Config{})
	backend.openErr = errors.New("no camera")

	require.Error(t, ctrl.Load(context.Background(), "PSA123"))
	require.Equal(t, StateIdle, ctrl.State())
}

func TestRecordStopUpload(t *testing.T) {
	ctrl, backend, _, uploader, _ := testController(t, Config{})
	ctx := context.Background()

	require.NoError(t, ctrl.Load(ctx, "PSA123"))
	require.NoError(t, ctrl.Start(ctx))
	require.Equal(t, StateRecording, ctrl.State())

	backend.stream.emit([]byte("abc"))
	backend.stream.emit([]byte{})
	backend.stream.emit([]byte("def"))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, ctrl.Stop(ctx))
	require.Equal(t, StateProcessing, ctrl.State())
	require.True(t, backend.stream.stopped)

	require.NoError(t, ctrl.Upload(ctx))
	require.Equal(t, StateUploaded, ctrl.State())
	require.Equal(t, []byte("abcdef"), uploader.payload)
}

func TestAutoStopAtCeiling(t *testing.T) {
	ctrl, _, _, _, recorder := testController(t, Config{
		MaxDuration:  30 * time.Millisecond,
		TickInterval: 5 * time.Millisecond,
	})
	ctx := context.Background()

	require.NoError(t, ctrl.Load(ctx, "PSA123"))
	require.NoError(t, ctrl.Start(ctx))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State() == StateProcessing {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, StateProcessing, ctrl.State())
	require.True(t, recorder.hasNotice("automatically"))
}

func TestUploadRejectsOversizeBeforeNetwork(t *testing.T) {
	ctrl, backend, _, uploader, _ := testController(t, Config{MaxUploadBytes: 4})
	ctx := context.Background()

	require.NoError(t, ctrl.Load(ctx, "PSA123"))
	require.NoError(t, ctrl.Start(ctx))
	backend.stream.emit([]byte("too big"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ctrl.Stop(ctx))

	require.ErrorIs(t, ctrl.Upload(ctx), ErrTooLarge)
	require.Equal(t, StateProcessing, ctrl.State())
	require.Zero(t, uploader.callCount())
}

func TestUploadFailureAllowsRetry(t *testing.T) {
	ctrl, backend, _, uploader, _ := testController(t, Config{})
	ctx := context.Background()

	require.NoError(t, ctrl.Load(ctx, "PSA123"))
	require.NoError(t, ctrl.Start(ctx))
	backend.stream.emit([]byte("abc"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, ctrl.Stop(ctx))

	uploader.err = errors.New("connection refused")
	require.Error(t, ctrl.Upload(ctx))
	require.Equal(t, StateProcessing, ctrl.State())

	uploader.err = nil
	require.NoError(t, ctrl.Upload(ctx))
	require.Equal(t, StateUploaded, ctrl.State())
	require.Equal(t, 2, uploader.callCount())
}

func TestUploadWithoutRecording(t *testing.T) {
	ctrl, _, _, _, _ := testController(t, Config{})
	ctx := context.Background()

	require.NoError(t, ctrl.Load(ctx, "PSA123"))
	require.NoError(t, ctrl.Start(ctx))
	require.NoError(t, ctrl.Stop(ctx))
	require.ErrorIs(t, ctrl.Upload(ctx), ErrNoRecording)
}

func TestResetReleasesStream(t *testing.T) {
	ctrl, backend, _, _, _ := testController(t, Config{})
	ctx := context.Background()

	require.NoError(t, ctrl.Load(ctx, "PSA123"))
	require.NoError(t, ctrl.Start(ctx))

	ctrl.Reset()
	require.Equal(t, StateIdle, ctrl.State())
	require.Nil(t, ctrl.Submission())
	require.Equal(t, 1, backend.stream.closeCount())

	ctrl.Reset()
	require.Equal(t, StateIdle, ctrl.State())
	require.Equal(t, 1, backend.stream.closeCount())
}

func TestInvalidStateTransitions(t *testing.T) {
	ctrl, _, _, _, _ := testController(t, Config{})
	ctx := context.Background()

	require.ErrorIs(t, ctrl.Start(ctx), ErrInvalidState)
	require.ErrorIs(t, ctrl.Stop(ctx), ErrInvalidState)
	require.ErrorIs(t, ctrl.Upload(ctx), ErrInvalidState)

	require.NoError(t, ctrl.Load(ctx, "PSA123"))
	require.ErrorIs(t, ctrl.Load(ctx, "PSA456"), ErrInvalidState)
}
