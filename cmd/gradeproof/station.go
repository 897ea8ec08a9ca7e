package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	gradeproof "github.com/wolfiling/gradeproof"
	"github.com/wolfiling/gradeproof/internal/capture"
	"pkt.systems/pslog"
)

// stationPollInterval is how often the run loop checks for an auto-stopped
// recording.
const stationPollInterval = 50 * time.Millisecond

type stationOptions struct {
	baseURL        string
	accessToken    string
	replayFile     string
	submissionID   string
	recordFor      time.Duration
	maxDuration    time.Duration
	maxUploadBytes int64
	chunkInterval  time.Duration
	tickInterval   time.Duration
	qrTimeout      time.Duration
}

// NewStationCommand builds the capture station command. It records a proof
// video for a submission from the file replay backend and uploads it.
func NewStationCommand(loader *gradeproof.Loader) *cobra.Command {
	var (
		serverURL string
		token     string
		file      string
		recordFor time.Duration
	)

	cmd := &cobra.Command{
		Use:   "station <submission-id>",
		Short: "Record and upload a proof video for a submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("submission id is required")
			}
			if file == "" {
				return fmt.Errorf("a replay file is required, set --file")
			}
			base := serverURL
			if base == "" {
				base = cfg.Server.PublicURL
			}

			logger := pslog.Ctx(cmd.Context()).With("component", "station")
			return stationRun(cmd.Context(), stationOptions{
				baseURL:        base,
				accessToken:    token,
				replayFile:     file,
				submissionID:   id,
				recordFor:      recordFor,
				maxDuration:    cfg.Capture.MaxDuration,
				maxUploadBytes: cfg.Capture.MaxUploadBytes,
				chunkInterval:  cfg.Capture.ChunkInterval,
				qrTimeout:      cfg.Capture.QRTimeout,
			}, logger)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&serverURL, "server", "", "service base URL, defaults to server.public_url")
	flags.StringVar(&token, "token", "", "operator session token from admin login")
	flags.StringVar(&file, "file", "", "video file replayed as the camera source")
	flags.DurationVar(&recordFor, "record", 0, "recording length; zero records until the configured ceiling")
	return cmd
}

// stationRun drives one load-record-upload cycle of the capture controller.
func stationRun(ctx context.Context, opts stationOptions, logger pslog.Logger) error {
	client, err := capture.NewClient(capture.ClientOptions{
		BaseURL:     opts.baseURL,
		AccessToken: opts.accessToken,
		QRTimeout:   opts.qrTimeout,
	})
	if err != nil {
		return err
	}
	controller, err := capture.NewController(capture.Config{
		Backend:        &capture.FileBackend{Path: opts.replayFile},
		Gateway:        client,
		Uploader:       client,
		MaxDuration:    opts.maxDuration,
		MaxUploadBytes: opts.maxUploadBytes,
		ChunkInterval:  opts.chunkInterval,
		TickInterval:   opts.tickInterval,
		Logger:         logger,
		OnEvent: func(ev capture.Event) {
			switch ev.Type {
			case capture.EventState:
				logger.Info("capture state", "state", string(ev.State))
			case capture.EventTick:
				logger.Debug("recording", "elapsed", ev.Elapsed)
			case capture.EventProgress:
				logger.Debug("uploading", "sent", ev.SentBytes, "total", ev.TotalBytes)
			case capture.EventNotice:
				logger.Warn(ev.Message)
			case capture.EventError:
				logger.Error(ev.Message)
			}
		},
	})
	if err != nil {
		return err
	}
	defer controller.Reset()

	if err := controller.Load(ctx, opts.submissionID); err != nil {
		return err
	}
	if err := controller.Start(ctx); err != nil {
		return err
	}

	// A requested length past the ceiling is fine: the controller stops the
	// recording itself and the wait loop notices.
	recordFor := opts.recordFor
	if recordFor <= 0 {
		recordFor = controllerCeiling(opts)
	}
	if err := awaitRecording(ctx, controller, recordFor); err != nil {
		return err
	}

	if controller.State() == capture.StateRecording {
		if err := controller.Stop(ctx); err != nil && !errors.Is(err, capture.ErrInvalidState) {
			return err
		}
	}
	if err := controller.Upload(ctx); err != nil {
		return err
	}
	logger.Info("proof video uploaded",
		"submission_id", opts.submissionID, "length", controller.Elapsed())
	return nil
}

func controllerCeiling(opts stationOptions) time.Duration {
	if opts.maxDuration > 0 {
		return opts.maxDuration
	}
	return capture.DefaultMaxDuration
}

// awaitRecording waits out the requested length, returning early when the
// ceiling auto-stops the recording.
func awaitRecording(ctx context.Context, controller *capture.Controller, recordFor time.Duration) error {
	deadline := time.NewTimer(recordFor)
	defer deadline.Stop()
	poll := time.NewTicker(stationPollInterval)
	defer poll.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-poll.C:
			if controller.State() != capture.StateRecording {
				return nil
			}
		}
	}
}
