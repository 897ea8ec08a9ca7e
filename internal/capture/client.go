package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfiling/gradeproof/internal/submission"
)

// DefaultQRTimeout bounds the verification QR fetch during Load.
const DefaultQRTimeout = 5 * time.Second

// Client implements Gateway and Uploader over the service HTTP API.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	qrTimeout   time.Duration
}

// ClientOptions configures a Client. AccessToken is the operator session
// token and is only required for uploads.
type ClientOptions struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
	QRTimeout   time.Duration
}

// NewClient returns a Client for the given service endpoint.
func NewClient(opts ClientOptions) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url is required")
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	qrTimeout := opts.QRTimeout
	if qrTimeout <= 0 {
		qrTimeout = DefaultQRTimeout
	}
	return &Client{
		baseURL:     base,
		accessToken: opts.AccessToken,
		httpClient:  httpClient,
		qrTimeout:   qrTimeout,
	}, nil
}

// Submission fetches public submission metadata.
func (c *Client) Submission(ctx context.Context, submissionID string) (*submission.Submission, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/public/submission/"+submissionID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("submission lookup failed: %s", resp.Status)
	}
	var out struct {
		Success    bool                   `json:"success"`
		Submission *submission.Submission `json:"submission"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.Success || out.Submission == nil {
		return nil, fmt.Errorf("submission lookup failed")
	}
	return out.Submission, nil
}

// QRImage fetches the verification QR PNG, bounded by the QR timeout.
func (c *Client) QRImage(ctx context.Context, submissionID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.qrTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/public/qr/"+submissionID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("qr fetch failed: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// ExistingVideo reports any previously uploaded video, (nil, nil) when none
// exists.
func (c *Client) ExistingVideo(ctx context.Context, submissionID string) (*submission.Video, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/video/"+submissionID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video lookup failed: %s", resp.Status)
	}
	var out struct {
		Success bool              `json:"success"`
		Video   *submission.Video `json:"video"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Video, nil
}

// Upload posts the recording as multipart form data, reporting byte-level
// progress while the body streams out.
func (c *Client) Upload(ctx context.Context, submissionID string, payload []byte, meta UploadMeta, progress ProgressFunc) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("video", submissionID+".webm")
	if err != nil {
		return err
	}
	if _, err := part.Write(payload); err != nil {
		return err
	}
	if err := writer.WriteField("duration", strconv.FormatFloat(meta.Duration, 'f', 3, 64)); err != nil {
		return err
	}
	if err := writer.WriteField("startTime", meta.StartedAt.UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	reader := &progressReader{
		reader:   &body,
		total:    int64(body.Len()),
		progress: progress,
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/video/upload/"+submissionID, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = reader.total
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if msg := errorMessage(resp.Body); msg != "" {
			return fmt.Errorf("upload failed: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("upload failed: %s", resp.Status)
	}
	return nil
}

// errorMessage extracts the {error} body the service writes on failures.
func errorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var out struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &out) == nil && out.Error != "" {
		return out.Error
	}
	return strings.TrimSpace(string(data))
}

// progressReader counts bytes as the request body is consumed.
type progressReader struct {
	reader   io.Reader
	total    int64
	sent     int64
	progress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.reader.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.progress != nil {
			p.progress(p.sent, p.total)
		}
	}
	return n, err
}
