// Package extractor talks to the external face-descriptor service. The
// service owns the actual recognition model; this client only ships image
// bytes out and fixed-length descriptor vectors back.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

const (
	defaultExtractorURL = "http://localhost:8000"

	// requestTimeout bounds every extraction call so an unreachable
	// service fails fast instead of blocking the capture loop.
	requestTimeout = 10 * time.Second
)

// Sentinel errors mapping the descriptor service's failure modes.
var (
	// ErrNoFaceDetected means the image decoded fine but contains no face.
	ErrNoFaceDetected = errors.New("no face detected")

	// ErrDecode means the image bytes could not be decoded.
	ErrDecode = errors.New("image decode failed")
)

// Extractor converts raw image bytes into a face descriptor.
type Extractor interface {
	Extract(ctx context.Context, imageData []byte) (database.Descriptor, error)
}

// Client is an HTTP Extractor backed by the descriptor service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new descriptor service client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultExtractorURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// extractResponse represents the response from the descriptor service.
type extractResponse struct {
	Dim        int       `json:"dim"`
	Descriptor []float32 `json:"descriptor"`
	Model      string    `json:"model"`
	Error      string    `json:"error"`
}

// Extract posts the image to the descriptor service and returns the
// resulting descriptor vector.
func (c *Client) Extract(ctx context.Context, imageData []byte) (database.Descriptor, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("empty image: %w", database.ErrMalformedInput)
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("descriptor service: %s: %w", err, database.ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var extResp extractResponse
	switch resp.StatusCode {
	case http.StatusOK:
		// Handled below.
	case http.StatusUnprocessableEntity:
		return nil, ErrNoFaceDetected
	case http.StatusBadRequest:
		return nil, fmt.Errorf("%s: %w", strings.TrimSpace(string(body)), ErrDecode)
	default:
		return nil, fmt.Errorf("descriptor service error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &extResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(extResp.Descriptor) == 0 {
		return nil, ErrNoFaceDetected
	}

	return database.Descriptor(extResp.Descriptor), nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	return "application/octet-stream"
}
