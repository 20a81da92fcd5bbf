package provider

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

	"github.com/go-chi/chi/v5/middleware"
)

var (
	// ErrFaceNotRecognized is returned when the recognition service finds no matching face.
	ErrFaceNotRecognized = errors.New("face not recognized")

	// ErrRecognitionUnavailable is returned when the recognition service cannot be reached in time.
	ErrRecognitionUnavailable = errors.New("recognition service unavailable")

	// ErrBadRecognitionResponse is returned when a successful answer cannot be decoded.
	ErrBadRecognitionResponse = errors.New("malformed recognition service response")
)

// RecognitionError is a non-2xx answer from the recognition service other than a no-match.
type RecognitionError struct {
	StatusCode int
	Message    string
}

func (e *RecognitionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("recognition service responded with status %d", e.StatusCode)
	}
	return fmt.Sprintf("recognition service responded with status %d: %s", e.StatusCode, e.Message)
}

// Image is a captured face image relayed to the recognition service.
type Image struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// EnrollResult is the recognition service's acknowledgement of an enrollment.
type EnrollResult struct {
	Message string `json:"message"`
}

// Recognizer enrolls and matches faces. Implementations own the face data entirely.
type Recognizer interface {
	Enroll(ctx context.Context, userID string, image Image) (*EnrollResult, error)
	Authenticate(ctx context.Context, image Image) (string, error)
}

// EndpointResolver returns the base URL of the recognition service.
type EndpointResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticEndpoint is an EndpointResolver with a fixed base URL.
type StaticEndpoint string

func (s StaticEndpoint) Resolve(context.Context) (string, error) {
	return strings.TrimRight(string(s), "/"), nil
}

// RecognitionClient talks to the face recognition service over HTTP.
type RecognitionClient struct {
	endpoint   EndpointResolver
	httpClient *http.Client
	timeout    time.Duration
}

// NewRecognitionClient creates a RecognitionClient. Every call is bounded by timeout.
func NewRecognitionClient(endpoint EndpointResolver, timeout time.Duration) *RecognitionClient {
	return &RecognitionClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// Enroll registers the face in image under userID.
func (c *RecognitionClient) Enroll(ctx context.Context, userID string, image Image) (*EnrollResult, error) {
	var result EnrollResult
	if err := c.post(ctx, "/register", map[string]string{"userId": userID}, image, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// Authenticate returns the id of the user whose enrolled face matches image.
func (c *RecognitionClient) Authenticate(ctx context.Context, image Image) (string, error) {
	var result struct {
		UserID string `json:"userId"`
	}

	if err := c.post(ctx, "/authenticate", nil, image, &result); err != nil {
		var recErr *RecognitionError
		if errors.As(err, &recErr) && recErr.StatusCode == http.StatusUnauthorized {
			return "", ErrFaceNotRecognized
		}
		return "", err
	}

	if result.UserID == "" {
		return "", ErrFaceNotRecognized
	}

	return result.UserID, nil
}

func (c *RecognitionClient) post(
	ctx context.Context,
	path string,
	fields map[string]string,
	image Image,
	out any,
) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	baseURL, err := c.endpoint.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
	}

	body, contentType, err := encodeMultipart(fields, image)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		req.Header.Set(middleware.RequestIDHeader, reqID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRecognitionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&failure)

		return &RecognitionError{StatusCode: resp.StatusCode, Message: failure.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", ErrBadRecognitionResponse, err)
	}

	return nil
}

func encodeMultipart(fields map[string]string, image Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	contentType := image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, image.Filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}

	if _, err := io.Copy(part, image.Content); err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}
