package classifier

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	apperrors "github.com/anime-shed/weld-inspector-go/internal/errors"
	"github.com/anime-shed/weld-inspector-go/internal/logger"
	"github.com/anime-shed/weld-inspector-go/internal/picker"
	"github.com/anime-shed/weld-inspector-go/pkg/models"
	"github.com/anime-shed/weld-inspector-go/pkg/validation"
)

const (
	// UploadPath is appended to the service base URL.
	UploadPath = "/upload/image"

	// FileField is the single multipart field the service reads.
	FileField = "file"

	userAgent       = "Weld-Inspector/1.0"
	maxResponseSize = 1 << 20
)

// Classifier sends one image to the classification service.
type Classifier interface {
	Classify(ctx context.Context, file *picker.SelectedFile) (*models.Prediction, error)
}

// Options configures HTTPClient.
type Options struct {
	BaseURL            string
	MaxRetries         int
	RetryInterval      time.Duration
	InsecureSkipVerify bool
	HTTPClient         *http.Client
}

// HTTPClient implements Classifier over multipart HTTP.
type HTTPClient struct {
	endpoint      string
	client        *http.Client
	maxRetries    int
	retryInterval time.Duration
}

// NewHTTPClient creates a classification client. With MaxRetries 0 every
// Classify call issues exactly one request.
func NewHTTPClient(opts Options) *HTTPClient {
	client := opts.HTTPClient
	if client == nil {
		transport := &http.Transport{
			Proxy: http.ProxyFromEnvironment,

			// A widget talks to one service, one upload at a time
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     30 * time.Second,

			// No response header timeout: inference can be slow, the
			// caller's context bounds the whole call instead
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,

			MaxResponseHeaderBytes: 4096,

			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: opts.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed dev services
			},
		}
		client = &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("too many redirects (limit: 3)")
				}
				return nil
			},
		}
	}

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	retries := opts.MaxRetries
	if retries < 0 {
		retries = 0
	}

	return &HTTPClient{
		endpoint:      validation.JoinEndpoint(opts.BaseURL, UploadPath),
		client:        client,
		maxRetries:    retries,
		retryInterval: interval,
	}
}

// Endpoint returns the full upload URL.
func (c *HTTPClient) Endpoint() string {
	return c.endpoint
}

// Classify posts file as the "file" multipart field and decodes the reply.
// Non-2xx statuses and transport failures are returned as AppErrors; the
// response body of a failed request is never inspected.
func (c *HTTPClient) Classify(ctx context.Context, file *picker.SelectedFile) (*models.Prediction, error) {
	if file == nil {
		return nil, apperrors.NewValidationError(apperrors.MsgSelectFile, nil)
	}

	body, contentType, err := encodeMultipart(file)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode upload", err)
	}

	attempt := 0
	operation := func() (*models.Prediction, error) {
		attempt++
		logger.WithFields(logrus.Fields{
			"endpoint": c.endpoint,
			"file":     file.Name,
			"size":     file.Size,
			"attempt":  attempt,
		}).Debug("Uploading image for classification")
		return c.do(ctx, body, contentType)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.maxRetries)), ctx)

	notify := func(err error, wait time.Duration) {
		logger.WithError(err).WithFields(logrus.Fields{
			"endpoint": c.endpoint,
			"attempt":  attempt,
			"wait":     wait,
		}).Warn("Classification attempt failed, retrying")
	}

	prediction, err := backoff.RetryNotifyWithData(operation, b, notify)
	if err != nil {
		return nil, classifyContextErr(err)
	}
	return prediction, nil
}

// classifyContextErr types the bare context error backoff returns when the
// context ends between attempts.
func classifyContextErr(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewTimeoutError("classification request timed out", err)
	}
	return apperrors.NewNetworkError("classification request failed", err)
}

func (c *HTTPClient) do(ctx context.Context, body []byte, contentType string) (*models.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(apperrors.NewInternalError("invalid request", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return nil, backoff.Permanent(apperrors.NewTimeoutError("classification request timed out", err))
		case errors.Is(err, context.Canceled):
			return nil, backoff.Permanent(apperrors.NewNetworkError("classification request cancelled", err))
		default:
			return nil, apperrors.NewNetworkError("classification request failed", err)
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

		serviceErr := apperrors.NewServiceError(resp.StatusCode)
		if resp.StatusCode >= 500 {
			return nil, serviceErr
		}
		return nil, backoff.Permanent(serviceErr)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, backoff.Permanent(apperrors.NewTimeoutError("classification response timed out", err))
		}
		return nil, apperrors.NewNetworkError("failed to read classification response", err)
	}

	prediction, err := decodePrediction(raw)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	return prediction, nil
}

// decodePrediction requires a JSON object with non-empty string "status"
// and "details" fields.
func decodePrediction(raw []byte) (*models.Prediction, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, apperrors.NewDecodeError("response is not a JSON object", err)
	}
	for _, key := range []string{"status", "details"} {
		var v string
		field, ok := fields[key]
		if !ok {
			return nil, apperrors.NewDecodeError("response has no "+key+" field", nil)
		}
		if err := json.Unmarshal(field, &v); err != nil || v == "" {
			return nil, apperrors.NewDecodeError("response "+key+" is not a non-empty string", err)
		}
	}

	var p models.Prediction
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, apperrors.NewDecodeError("malformed prediction", err)
	}
	p.Raw = append(json.RawMessage(nil), raw...)
	return &p, nil
}

func encodeMultipart(file *picker.SelectedFile) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := file.Name
	if name == "" {
		name = "upload"
	}
	mimeType := file.MIME
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FileField, escapeQuotes(name)))
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
