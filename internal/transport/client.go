package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lokapasar/chatsync/internal/dto"
	"github.com/lokapasar/chatsync/internal/observability"
	"github.com/lokapasar/chatsync/internal/session"
)

const defaultTimeout = 15 * time.Second

// Client issues the chat REST calls against the marketplace backend.
type Client struct {
	baseURL string
	httpc   *http.Client
	session session.Session
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewClient constructs a transport client for the given base URL and session.
func NewClient(baseURL string, sess session.Session, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		session: sess,
		logger:  logger.With().Str("component", "transport").Logger(),
		tracer:  otel.Tracer("github.com/lokapasar/chatsync/internal/transport"),
	}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() session.Session { return c.session }

// ListThreads fetches all inquiry threads visible to the session's role.
func (c *Client) ListThreads(ctx context.Context, role string) ([]dto.Thread, error) {
	var threads []dto.Thread
	query := url.Values{"role": []string{role}}
	status, err := c.do(ctx, "list_threads", http.MethodGet, "/api/v1/chats?"+query.Encode(), nil, "", &threads)
	if err != nil {
		return nil, &FetchError{Op: "thread list", Status: status, Err: err}
	}
	return threads, nil
}

// GetMessages fetches one page of a thread's history. Pages are newest-first;
// the response's Last flag marks the oldest page.
func (c *Client) GetMessages(ctx context.Context, chatID string, page, size int) (dto.MessagePage, error) {
	var result dto.MessagePage
	query := url.Values{
		"page": []string{strconv.Itoa(page)},
		"size": []string{strconv.Itoa(size)},
	}
	path := fmt.Sprintf("/api/v1/chats/%s/messages?%s", url.PathEscape(chatID), query.Encode())
	status, err := c.do(ctx, "get_messages", http.MethodGet, path, nil, "", &result)
	if err != nil {
		return dto.MessagePage{}, &FetchError{Op: "message page", Status: status, Err: err}
	}
	return result, nil
}

// SendMessage creates a message in the thread and returns the server's
// canonical message object. The client never fabricates message IDs.
func (c *Client) SendMessage(ctx context.Context, chatID string, req dto.SendMessageRequest) (dto.Message, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return dto.Message{}, &SendError{Err: err}
	}

	var message dto.Message
	path := fmt.Sprintf("/api/v1/chats/%s/messages", url.PathEscape(chatID))
	status, err := c.do(ctx, "send_message", http.MethodPost, path, bytes.NewReader(payload), "application/json", &message)
	if err != nil {
		return dto.Message{}, &SendError{Status: status, Err: err}
	}

	observability.MessagesSent().WithLabelValues(req.MessageType).Inc()
	return message, nil
}

// MarkRead confirms the session has read the thread, resetting its unread
// count server-side.
func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	path := fmt.Sprintf("/api/v1/chats/%s/read", url.PathEscape(chatID))
	status, err := c.do(ctx, "mark_read", http.MethodPost, path, nil, "", nil)
	if err != nil {
		return &FetchError{Op: "mark read", Status: status, Err: err}
	}
	return nil
}

// UploadAttachment stores the attachment bytes and returns the remote
// reference to embed in a subsequent send. The MIME type is sniffed from the
// content rather than trusted from the file name.
func (c *Client) UploadAttachment(ctx context.Context, chatID, fileName string, data []byte) (dto.UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", mimetype.Detect(data).String())
	part, err := writer.CreatePart(header)
	if err != nil {
		return dto.UploadResult{}, &UploadError{Err: err}
	}
	if _, err := part.Write(data); err != nil {
		return dto.UploadResult{}, &UploadError{Err: err}
	}
	if err := writer.Close(); err != nil {
		return dto.UploadResult{}, &UploadError{Err: err}
	}

	var result dto.UploadResult
	path := fmt.Sprintf("/api/v1/chats/%s/attachments", url.PathEscape(chatID))
	status, err := c.do(ctx, "upload_attachment", http.MethodPost, path, body, writer.FormDataContentType(), &result)
	if err != nil {
		observability.Uploads().WithLabelValues("error").Inc()
		return dto.UploadResult{}, &UploadError{Status: status, Err: err}
	}

	observability.Uploads().WithLabelValues("ok").Inc()
	return result, nil
}

// StartInquiry opens (or returns the existing) inquiry thread for a product.
func (c *Client) StartInquiry(ctx context.Context, productID string) (dto.Inquiry, error) {
	payload, err := json.Marshal(dto.StartInquiryRequest{ProductID: productID})
	if err != nil {
		return dto.Inquiry{}, &FetchError{Op: "start inquiry", Err: err}
	}

	var inquiry dto.Inquiry
	status, err := c.do(ctx, "start_inquiry", http.MethodPost, "/api/v1/inquiries", bytes.NewReader(payload), "application/json", &inquiry)
	if err != nil {
		return dto.Inquiry{}, &FetchError{Op: "start inquiry", Status: status, Err: err}
	}
	return inquiry, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
}

// do issues one HTTP call and decodes the response envelope into out.
// It returns the HTTP status (0 when the call never reached the server).
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out interface{}) (int, error) {
	correlation := session.CorrelationIDFromContext(ctx)

	ctx, span := c.tracer.Start(ctx, "transport."+op, trace.WithAttributes(
		attribute.String("chat.op", op),
		attribute.String("correlation_id", correlation),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.TransportLatency().WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request build failed")
		return 0, err
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Correlation-ID", correlation)
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return 0, err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		span.RecordError(err)
		return resp.StatusCode, err
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			span.RecordError(err)
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		message := env.Message
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		err := fmt.Errorf("server returned %d: %s", resp.StatusCode, message)
		span.SetStatus(codes.Error, message)
		c.logger.Debug().Str("op", op).Int("status", resp.StatusCode).Str("correlation_id", correlation).Msg("transport call failed")
		return resp.StatusCode, err
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			span.RecordError(err)
			return resp.StatusCode, fmt.Errorf("decode payload: %w", err)
		}
	}

	return resp.StatusCode, nil
}
