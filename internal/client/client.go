package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"cvbuilder/internal/builder"
	"cvbuilder/internal/cv"
)

const (
	savePath   = "/v1/cv"
	exportPath = "/v1/cv/pdf"

	pdfMediaType = "application/pdf"

	// 错误响应体只读前 8KB。
	errorBodyLimit = 8 * 1024
)

// Client 是 builder.Transport 的 HTTP 实现，文档以 multipart/form-data 提交。
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ builder.Transport = (*Client)(nil)

type saveResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// Save 提交整份文档。remoteID 非空时作为 documentId 一并提交，服务端据此更新而不是新建。
func (c *Client) Save(ctx context.Context, doc cv.Document, remoteID string) (string, error) {
	resp, err := c.post(ctx, "save", savePath, doc, remoteID)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out saveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &builder.NetworkError{Op: "save", Err: fmt.Errorf("decode response: %w", err)}
	}
	if strings.TrimSpace(out.ID) == "" {
		// 成功响应里的 message 是成功文案，不能当作失败原因展示。
		return "", &builder.RejectedError{Op: "save", Status: resp.StatusCode}
	}
	return out.ID, nil
}

// Export 提交整份文档，返回服务端渲染好的 PDF 字节。
// 2xx 但不是 application/pdf 的响应（代理页、登录页）按拒绝处理。
func (c *Client) Export(ctx context.Context, doc cv.Document) ([]byte, error) {
	resp, err := c.post(ctx, "export", exportPath, doc, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err != nil || mediaType != pdfMediaType {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		c.logger.Warn("export response is not a pdf",
			slog.Int("status", resp.StatusCode),
			slog.String("content_type", resp.Header.Get("Content-Type")),
		)
		return nil, &builder.RejectedError{Op: "export", Status: resp.StatusCode, Message: errorMessage(raw)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &builder.NetworkError{Op: "export", Err: fmt.Errorf("read pdf: %w", err)}
	}
	return data, nil
}

// post 发送 multipart 请求。返回的响应一定是 2xx，调用方负责关闭 Body。
func (c *Client) post(ctx context.Context, op, path string, doc cv.Document, remoteID string) (*http.Response, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := cv.WriteMultipart(mw, doc); err != nil {
		return nil, fmt.Errorf("%s: encode document: %w", op, err)
	}
	if remoteID != "" {
		if err := mw.WriteField(cv.PartDocumentID, remoteID); err != nil {
			return nil, fmt.Errorf("%s: encode document id: %w", op, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("%s: close multipart: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("cv request failed", slog.String("op", op), slog.String("url", req.URL.String()), slog.Any("error", err))
		return nil, &builder.NetworkError{Op: op, Err: err}
	}
	c.logger.Debug("cv request finished",
		slog.String("op", op),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return nil, &builder.RejectedError{Op: op, Status: resp.StatusCode, Message: errorMessage(raw)}
	}
	return resp, nil
}

// errorMessage 从错误响应体里取人类可读的信息，优先 message，其次 error。
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if msg := strings.TrimSpace(body.Message); msg != "" {
		return msg
	}
	return strings.TrimSpace(body.Error)
}
