package pdf

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"cvbuilder/internal/cv"
)

// Renderer 把完整的 HTML 页面渲染成 PDF。
type Renderer interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// RodRenderer 每次渲染启动一个独立的无头 Chromium，渲染完即销毁。
type RodRenderer struct {
	bin     string
	timeout time.Duration
}

// NewRodRenderer 创建渲染器。bin 为空时使用本机已安装的浏览器，找不到再由 rod 下载。
func NewRodRenderer(bin string, timeout time.Duration) *RodRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RodRenderer{bin: strings.TrimSpace(bin), timeout: timeout}
}

func (r *RodRenderer) Render(ctx context.Context, html string) ([]byte, error) {
	launch := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true)

	if r.bin != "" {
		launch = launch.Bin(r.bin)
	} else if path, ok := launcher.LookPath(); ok {
		launch = launch.Bin(path)
	}

	browserURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().Context(ctx).ControlURL(browserURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer func() {
		_ = browser.Close()
	}()

	page, err := browser.Timeout(r.timeout).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		_ = page.Close()
	}()

	page = page.Timeout(r.timeout)
	if err := page.SetDocumentContent(html); err != nil {
		return nil, fmt.Errorf("set document content: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, fmt.Errorf("export pdf: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read pdf bytes: %w", err)
	}
	return data, nil
}

// ImageDataURI 把头像编码成可以直接放进 <img src> 的 data URI，img 为空时返回空串。
func ImageDataURI(img *cv.Image) string {
	if img == nil || len(img.Data) == 0 {
		return ""
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// RenderDocument 组合 BuildHTML 与 Renderer，头像内联进页面。
func RenderDocument(ctx context.Context, r Renderer, doc cv.Document) ([]byte, error) {
	html, err := BuildHTML(doc, ImageDataURI(doc.Personal.ProfileImage))
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, html)
}
