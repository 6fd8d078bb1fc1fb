package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cvbuilder/internal/api/middleware"
	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/metrics"
	"cvbuilder/internal/pdf"
	"cvbuilder/internal/storage"
	"cvbuilder/internal/tasks"
)

const downloadLinkTTL = 15 * time.Minute

// ObjectStore 是 API 需要的对象存储能力，由 storage.Client 实现。
type ObjectStore interface {
	PutBytes(ctx context.Context, objectKey string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, objectKey string) error
	DeletePrefix(ctx context.Context, prefix string) error
	PresignedDownloadURL(ctx context.Context, objectKey string, ttl time.Duration, filename string) (string, error)
}

// TaskQueue 是任务投递端，*asynq.Client 满足该接口。
type TaskQueue interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// CVHandler 处理简历的保存、导出与归档下载。
type CVHandler struct {
	db       *gorm.DB
	objects  ObjectStore
	queue    TaskQueue
	renderer pdf.Renderer
	scanner  Scanner
	limiter  *windowLimiter

	maxUploadBytes int64
	renderTimeout  time.Duration
}

// CVHandlerOptions 汇总可调参数，零值表示使用默认值或关闭对应功能。
type CVHandlerOptions struct {
	MaxUploadBytes int64
	ExportLimit    int
	ExportWindow   time.Duration
	RenderTimeout  time.Duration
}

func NewCVHandler(db *gorm.DB, objects ObjectStore, queue TaskQueue, renderer pdf.Renderer, scanner Scanner, counter RateCounter, opts CVHandlerOptions) *CVHandler {
	h := &CVHandler{
		db:             db,
		objects:        objects,
		queue:          queue,
		renderer:       renderer,
		scanner:        scanner,
		limiter:        newWindowLimiter(counter, "cv_export:", opts.ExportLimit, opts.ExportWindow),
		maxUploadBytes: opts.MaxUploadBytes,
		renderTimeout:  opts.RenderTimeout,
	}
	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = 10 << 20
	}
	if h.renderTimeout <= 0 {
		h.renderTimeout = 30 * time.Second
	}
	if h.scanner == nil {
		h.scanner = noopScanner{}
	}
	return h
}

type saveResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

type cvResponse struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Status    string          `json:"status"`
	HasImage  bool            `json:"hasImage"`
	HasPDF    bool            `json:"hasPdf"`
	Document  json.RawMessage `json:"document"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type validationResponse struct {
	Error  string          `json:"error"`
	Fields []cv.FieldError `json:"fields"`
}

// SaveCV 保存整份简历。带 documentId 时更新已有记录，否则新建，随后投递归档渲染任务。
func (h *CVHandler) SaveCV(c *gin.Context) {
	log := middleware.LoggerFromContext(c)
	ctx := c.Request.Context()

	doc, form, ok := h.readDocument(c, log)
	if !ok {
		metrics.ObserveSave(metrics.ResultInvalid)
		return
	}
	doc = cv.Sanitize(doc)

	var record database.CV
	created := true
	if documentID := cv.DocumentID(form); documentID != "" {
		if err := h.db.WithContext(ctx).Where("public_id = ?", documentID).First(&record).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				NotFound(c, "cv not found")
				return
			}
			log.Error("query cv failed", slog.Any("error", err))
			Internal(c, "failed to query cv")
			return
		}
		created = false
	} else {
		record.PublicID = uuid.NewString()
	}

	previousImageKey := record.ImageKey
	imageKey := ""
	if img := doc.Personal.ProfileImage; img != nil {
		imageKey = storage.ProfileImageKey(record.PublicID, cv.ImageExtension(img.ContentType))
		if err := h.objects.PutBytes(ctx, imageKey, img.Data, img.ContentType); err != nil {
			log.Error("upload profile image failed", slog.Any("error", err))
			Internal(c, "failed to store profile image")
			return
		}
	}

	content, err := json.Marshal(doc)
	if err != nil {
		log.Error("marshal cv failed", slog.Any("error", err))
		Internal(c, "failed to encode cv")
		return
	}

	record.Title = strings.TrimSpace(doc.Personal.Name)
	record.Content = datatypes.JSON(content)
	record.ImageKey = imageKey
	record.Status = database.StatusPending
	record.Revision++
	if err := h.db.WithContext(ctx).Save(&record).Error; err != nil {
		log.Error("save cv failed", slog.Any("error", err))
		if imageKey != "" {
			_ = h.objects.DeleteObject(ctx, imageKey)
		}
		Internal(c, "failed to save cv")
		return
	}

	// 请求里没有头像即视为清除，旧对象不再被引用。
	if previousImageKey != "" && previousImageKey != imageKey {
		if err := h.objects.DeleteObject(ctx, previousImageKey); err != nil {
			log.Warn("delete previous profile image failed", slog.String("image_key", previousImageKey), slog.Any("error", err))
		}
	}

	h.enqueueRender(c, log, record)

	status, result, message := http.StatusOK, metrics.ResultUpdated, "CV updated successfully"
	if created {
		status, result, message = http.StatusCreated, metrics.ResultCreated, "CV saved successfully"
	}
	metrics.ObserveSave(result)
	log.Info("cv saved", slog.String("document_id", record.PublicID), slog.Bool("created", created))
	c.JSON(status, saveResponse{ID: record.PublicID, Message: message})
}

// enqueueRender 投递归档渲染。失败只记录日志：文档已经保存，下次保存会重新投递。
func (h *CVHandler) enqueueRender(c *gin.Context, log *slog.Logger, record database.CV) {
	if h.queue == nil {
		return
	}
	task, err := tasks.NewCVRenderTask(record.ID, record.PublicID, record.Revision, middleware.GetCorrelationID(c))
	if err != nil {
		log.Error("create render task failed", slog.Any("error", err))
		return
	}
	info, err := h.queue.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		log.Error("enqueue render task failed", slog.String("document_id", record.PublicID), slog.Any("error", err))
		return
	}
	log.Info("render task enqueued", slog.String("task_id", info.ID), slog.String("document_id", record.PublicID))
}

// ExportPDF 同步渲染提交的文档并直接返回 PDF，不落库。
func (h *CVHandler) ExportPDF(c *gin.Context) {
	log := middleware.LoggerFromContext(c)

	allowed, retryAfter, err := h.limiter.allow(c.Request.Context(), c.ClientIP())
	if err != nil {
		// 限流依赖不可用时放行。
		log.Warn("export rate counter unavailable", slog.Any("error", err))
	} else if !allowed {
		metrics.ObserveExport(metrics.ResultLimited)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		TooManyRequests(c, "too many export requests, please try again later")
		return
	}

	doc, _, ok := h.readDocument(c, log)
	if !ok {
		metrics.ObserveExport(metrics.ResultInvalid)
		return
	}
	doc = cv.Sanitize(doc)

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.renderTimeout)
	defer cancel()

	started := time.Now()
	data, err := pdf.RenderDocument(ctx, h.renderer, doc)
	metrics.ObserveRender("api", started)
	if err != nil {
		metrics.ObserveExport(metrics.ResultError)
		log.Error("render pdf failed", slog.Any("error", err))
		Internal(c, "failed to generate pdf")
		return
	}

	metrics.ObserveExport(metrics.ResultOK)
	filename := cv.DownloadFilename(doc.Personal.Name)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.DataFromReader(http.StatusOK, int64(len(data)), "application/pdf", bytes.NewReader(data), nil)
}

// readDocument 解析 multipart 请求并完成图片检查、病毒扫描与字段校验。
// 返回 false 时响应已经写出。
func (h *CVHandler) readDocument(c *gin.Context, log *slog.Logger) (cv.Document, *multipart.Form, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	if err := c.Request.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Error(c, http.StatusRequestEntityTooLarge, "request body too large")
			return cv.Document{}, nil, false
		}
		BadRequest(c, "invalid multipart form")
		return cv.Document{}, nil, false
	}
	form := c.Request.MultipartForm

	doc, err := cv.ReadMultipart(form)
	if err != nil {
		log.Warn("decode cv form failed", slog.Any("error", err))
		BadRequest(c, err.Error())
		return cv.Document{}, nil, false
	}

	if img := doc.Personal.ProfileImage; img != nil {
		checked, err := cv.CheckImage(img.Filename, img.Data)
		if err != nil {
			BadRequest(c, err.Error())
			return cv.Document{}, nil, false
		}
		if err := h.scanner.Scan(bytes.NewReader(checked.Data)); err != nil {
			if errors.Is(err, ErrInfected) {
				log.Warn("infected profile image rejected", slog.Any("error", err))
				BadRequest(c, ErrInfected.Error())
				return cv.Document{}, nil, false
			}
			log.Error("scan profile image failed", slog.Any("error", err))
			Internal(c, "failed to scan file")
			return cv.Document{}, nil, false
		}
		doc.Personal.ProfileImage = checked
	}

	if err := cv.Validate(doc); err != nil {
		var verr *cv.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, validationResponse{Error: verr.Error(), Fields: verr.Fields})
			return cv.Document{}, nil, false
		}
		log.Error("validate cv failed", slog.Any("error", err))
		Internal(c, "failed to validate cv")
		return cv.Document{}, nil, false
	}
	return doc, form, true
}

// GetCV 返回已保存的文档内容，不含头像字节。
func (h *CVHandler) GetCV(c *gin.Context) {
	record, ok := h.findCV(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, cvResponse{
		ID:        record.PublicID,
		Title:     record.Title,
		Status:    record.Status,
		HasImage:  record.ImageKey != "",
		HasPDF:    record.PdfKey != "",
		Document:  json.RawMessage(record.Content),
		UpdatedAt: record.UpdatedAt,
	})
}

// GetDownloadLink 生成归档 PDF 的预签名下载链接。
func (h *CVHandler) GetDownloadLink(c *gin.Context) {
	record, ok := h.findCV(c)
	if !ok {
		return
	}
	if record.PdfKey == "" || record.Status != database.StatusReady {
		Conflict(c, "pdf not ready")
		return
	}

	signedURL, err := h.objects.PresignedDownloadURL(c.Request.Context(), record.PdfKey, downloadLinkTTL, cv.DownloadFilename(record.Title))
	if err != nil {
		middleware.LoggerFromContext(c).Error("generate download link failed", slog.Any("error", err))
		Internal(c, "failed to generate download link")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":       signedURL,
		"expiresAt": time.Now().Add(downloadLinkTTL).UTC(),
	})
}

// DeleteCV 删除记录以及该简历在对象存储中的全部文件。
func (h *CVHandler) DeleteCV(c *gin.Context) {
	log := middleware.LoggerFromContext(c)
	record, ok := h.findCV(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	for _, prefix := range storage.CVPrefixes(record.PublicID) {
		if err := h.objects.DeletePrefix(ctx, prefix); err != nil {
			log.Error("delete cv objects failed", slog.String("prefix", prefix), slog.Any("error", err))
			Internal(c, "failed to delete cv files")
			return
		}
	}
	if err := h.db.WithContext(ctx).Unscoped().Delete(&record).Error; err != nil {
		log.Error("delete cv failed", slog.Any("error", err))
		Internal(c, "failed to delete cv")
		return
	}
	log.Info("cv deleted", slog.String("document_id", record.PublicID))
	c.Status(http.StatusNoContent)
}

func (h *CVHandler) findCV(c *gin.Context) (database.CV, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if _, err := uuid.Parse(id); err != nil {
		BadRequest(c, "invalid cv id")
		return database.CV{}, false
	}

	var record database.CV
	if err := h.db.WithContext(c.Request.Context()).Where("public_id = ?", id).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "cv not found")
			return database.CV{}, false
		}
		middleware.LoggerFromContext(c).Error("query cv failed", slog.Any("error", err))
		Internal(c, "failed to query cv")
		return database.CV{}, false
	}
	return record, true
}
