package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
	"cvbuilder/internal/metrics"
	"cvbuilder/internal/pdf"
	"cvbuilder/internal/storage"
	"cvbuilder/internal/tasks"
)

// ObjectStore 是渲染任务需要的对象存储能力，由 storage.Client 实现。
type ObjectStore interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, string, error)
	PutBytes(ctx context.Context, objectKey string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, objectKey string) error
}

// Publisher 是 Redis Pub/Sub 的发布端，*redis.Client 满足该接口。
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RenderTaskHandler 消费 cv:render 任务，把保存的简历渲染成 PDF 归档。
type RenderTaskHandler struct {
	db        *gorm.DB
	objects   ObjectStore
	renderer  pdf.Renderer
	publisher Publisher
	logger    *slog.Logger
}

// NewRenderTaskHandler 创建任务处理器。
func NewRenderTaskHandler(db *gorm.DB, objects ObjectStore, renderer pdf.Renderer, publisher Publisher, logger *slog.Logger) *RenderTaskHandler {
	return &RenderTaskHandler{
		db:        db,
		objects:   objects,
		renderer:  renderer,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessTask 实现 asynq.Handler。
func (h *RenderTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) (retErr error) {
	log := h.logger

	var payload tasks.CVRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		log.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	log = log.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.String("document_id", payload.PublicID),
	)
	log.Info("cv render task started")

	var record database.CV
	if err := h.db.WithContext(ctx).First(&record, payload.CVID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("cv not found, skipping task")
			return nil
		}
		log.Error("query cv failed", slog.Any("error", err))
		return err
	}
	if record.Revision != payload.Revision {
		log.Info("cv saved again since enqueue, skipping task",
			slog.Uint64("task_revision", uint64(payload.Revision)),
			slog.Uint64("current_revision", uint64(record.Revision)),
		)
		return nil
	}

	failCode := errcode.SystemError
	defer func() {
		if retErr == nil || !(errors.Is(retErr, asynq.SkipRetry) || isFinalAsynqAttempt(ctx)) {
			return
		}
		res := h.sameRevision(ctx, record.ID, payload.Revision).Update("status", database.StatusFailed)
		if res.Error != nil {
			log.Error("mark cv failed", slog.Any("error", res.Error))
		} else if res.RowsAffected == 0 {
			log.Info("cv saved again during render, failure not recorded")
			return
		}
		notify := RenderNotifyMessage{
			Status:        NotifyError,
			DocumentID:    record.PublicID,
			CorrelationID: payload.CorrelationID,
			ErrorCode:     failCode,
			ErrorMessage:  strings.TrimSpace(retErr.Error()),
		}
		if err := h.publish(ctx, notify); err != nil {
			log.Error("publish render error notification failed", slog.Any("error", err))
		}
	}()

	var doc cv.Document
	if err := json.Unmarshal(record.Content, &doc); err != nil {
		log.Error("decode stored cv failed", slog.Any("error", err))
		return fmt.Errorf("decode stored cv: %v: %w", err, asynq.SkipRetry)
	}
	doc.Normalize()

	var missingKeys []string
	if record.ImageKey != "" && !storage.BelongsTo(record.ImageKey, record.PublicID) {
		log.Warn("image key outside cv prefix ignored", slog.String("image_key", record.ImageKey))
		missingKeys = append(missingKeys, record.ImageKey)
	} else if record.ImageKey != "" {
		data, contentType, err := h.objects.ReadObject(ctx, record.ImageKey)
		switch {
		case err == nil:
			doc.Personal.ProfileImage = &cv.Image{ContentType: contentType, Data: data}
		case storage.IsNoSuchKey(err):
			missingKeys = append(missingKeys, record.ImageKey)
			log.Warn("profile image missing, rendering without it", slog.String("image_key", record.ImageKey))
		default:
			log.Error("read profile image failed", slog.Any("error", err))
			return err
		}
	}

	started := time.Now()
	pdfBytes, err := pdf.RenderDocument(ctx, h.renderer, doc)
	metrics.ObserveRender("worker", started)
	if err != nil {
		failCode = errcode.RenderFailed
		log.Error("render pdf failed", slog.Any("error", err))
		return err
	}

	objectKey := storage.GeneratedPDFKey(record.PublicID)
	if err := h.objects.PutBytes(ctx, objectKey, pdfBytes, "application/pdf"); err != nil {
		log.Error("upload pdf to minio failed", slog.Any("error", err))
		return err
	}

	previousKey, applied, err := h.markReady(ctx, record.ID, payload.Revision, objectKey)
	if err != nil {
		log.Error("update cv failed", slog.Any("error", err))
		return err
	}
	if !applied {
		// 渲染期间有新的保存，本次结果已过时，新修订的任务会重新渲染。
		if err := h.objects.DeleteObject(ctx, objectKey); err != nil {
			log.Warn("delete superseded pdf failed", slog.String("pdf_key", objectKey), slog.Any("error", err))
		}
		log.Info("cv saved again during render, result discarded")
		return nil
	}
	if previousKey != "" && previousKey != objectKey && storage.BelongsTo(previousKey, record.PublicID) {
		if err := h.objects.DeleteObject(ctx, previousKey); err != nil {
			log.Warn("delete previous pdf failed", slog.String("pdf_key", previousKey), slog.Any("error", err))
		}
	}

	notify := RenderNotifyMessage{
		Status:        NotifyCompleted,
		DocumentID:    record.PublicID,
		CorrelationID: payload.CorrelationID,
		ErrorCode:     errcode.OK,
	}
	if len(missingKeys) > 0 {
		notify.ErrorCode = errcode.ResourceMissing
		notify.ErrorMessage = "profile image missing, rendered without it"
		notify.MissingKeys = missingKeys
	}
	if err := h.publish(ctx, notify); err != nil {
		log.Error("publish redis notification failed", slog.Any("error", err))
		return err
	}

	log.Info("cv render task completed", slog.String("pdf_key", objectKey), slog.Int("bytes", len(pdfBytes)))
	return nil
}

// sameRevision 限定写入只作用于仍是 revision 的那一行。
func (h *RenderTaskHandler) sameRevision(ctx context.Context, id, revision uint) *gorm.DB {
	return h.db.WithContext(ctx).Model(&database.CV{}).Where("id = ? AND revision = ?", id, revision)
}

// markReady 在同一事务里读出旧的 pdf_key 并写入新结果。
// 修订不匹配（或记录已删除）时 applied 为 false，数据库保持不变。
func (h *RenderTaskHandler) markReady(ctx context.Context, id, revision uint, objectKey string) (previousKey string, applied bool, err error) {
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current database.CV
		if err := tx.Select("id", "pdf_key", "revision").First(&current, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if current.Revision != revision {
			return nil
		}
		res := tx.Model(&database.CV{}).
			Where("id = ? AND revision = ?", id, revision).
			Updates(map[string]any{
				"pdf_key": objectKey,
				"status":  database.StatusReady,
			})
		if res.Error != nil {
			return res.Error
		}
		previousKey, applied = current.PdfKey, res.RowsAffected > 0
		return nil
	})
	return previousKey, applied, err
}

func (h *RenderTaskHandler) publish(ctx context.Context, notify RenderNotifyMessage) error {
	data, err := json.Marshal(notify)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(notify.DocumentID)
	if err := h.publisher.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}

func isFinalAsynqAttempt(ctx context.Context) bool {
	retryCount, ok1 := asynq.GetRetryCount(ctx)
	maxRetry, ok2 := asynq.GetMaxRetry(ctx)
	if !ok1 || !ok2 {
		return false
	}
	return retryCount >= maxRetry
}
