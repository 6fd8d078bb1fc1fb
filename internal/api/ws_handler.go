package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"cvbuilder/internal/database"
	"cvbuilder/internal/worker"
)

const (
	wsPingInterval = 30 * time.Second
	wsPongWait     = wsPingInterval + 10*time.Second
	wsWriteWait    = 5 * time.Second
)

// WsHandler 把某份简历的渲染通知从 Redis 转发给浏览器。
type WsHandler struct {
	db             *gorm.DB
	redisClient    *redis.Client
	logger         *slog.Logger
	upgrader       websocket.Upgrader
	allowedOrigins []string
}

// NewWsHandler 构造 WebSocket 处理器。allowedOrigins 为空时只允许同源。
func NewWsHandler(db *gorm.DB, redisClient *redis.Client, logger *slog.Logger, allowedOrigins []string) *WsHandler {
	h := &WsHandler{
		db:             db,
		redisClient:    redisClient,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *WsHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(h.allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range h.allowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// HandleConnection 订阅 cv_notify:<document_id>。
// 订阅建立后先补发一次数据库里已落定的状态，之后只转发新消息。
func (h *WsHandler) HandleConnection(c *gin.Context) {
	documentID := strings.TrimSpace(c.Query("document_id"))
	if _, err := uuid.Parse(documentID); err != nil {
		BadRequest(c, "document_id is required")
		return
	}

	var record database.CV
	if err := h.db.WithContext(c.Request.Context()).Where("public_id = ?", documentID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "CV not found")
			return
		}
		h.logger.Error("query cv for websocket failed", slog.Any("error", err))
		Internal(c, "Failed to open notification stream")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("upgrade websocket failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	log := h.logger.With(
		slog.String("client_ip", c.ClientIP()),
		slog.String("document_id", documentID),
	)

	pubsub := h.redisClient.Subscribe(ctx, worker.NotifyChannel(documentID))
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error("subscribe notification channel failed", slog.Any("error", err))
		return
	}

	// 订阅之后再读一次状态：之前读到的可能已经过时。
	if err := h.db.WithContext(ctx).First(&record, record.ID).Error; err != nil {
		log.Warn("refresh cv status failed", slog.Any("error", err))
	}

	go readUntilClosed(conn, cancel)

	err = h.forward(ctx, conn, pubsub.Channel(), record)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Info("websocket connection closed", slog.Any("error", err))
		return
	}
	log.Debug("websocket connection closed")
}

// forward 是连接上唯一的写者。
func (h *WsHandler) forward(ctx context.Context, conn *websocket.Conn, messages <-chan *redis.Message, record database.CV) error {
	if snapshot, ok := worker.StatusMessage(record); ok {
		payload, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}
		if err := writeText(conn, payload); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return errors.New("pubsub channel closed")
			}
			if err := writeText(conn, []byte(msg.Payload)); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return fmt.Errorf("write ping: %w", err)
			}
		}
	}
}

func writeText(conn *websocket.Conn, payload []byte) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// readUntilClosed 丢弃客户端消息，靠 pong 续期读超时，读失败即视为断开。
func readUntilClosed(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
