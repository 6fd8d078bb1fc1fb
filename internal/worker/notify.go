package worker

import (
	"fmt"

	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
)

// 渲染状态，与 database.CV.Status 对应。
const (
	NotifyCompleted = "completed"
	NotifyError     = "error"
)

// RenderNotifyMessage 是归档渲染完成后经 Redis Pub/Sub 推给前端的消息。
// 字段名与前端解析保持一致。
type RenderNotifyMessage struct {
	Status        string       `json:"status"`
	DocumentID    string       `json:"document_id"`
	CorrelationID string       `json:"correlation_id"`
	ErrorCode     errcode.Code `json:"error_code"`
	ErrorMessage  string       `json:"error_message"`
	MissingKeys   []string     `json:"missing_keys,omitempty"`
}

// NotifyChannel 返回某份简历的通知频道，API 的 WebSocket 订阅同一个频道。
func NotifyChannel(publicID string) string {
	return fmt.Sprintf("cv_notify:%s", publicID)
}

// StatusMessage 根据数据库里已经落定的状态构造通知；仍在渲染中时返回 false。
// 用于客户端订阅晚于渲染完成的情况。
func StatusMessage(record database.CV) (RenderNotifyMessage, bool) {
	msg := RenderNotifyMessage{DocumentID: record.PublicID}
	switch record.Status {
	case database.StatusReady:
		msg.Status = NotifyCompleted
		msg.ErrorCode = errcode.OK
	case database.StatusFailed:
		msg.Status = NotifyError
		msg.ErrorCode = errcode.SystemError
		msg.ErrorMessage = "pdf rendering failed"
	default:
		return RenderNotifyMessage{}, false
	}
	return msg, true
}
