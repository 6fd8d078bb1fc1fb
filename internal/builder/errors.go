package builder

import (
	"errors"
	"fmt"
)

// FailureKind 是异步操作失败的分类，三类都走 rejected 迁移，只有提示文案不同。
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNetwork
	FailureRejected
	FailureRejectedNoMessage
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNetwork:
		return "network_failure"
	case FailureRejected:
		return "server_rejected"
	case FailureRejectedNoMessage:
		return "server_rejected_no_message"
	default:
		return fmt.Sprintf("failure(%d)", int(k))
	}
}

// NetworkError 表示请求没有拿到任何 HTTP 响应。
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RejectedError 表示服务端返回了非 2xx。Message 取自响应 JSON，解析不到时为空。
type RejectedError struct {
	Op      string
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: server rejected with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: server rejected with status %d: %s", e.Op, e.Status, e.Message)
}

// Classify 把传输层错误映射到失败分类。未知错误按网络失败处理。
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		if rejected.Message == "" {
			return FailureRejectedNoMessage
		}
		return FailureRejected
	}
	return FailureNetwork
}

func failureText(err error, fallback string) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) && rejected.Message != "" {
		return rejected.Message
	}
	return fallback
}
