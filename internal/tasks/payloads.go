package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeCVRender = "cv:render"
)

// CVRenderPayload 描述归档渲染所需的最小信息，文档内容由 worker 从数据库读取。
type CVRenderPayload struct {
	CVID          uint   `json:"cv_id"`
	PublicID      string `json:"public_id"`
	Revision      uint   `json:"revision"`
	CorrelationID string `json:"correlation_id"`
}

// NewCVRenderTask 构造一个简历归档渲染任务。revision 是投递时的保存修订，
// 修订已被更新的保存取代时 worker 丢弃结果。
func NewCVRenderTask(id uint, publicID string, revision uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(CVRenderPayload{
		CVID:          id,
		PublicID:      publicID,
		Revision:      revision,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCVRender, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(2*time.Minute),
	), nil
}
