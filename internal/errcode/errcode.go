package errcode

// Code 是渲染通知里的 error_code，前端按号段决定提示方式：
// 0 成功，4xxx 可继续（降级渲染），5xxx 本次渲染放弃。
type Code int

const (
	OK              Code = 0
	ResourceMissing Code = 4004
	SystemError     Code = 5000
	RenderFailed    Code = 5001
)

// Recoverable 表示渲染已经产出结果，只是有降级。
func (c Code) Recoverable() bool {
	return c >= 4000 && c < 5000
}
