package builder

import "cvbuilder/internal/cv"

// NotificationKind 区分成功与失败提示。
type NotificationKind string

const (
	KindSuccess NotificationKind = "success"
	KindError   NotificationKind = "error"
)

// Notification 是同一时刻唯一的一条临时提示。
type Notification struct {
	Visible bool             `json:"visible"`
	Text    string           `json:"text"`
	Kind    NotificationKind `json:"kind"`
}

// State 是 Store 的完整快照：文档本身加上不持久化的界面/会话状态。
type State struct {
	Document         cv.Document  `json:"document"`
	ActiveSection    cv.Section   `json:"activeSection"`
	PreviewVisible   bool         `json:"previewVisible"`
	MobileMenuOpen   bool         `json:"mobileMenuOpen"`
	SaveInFlight     bool         `json:"saveInFlight"`
	ExportInFlight   bool         `json:"exportInFlight"`
	RemoteDocumentID string       `json:"remoteDocumentId,omitempty"`
	Notification     Notification `json:"notification"`
}

func initialState() State {
	return State{
		Document:      cv.New(),
		ActiveSection: cv.SectionPersonal,
		Notification:  Notification{Kind: KindSuccess},
	}
}

func (s State) clone() State {
	s.Document = s.Document.Clone()
	return s
}

// IsComplete 是 cv.IsComplete 在快照上的投影，控制界面上保存按钮是否可用。
func (s State) IsComplete() bool {
	return cv.IsComplete(s.Document)
}
