package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"cvbuilder/internal/cv"
)

// DefaultNotificationTTL 是提示自动消失前的停留时间。
const DefaultNotificationTTL = 3 * time.Second

var ErrClosed = errors.New("store closed")

// Transport 是保存与导出的远端接口，由 internal/client 提供 HTTP 实现。
type Transport interface {
	// Save 提交整份文档，remoteID 为空表示首次保存，返回服务端分配的文档 ID。
	Save(ctx context.Context, doc cv.Document, remoteID string) (string, error)
	// Export 提交整份文档并返回渲染好的 PDF。
	Export(ctx context.Context, doc cv.Document) ([]byte, error)
}

// Store 持有一次编辑会话的全部状态。所有写入都经过这里的方法，每次写入整体生效。
type Store struct {
	mu    sync.Mutex
	state State

	transport  Transport
	downloader Downloader
	clock      clockwork.Clock
	logger     *slog.Logger
	ttl        time.Duration

	// generation 在 Reset/Close 时递增，早于当前代的异步回调被丢弃。
	generation uint64
	closed     bool

	dismissTimer clockwork.Timer
	noticeSeq    uint64

	listeners    map[int]func(State)
	nextListener int
}

type Option func(*Store)

func WithClock(clock clockwork.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func WithDownloader(d Downloader) Option {
	return func(s *Store) { s.downloader = d }
}

func WithNotificationTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// New 创建一个空会话。默认把导出的 PDF 写到当前工作目录。
func New(transport Transport, opts ...Option) *Store {
	s := &Store{
		state:     initialState(),
		transport: transport,
		clock:     clockwork.NewRealClock(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ttl:       DefaultNotificationTTL,
		listeners: make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.downloader == nil {
		s.downloader = NewFileDownloader(afero.NewOsFs(), ".")
	}
	return s
}

// State 返回当前状态的深拷贝。
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) Document() cv.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Document.Clone()
}

// IsComplete 每次调用都基于当前文档重新计算，不缓存。
func (s *Store) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cv.IsComplete(s.state.Document)
}

func (s *Store) Notification() Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Notification
}

// Subscribe 注册一个在每次状态变化后调用的回调，返回取消函数。
// 回调在锁外执行，拿到的是快照。
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// apply 在锁内执行一次修改，然后在锁外通知订阅者。
func (s *Store) apply(mutate func() error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := mutate(); err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snapshot, listeners)
	return nil
}

func (s *Store) snapshotLocked() (State, []func(State)) {
	if len(s.listeners) == 0 {
		return State{}, nil
	}
	listeners := make([]func(State), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return s.state.clone(), listeners
}

func (s *Store) emit(snapshot State, listeners []func(State)) {
	for _, fn := range listeners {
		fn(snapshot)
	}
}

// SetField 修改个人信息的一个文本字段，不做校验。
func (s *Store) SetField(name, value string) error {
	return s.apply(func() error {
		return s.state.Document.SetPersonalField(name, value)
	})
}

// SetProfileImage 替换头像，传 nil 清除。类型与体积由调用方预先检查（cv.CheckImage）。
func (s *Store) SetProfileImage(img *cv.Image) error {
	return s.apply(func() error {
		if img == nil {
			s.state.Document.Personal.ProfileImage = nil
			return nil
		}
		cp := *img
		cp.Data = append([]byte(nil), img.Data...)
		s.state.Document.Personal.ProfileImage = &cp
		return nil
	})
}

func (s *Store) Add(section cv.Section) error {
	return s.apply(func() error {
		return s.state.Document.Add(section)
	})
}

// Update 越界或字段不匹配时返回错误且不改动状态；界面按构造不会产生这种调用。
func (s *Store) Update(section cv.Section, index int, field string, value any) error {
	err := s.apply(func() error {
		return s.state.Document.Update(section, index, field, value)
	})
	if err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Warn("ignored invalid update",
			slog.String("section", string(section)),
			slog.Int("index", index),
			slog.String("field", field),
			slog.Any("error", err),
		)
	}
	return err
}

func (s *Store) Remove(section cv.Section, index int) error {
	return s.apply(func() error {
		return s.state.Document.Remove(section, index)
	})
}

// SetActiveSection 切换当前编辑的部分，同时总是收起移动端菜单。
func (s *Store) SetActiveSection(section cv.Section) error {
	if !section.Valid() {
		return fmt.Errorf("%w: %q", cv.ErrUnknownSection, section)
	}
	return s.apply(func() error {
		s.state.ActiveSection = section
		s.state.MobileMenuOpen = false
		return nil
	})
}

func (s *Store) SetPreviewVisible(visible bool) {
	_ = s.apply(func() error {
		s.state.PreviewVisible = visible
		return nil
	})
}

func (s *Store) SetMobileMenuOpen(open bool) {
	_ = s.apply(func() error {
		s.state.MobileMenuOpen = open
		return nil
	})
}

// DismissNotification 隐藏当前提示并取消待触发的自动隐藏。
func (s *Store) DismissNotification() {
	_ = s.apply(func() error {
		s.stopDismissTimerLocked()
		s.state.Notification.Visible = false
		return nil
	})
}

// Hydrate 用已有文档替换当前内容（例如从文件或服务端加载），界面状态回到初始值。
func (s *Store) Hydrate(doc cv.Document, remoteID string) error {
	doc = doc.Clone()
	return s.apply(func() error {
		s.resetLocked()
		s.state.Document = doc
		s.state.RemoteDocumentID = remoteID
		return nil
	})
}

// Reset 把文档和全部会话状态恢复为初始值。进行中的保存/导出完成后不会再写入。
func (s *Store) Reset() {
	_ = s.apply(func() error {
		s.resetLocked()
		return nil
	})
}

func (s *Store) resetLocked() {
	s.generation++
	s.stopDismissTimerLocked()
	s.state = initialState()
}

// Close 结束会话：停止计时器，之后到达的异步结果全部丢弃，写操作返回 ErrClosed。
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	s.stopDismissTimerLocked()
	clear(s.listeners)
}
