package builder

// showLocked 显示一条新提示。旧提示的自动隐藏计时器先取消，再为新提示重新计时，计时器不会叠加。
func (s *Store) showLocked(kind NotificationKind, text string) {
	s.stopDismissTimerLocked()
	s.state.Notification = Notification{Visible: true, Text: text, Kind: kind}

	s.noticeSeq++
	seq := s.noticeSeq
	s.dismissTimer = s.clock.AfterFunc(s.ttl, func() {
		s.autoDismiss(seq)
	})
}

// clearNotificationLocked 隐藏当前提示，保留文本与类型。
func (s *Store) clearNotificationLocked() {
	s.stopDismissTimerLocked()
	s.state.Notification.Visible = false
}

func (s *Store) stopDismissTimerLocked() {
	if s.dismissTimer != nil {
		s.dismissTimer.Stop()
		s.dismissTimer = nil
	}
	// Stop 与回调触发可能并发，序号失效后回调什么也不做。
	s.noticeSeq++
}

func (s *Store) autoDismiss(seq uint64) {
	_ = s.apply(func() error {
		if seq != s.noticeSeq {
			return nil
		}
		s.dismissTimer = nil
		s.state.Notification.Visible = false
		return nil
	})
}
