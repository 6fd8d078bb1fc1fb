package builder

import (
	"context"
	"log/slog"

	"cvbuilder/internal/cv"
)

// Phase 是一次保存/导出的结果。
type Phase string

const (
	PhaseFulfilled Phase = "fulfilled"
	PhaseRejected  Phase = "rejected"
	// PhaseDiscarded 表示结果到达时会话已被 Reset/Close，状态未被改动。
	PhaseDiscarded Phase = "discarded"
)

const (
	SaveSucceededText   = "CV saved successfully!"
	SaveFailedText      = "Failed to save CV. Please try again."
	ExportSucceededText = "PDF downloaded successfully!"
	ExportFailedText    = "Failed to generate PDF. Please try again."
)

// SaveDocument 把当前文档整体提交给远端保存，阻塞到请求结束。
// 错误不会返回给调用方，而是转换为 rejected 迁移和一条错误提示。
// 同一时刻只应有一个保存在进行，由界面在 SaveInFlight 期间禁用按钮保证。
func (s *Store) SaveDocument(ctx context.Context) Phase {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return PhaseDiscarded
	}
	gen := s.generation
	doc := s.state.Document.Clone()
	remoteID := s.state.RemoteDocumentID
	s.state.SaveInFlight = true
	s.clearNotificationLocked()
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snapshot, listeners)

	log := s.logger.With(slog.String("op", "save"), slog.String("remote_id", remoteID))
	log.Debug("save started")

	id, err := s.transport.Save(ctx, doc, remoteID)

	phase := PhaseFulfilled
	applied := s.settle(gen, func() {
		s.state.SaveInFlight = false
		if err != nil {
			phase = PhaseRejected
			s.showLocked(KindError, failureText(err, SaveFailedText))
			return
		}
		s.state.RemoteDocumentID = id
		s.revealPreviewLocked()
		s.showLocked(KindSuccess, SaveSucceededText)
	})
	if !applied {
		log.Debug("save result discarded after session change")
		return PhaseDiscarded
	}
	if err != nil {
		log.Warn("save failed", slog.String("failure", Classify(err).String()), slog.Any("error", err))
		return phase
	}
	log.Debug("save completed", slog.String("document_id", id))
	return phase
}

// revealPreviewLocked 是保存成功后打开预览/导出面板的迁移。
func (s *Store) revealPreviewLocked() {
	s.state.PreviewVisible = true
}

// ExportDocument 把当前文档提交给远端渲染 PDF，成功后交给 Downloader 触发下载。
// 与 SaveDocument 相互独立：不要求先保存，也不影响 RemoteDocumentID。
func (s *Store) ExportDocument(ctx context.Context) Phase {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return PhaseDiscarded
	}
	gen := s.generation
	doc := s.state.Document.Clone()
	s.state.ExportInFlight = true
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snapshot, listeners)

	log := s.logger.With(slog.String("op", "export"))
	log.Debug("export started")

	pdf, err := s.transport.Export(ctx, doc)

	phase := PhaseFulfilled
	applied := s.settle(gen, func() {
		s.state.ExportInFlight = false
		// 下载与结果迁移在同一把锁内完成，被 Reset/Close 丢弃的导出不会留下文件。
		if err == nil {
			filename := cv.DownloadFilename(doc.Personal.Name)
			if dlErr := s.downloader.Download(filename, pdf); dlErr != nil {
				log.Warn("download pdf failed", slog.String("filename", filename), slog.Any("error", dlErr))
				err = dlErr
			}
		}
		if err != nil {
			phase = PhaseRejected
			s.showLocked(KindError, failureText(err, ExportFailedText))
			return
		}
		s.showLocked(KindSuccess, ExportSucceededText)
	})
	if !applied {
		log.Debug("export result discarded after session change")
		return PhaseDiscarded
	}
	if err != nil {
		log.Warn("export failed", slog.String("failure", Classify(err).String()), slog.Any("error", err))
		return phase
	}
	log.Debug("export completed", slog.Int("bytes", len(pdf)))
	return phase
}

// settle 在会话仍是发起时那一代的前提下应用结果迁移，返回是否已应用。
func (s *Store) settle(gen uint64, transition func()) bool {
	s.mu.Lock()
	if s.closed || gen != s.generation {
		s.mu.Unlock()
		return false
	}
	transition()
	snapshot, listeners := s.snapshotLocked()
	s.mu.Unlock()
	s.emit(snapshot, listeners)
	return true
}
