package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"cvbuilder/internal/cv"
	"cvbuilder/internal/database"
	"cvbuilder/internal/errcode"
	"cvbuilder/internal/tasks"
)

type fakeObjects struct {
	objects map[string][]byte
	types   map[string]string
	deleted []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) ReadObject(_ context.Context, key string) ([]byte, string, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("stat object %q: %w", key, minio.ErrorResponse{Code: "NoSuchKey"})
	}
	return data, f.types[key], nil
}

func (f *fakeObjects) PutBytes(_ context.Context, key string, data []byte, contentType string) error {
	f.objects[key] = data
	f.types[key] = contentType
	return nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

type fakePublisher struct {
	channel  string
	messages []RenderNotifyMessage
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	var msg RenderNotifyMessage
	_ = json.Unmarshal(message.([]byte), &msg)
	p.messages = append(p.messages, msg)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(1)
	return cmd
}

type fakeRenderer struct {
	html   string
	err    error
	during func()
	calls  int
}

func (r *fakeRenderer) Render(_ context.Context, html string) ([]byte, error) {
	r.html = html
	r.calls++
	if r.during != nil {
		r.during()
	}
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.7"), nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(sqlite.Open(dsn), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedCV(t *testing.T, db *gorm.DB, imageKey, pdfKey string) database.CV {
	t.Helper()
	doc := cv.New()
	doc.Personal.Name = "Jane Doe"
	doc.Experience = append(doc.Experience, cv.Experience{Company: "Acme", StartDate: "2020-01", CurrentlyWorking: true})
	content, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	record := database.CV{
		PublicID: "doc-1",
		Title:    "Jane Doe",
		Content:  datatypes.JSON(content),
		ImageKey: imageKey,
		PdfKey:   pdfKey,
		Status:   database.StatusPending,
		Revision: 1,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed cv: %v", err)
	}
	return record
}

func renderTask(t *testing.T, record database.CV) *asynq.Task {
	t.Helper()
	task, err := tasks.NewCVRenderTask(record.ID, record.PublicID, record.Revision, "corr-1")
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRenderTaskArchivesPDF(t *testing.T) {
	db := newTestDB(t)
	objects := newFakeObjects()
	objects.objects["profile-images/doc-1/a.png"] = []byte{0x89, 'P', 'N', 'G'}
	objects.types["profile-images/doc-1/a.png"] = "image/png"
	objects.objects["generated-cvs/doc-1/old.pdf"] = []byte("old")
	record := seedCV(t, db, "profile-images/doc-1/a.png", "generated-cvs/doc-1/old.pdf")

	renderer := &fakeRenderer{}
	publisher := &fakePublisher{}
	h := NewRenderTaskHandler(db, objects, renderer, publisher, discardLogger())

	if err := h.ProcessTask(context.Background(), renderTask(t, record)); err != nil {
		t.Fatalf("process: %v", err)
	}

	var stored database.CV
	if err := db.First(&stored, record.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != database.StatusReady || !strings.HasPrefix(stored.PdfKey, "generated-cvs/doc-1/") {
		t.Fatalf("unexpected row: status=%s pdf_key=%s", stored.Status, stored.PdfKey)
	}
	if string(objects.objects[stored.PdfKey]) != "%PDF-1.7" || objects.types[stored.PdfKey] != "application/pdf" {
		t.Fatal("pdf not uploaded")
	}
	if len(objects.deleted) != 1 || objects.deleted[0] != "generated-cvs/doc-1/old.pdf" {
		t.Fatalf("previous pdf not removed: %v", objects.deleted)
	}
	if !strings.Contains(renderer.html, "data:image/png;base64,") || !strings.Contains(renderer.html, "Present") {
		t.Fatal("rendered html missing image or current period")
	}

	if publisher.channel != "cv_notify:doc-1" || len(publisher.messages) != 1 {
		t.Fatalf("unexpected publish: %s %v", publisher.channel, publisher.messages)
	}
	msg := publisher.messages[0]
	if msg.Status != NotifyCompleted || msg.ErrorCode != errcode.OK || msg.CorrelationID != "corr-1" {
		t.Fatalf("notify = %+v", msg)
	}
}

func TestRenderTaskMissingImageContinues(t *testing.T) {
	db := newTestDB(t)
	record := seedCV(t, db, "profile-images/doc-1/gone.png", "")
	publisher := &fakePublisher{}
	renderer := &fakeRenderer{}
	h := NewRenderTaskHandler(db, newFakeObjects(), renderer, publisher, discardLogger())

	if err := h.ProcessTask(context.Background(), renderTask(t, record)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if strings.Contains(renderer.html, "<img") {
		t.Fatal("missing image must not be rendered")
	}
	msg := publisher.messages[0]
	if msg.ErrorCode != errcode.ResourceMissing || len(msg.MissingKeys) != 1 || msg.MissingKeys[0] != "profile-images/doc-1/gone.png" {
		t.Fatalf("notify = %+v", msg)
	}
}

func TestRenderTaskRenderFailure(t *testing.T) {
	db := newTestDB(t)
	record := seedCV(t, db, "", "")
	publisher := &fakePublisher{}
	h := NewRenderTaskHandler(db, newFakeObjects(), &fakeRenderer{err: errors.New("chromium crashed")}, publisher, discardLogger())

	if err := h.ProcessTask(context.Background(), renderTask(t, record)); err == nil {
		t.Fatal("expected error")
	}

	var stored database.CV
	_ = db.First(&stored, record.ID).Error
	if stored.Status != database.StatusPending {
		t.Fatalf("non-final failure must keep status pending, got %s", stored.Status)
	}
	if len(publisher.messages) != 0 {
		t.Fatal("non-final failure must not notify")
	}
}

func TestRenderTaskUnknownCV(t *testing.T) {
	db := newTestDB(t)
	task, _ := tasks.NewCVRenderTask(404, "missing", 1, "corr")
	h := NewRenderTaskHandler(db, newFakeObjects(), &fakeRenderer{}, &fakePublisher{}, discardLogger())

	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("unknown cv must be skipped, got %v", err)
	}
}

// resave 模拟一次新的保存：内容变化、修订加一、状态回到 pending。
func resave(t *testing.T, db *gorm.DB, record database.CV) {
	t.Helper()
	err := db.Model(&database.CV{}).Where("id = ?", record.ID).Updates(map[string]any{
		"title":    "Jane Roe",
		"status":   database.StatusPending,
		"revision": record.Revision + 1,
	}).Error
	if err != nil {
		t.Fatalf("resave: %v", err)
	}
}

func TestRenderTaskDiscardsResultWhenSavedDuringRender(t *testing.T) {
	db := newTestDB(t)
	objects := newFakeObjects()
	objects.objects["generated-cvs/doc-1/old.pdf"] = []byte("old")
	record := seedCV(t, db, "", "generated-cvs/doc-1/old.pdf")

	renderer := &fakeRenderer{during: func() { resave(t, db, record) }}
	publisher := &fakePublisher{}
	h := NewRenderTaskHandler(db, objects, renderer, publisher, discardLogger())

	if err := h.ProcessTask(context.Background(), renderTask(t, record)); err != nil {
		t.Fatalf("process: %v", err)
	}

	var stored database.CV
	if err := db.First(&stored, record.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != database.StatusPending || stored.PdfKey != "generated-cvs/doc-1/old.pdf" || stored.Revision != 2 {
		t.Fatalf("newer save overwritten: status=%s pdf_key=%s revision=%d", stored.Status, stored.PdfKey, stored.Revision)
	}
	if _, ok := objects.objects["generated-cvs/doc-1/old.pdf"]; !ok {
		t.Fatal("current pdf must be kept")
	}
	if len(objects.deleted) != 1 || !strings.HasPrefix(objects.deleted[0], "generated-cvs/doc-1/") || objects.deleted[0] == "generated-cvs/doc-1/old.pdf" {
		t.Fatalf("outdated upload not removed: %v", objects.deleted)
	}
	if len(objects.objects) != 1 {
		t.Fatalf("outdated upload left behind: %v", objects.objects)
	}
	if len(publisher.messages) != 0 {
		t.Fatalf("outdated render must not notify: %+v", publisher.messages)
	}
}

func TestRenderTaskSkipsOutdatedRevision(t *testing.T) {
	db := newTestDB(t)
	record := seedCV(t, db, "", "")
	task := renderTask(t, record)
	resave(t, db, record)

	renderer := &fakeRenderer{}
	publisher := &fakePublisher{}
	h := NewRenderTaskHandler(db, newFakeObjects(), renderer, publisher, discardLogger())

	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if renderer.calls != 0 || len(publisher.messages) != 0 {
		t.Fatalf("outdated task rendered=%d notified=%d", renderer.calls, len(publisher.messages))
	}
	var stored database.CV
	_ = db.First(&stored, record.ID).Error
	if stored.Status != database.StatusPending {
		t.Fatalf("status = %s", stored.Status)
	}
}

func TestRenderTaskFailureAfterNewerSaveKeepsPending(t *testing.T) {
	db := newTestDB(t)
	record := seedCV(t, db, "", "")
	renderer := &fakeRenderer{err: fmt.Errorf("template broken: %w", asynq.SkipRetry)}
	renderer.during = func() { resave(t, db, record) }
	publisher := &fakePublisher{}
	h := NewRenderTaskHandler(db, newFakeObjects(), renderer, publisher, discardLogger())

	err := h.ProcessTask(context.Background(), renderTask(t, record))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	var stored database.CV
	_ = db.First(&stored, record.ID).Error
	if stored.Status != database.StatusPending {
		t.Fatalf("status = %s", stored.Status)
	}
	if len(publisher.messages) != 0 {
		t.Fatalf("outdated failure must not notify: %+v", publisher.messages)
	}
}

func TestRenderTaskBadPayloadSkipsRetry(t *testing.T) {
	h := NewRenderTaskHandler(newTestDB(t), newFakeObjects(), &fakeRenderer{}, &fakePublisher{}, discardLogger())
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeCVRender, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestRenderTaskCorruptContentFailsImmediately(t *testing.T) {
	db := newTestDB(t)
	record := seedCV(t, db, "", "")
	if err := db.Model(&record).Update("content", datatypes.JSON(`"not a document"`)).Error; err != nil {
		t.Fatalf("corrupt content: %v", err)
	}
	publisher := &fakePublisher{}
	h := NewRenderTaskHandler(db, newFakeObjects(), &fakeRenderer{}, publisher, discardLogger())

	err := h.ProcessTask(context.Background(), renderTask(t, record))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}

	var stored database.CV
	_ = db.First(&stored, record.ID).Error
	if stored.Status != database.StatusFailed {
		t.Fatalf("status = %s", stored.Status)
	}
	if len(publisher.messages) != 1 || publisher.messages[0].Status != NotifyError || publisher.messages[0].ErrorCode != errcode.SystemError {
		t.Fatalf("notify = %+v", publisher.messages)
	}
	if publisher.messages[0].ErrorCode.Recoverable() {
		t.Fatal("system error must not be recoverable")
	}
}

func TestStatusMessage(t *testing.T) {
	tests := []struct {
		status string
		want   string
		ok     bool
	}{
		{database.StatusPending, "", false},
		{database.StatusReady, NotifyCompleted, true},
		{database.StatusFailed, NotifyError, true},
	}
	for _, tt := range tests {
		msg, ok := StatusMessage(database.CV{PublicID: "doc-1", Status: tt.status})
		if ok != tt.ok || msg.Status != tt.want {
			t.Errorf("status %s: got %+v ok=%v", tt.status, msg, ok)
		}
		if ok && msg.DocumentID != "doc-1" {
			t.Errorf("status %s: document id = %q", tt.status, msg.DocumentID)
		}
	}
}
