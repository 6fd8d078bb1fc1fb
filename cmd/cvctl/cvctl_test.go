package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const completeDocument = `{
  "personal": {"name": "Jane Mary Doe", "title": "Engineer", "email": "jane@x.com", "phone": "+1 555", "summary": "Builds things"},
  "education": [{"institution": "MIT", "degree": "BSc", "startDate": "2010-09", "endDate": "2014-06"}],
  "experience": [{"company": "Acme", "position": "Dev", "startDate": "2014-07", "currentlyWorking": true}],
  "skills": [{"name": "Go", "level": "Expert"}]
}`

func newTestFs(t *testing.T, doc string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/cv.json", []byte(doc), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	return fs
}

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(fs)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCheckCompleteDocument(t *testing.T) {
	out, err := execute(t, newTestFs(t, completeDocument), "check", "/cv.json")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "yes") || !strings.Contains(out, "Jane_Mary_Doe_CV.pdf") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestCheckReportsProblems(t *testing.T) {
	fs := newTestFs(t, `{"personal": {"name": "Jane", "email": "not-an-email"}}`)
	out, err := execute(t, fs, "check", "/cv.json")
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"missing personal.title", "missing skills", "personal.email"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSavePrintsRemoteID(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotID = r.FormValue("documentId")
		_, _ = w.Write([]byte(`{"id":"doc-1","message":"saved"}`))
	}))
	defer srv.Close()

	out, err := execute(t, newTestFs(t, completeDocument), "--api", srv.URL, "save", "--id", "doc-1", "/cv.json")
	if err != nil {
		t.Fatalf("save: %v\n%s", err, out)
	}
	if gotID != "doc-1" {
		t.Fatalf("documentId = %q", gotID)
	}
	if !strings.Contains(out, "CV saved successfully!") || !strings.Contains(out, "doc-1") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestSaveRefusesIncompleteDocument(t *testing.T) {
	fs := newTestFs(t, `{"personal": {"name": "Jane"}}`)
	if _, err := execute(t, fs, "--api", "http://127.0.0.1:1", "save", "/cv.json"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSaveShowsServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"personal.email: must be a valid email address"}`))
	}))
	defer srv.Close()

	_, err := execute(t, newTestFs(t, completeDocument), "--api", srv.URL, "save", "/cv.json")
	if err == nil || err.Error() != "personal.email: must be a valid email address" {
		t.Fatalf("err = %v", err)
	}
}

func TestExportWritesPDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	fs := newTestFs(t, completeDocument)
	out, err := execute(t, fs, "--api", srv.URL, "export", "-o", "/out", "/cv.json")
	if err != nil {
		t.Fatalf("export: %v\n%s", err, out)
	}
	data, err := afero.ReadFile(fs, "/out/Jane_Mary_Doe_CV.pdf")
	if err != nil {
		t.Fatalf("read pdf: %v", err)
	}
	if string(data) != "%PDF-1.7" {
		t.Fatalf("pdf = %q", data)
	}
	if !strings.Contains(out, "PDF downloaded successfully!") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
