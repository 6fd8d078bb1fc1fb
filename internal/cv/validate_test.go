package cv

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestValidateAcceptsCompleteDocument(t *testing.T) {
	d := completeDocument()
	_ = d.Update(SectionEducation, 0, "startDate", "2015-09")
	_ = d.Update(SectionEducation, 0, "endDate", "2019-06-30")
	d.Personal.LinkedIn = "https://linkedin.com/in/jane"

	if err := Validate(d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateReportsFieldPaths(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Document)
		field  string
	}{
		{"bad email", func(d *Document) { d.Personal.Email = "not-an-email" }, "personal.email"},
		{"bad url", func(d *Document) { d.Personal.GitHub = "github" }, "personal.github"},
		{"bad date", func(d *Document) { _ = d.Update(SectionExperience, 0, "startDate", "May 2020") }, "experience[0].startDate"},
		{"end before start", func(d *Document) {
			_ = d.Update(SectionExperience, 0, "startDate", "2020-05")
			_ = d.Update(SectionExperience, 0, "endDate", "2019-01")
		}, "experience[0].endDate"},
		{"expiry before issue", func(d *Document) {
			_ = d.Add(SectionCertifications)
			_ = d.Update(SectionCertifications, 0, "issueDate", "2022-01-01")
			_ = d.Update(SectionCertifications, 0, "expiryDate", "2021-01-01")
		}, "certifications[0].expiryDate"},
		{"reference email", func(d *Document) {
			_ = d.Add(SectionReferences)
			_ = d.Update(SectionReferences, 0, "email", "bob@")
		}, "references[0].email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := completeDocument()
			tt.mutate(&d)

			err := Validate(d)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Fields[0].Field != tt.field {
				t.Fatalf("field = %q, want %q (%v)", verr.Fields[0].Field, tt.field, err)
			}
			if !strings.Contains(err.Error(), tt.field+": ") {
				t.Fatalf("message %q should name the field", err.Error())
			}
		})
	}
}

func TestValidateCurrentEntryIgnoresEndDate(t *testing.T) {
	d := completeDocument()
	_ = d.Update(SectionExperience, 0, "startDate", "2020-05")
	_ = d.Update(SectionExperience, 0, "endDate", "2019-01")
	_ = d.Update(SectionExperience, 0, "currentlyWorking", true)

	if err := Validate(d); err != nil {
		t.Fatalf("stale end date of a current job must be ignored: %v", err)
	}
}

func TestSanitizeStripsMarkup(t *testing.T) {
	d := completeDocument()
	d.Personal.Summary = `<script>alert(1)</script>Builds <b>fast</b> systems & tools`
	_ = d.Update(SectionExperience, 0, "achievements", []string{`<img src=x onerror=1>Led team`})

	out := Sanitize(d)
	if out.Personal.Summary != "Builds fast systems & tools" {
		t.Fatalf("summary = %q", out.Personal.Summary)
	}
	if out.Experience[0].Achievements[0] != "Led team" {
		t.Fatalf("achievement = %q", out.Experience[0].Achievements[0])
	}
	if d.Personal.Summary == out.Personal.Summary {
		t.Fatal("Sanitize must not modify its input")
	}
}

func TestCheckImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	img, err := CheckImage("me.png", png)
	if err != nil {
		t.Fatalf("png rejected: %v", err)
	}
	if img.ContentType != "image/png" {
		t.Fatalf("content type = %q", img.ContentType)
	}

	if _, err := CheckImage("me.txt", []byte("hello world")); !errors.Is(err, ErrImageType) {
		t.Fatalf("expected ErrImageType, got %v", err)
	}
	if _, err := CheckImage("empty.png", nil); !errors.Is(err, ErrImageEmpty) {
		t.Fatalf("expected ErrImageEmpty, got %v", err)
	}
	big := append(append([]byte{}, png...), bytes.Repeat([]byte{0}, MaxImageBytes)...)
	if _, err := CheckImage("big.png", big); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestParseSection(t *testing.T) {
	if s, err := ParseSection("skills"); err != nil || s != SectionSkills {
		t.Fatalf("got %q, %v", s, err)
	}
	if _, err := ParseSection("hobbies"); !errors.Is(err, ErrUnknownSection) {
		t.Fatalf("expected ErrUnknownSection, got %v", err)
	}
	if SectionPersonal.IsCollection() || !SectionReferences.IsCollection() {
		t.Fatal("IsCollection mismatch")
	}
}
