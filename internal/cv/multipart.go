package cv

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// multipart 字段名：每个顶层字段一个 part，头像为文件 part。
const (
	PartPersonal     = "personal"
	PartProfileImage = "profileImage"
	PartDocumentID   = "documentId"
)

var ErrMissingPart = errors.New("missing multipart part")

// WriteMultipart 把文档的每个顶层字段写成一个 part：结构化字段为 JSON 文本，头像为二进制文件。
// 调用方负责 Close writer。
func WriteMultipart(w *multipart.Writer, d Document) error {
	d = d.Clone()

	if err := writeJSONField(w, PartPersonal, d.Personal); err != nil {
		return err
	}
	fields := []struct {
		section Section
		value   any
	}{
		{SectionEducation, d.Education},
		{SectionExperience, d.Experience},
		{SectionSkills, d.Skills},
		{SectionProjects, d.Projects},
		{SectionLanguages, d.Languages},
		{SectionCertifications, d.Certifications},
		{SectionReferences, d.References},
	}
	for _, f := range fields {
		if err := writeJSONField(w, string(f.section), f.value); err != nil {
			return err
		}
	}

	img := d.Personal.ProfileImage
	if img == nil || len(img.Data) == 0 {
		return nil
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, PartProfileImage, imageFilename(img)))
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create %s part: %w", PartProfileImage, err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("write %s part: %w", PartProfileImage, err)
	}
	return nil
}

func writeJSONField(w *multipart.Writer, name string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", name, err)
	}
	if err := w.WriteField(name, string(data)); err != nil {
		return fmt.Errorf("write %s part: %w", name, err)
	}
	return nil
}

func imageFilename(img *Image) string {
	name := strings.TrimSpace(img.Filename)
	if name == "" {
		return "profile" + ImageExtension(img.ContentType)
	}
	return name
}

// ReadMultipart 是 WriteMultipart 的逆过程。personal 必须存在；缺失的集合按空集合处理。
func ReadMultipart(form *multipart.Form) (Document, error) {
	d := New()

	raw, ok := firstValue(form, PartPersonal)
	if !ok {
		return Document{}, fmt.Errorf("%w: %s", ErrMissingPart, PartPersonal)
	}
	if err := json.Unmarshal([]byte(raw), &d.Personal); err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", PartPersonal, err)
	}

	targets := map[Section]any{
		SectionEducation:      &d.Education,
		SectionExperience:     &d.Experience,
		SectionSkills:         &d.Skills,
		SectionProjects:       &d.Projects,
		SectionLanguages:      &d.Languages,
		SectionCertifications: &d.Certifications,
		SectionReferences:     &d.References,
	}
	for section, target := range targets {
		raw, ok := firstValue(form, string(section))
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := json.Unmarshal([]byte(raw), target); err != nil {
			return Document{}, fmt.Errorf("decode %s: %w", section, err)
		}
	}

	if files := form.File[PartProfileImage]; len(files) > 0 {
		img, err := readImagePart(files[0])
		if err != nil {
			return Document{}, err
		}
		d.Personal.ProfileImage = img
	}

	d.Normalize()
	return d, nil
}

// DocumentID 返回表单中携带的已有文档 ID（首次保存时为空）。
func DocumentID(form *multipart.Form) string {
	id, _ := firstValue(form, PartDocumentID)
	return strings.TrimSpace(id)
}

func firstValue(form *multipart.Form, name string) (string, bool) {
	values := form.Value[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func readImagePart(fh *multipart.FileHeader) (*Image, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s part: %w", PartProfileImage, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s part: %w", PartProfileImage, err)
	}
	return &Image{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
