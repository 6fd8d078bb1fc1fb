package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"cvbuilder/internal/cv"
)

// loadDocument 读取 JSON 文档，imagePath 非空时附加头像。
func loadDocument(fs afero.Fs, path, imagePath string) (cv.Document, error) {
	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return cv.Document{}, fmt.Errorf("read document: %w", err)
	}

	doc := cv.New()
	if err := json.Unmarshal(raw, &doc); err != nil {
		return cv.Document{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	doc.Normalize()

	if imagePath == "" {
		return doc, nil
	}
	data, err := afero.ReadFile(fs, imagePath)
	if err != nil {
		return cv.Document{}, fmt.Errorf("read image: %w", err)
	}
	img, err := cv.CheckImage(filepath.Base(imagePath), data)
	if err != nil {
		return cv.Document{}, err
	}
	doc.Personal.ProfileImage = img
	return doc, nil
}

// missingRequirements 列出导致文档不完整的项，顺序与表单一致。
func missingRequirements(doc cv.Document) []string {
	var missing []string
	p := doc.Personal
	for _, f := range []struct {
		name  string
		value string
	}{
		{"personal.name", p.Name},
		{"personal.title", p.Title},
		{"personal.email", p.Email},
		{"personal.phone", p.Phone},
		{"personal.summary", p.Summary},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(doc.Education) == 0 {
		missing = append(missing, "education")
	}
	if len(doc.Experience) == 0 {
		missing = append(missing, "experience")
	}
	if len(doc.Skills) == 0 {
		missing = append(missing, "skills")
	}
	return missing
}
