package pdf

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"cvbuilder/internal/cv"
)

// cvTemplateString 是导出 PDF 用的单页 A4 模板，结构与前端预览保持一致。
const cvTemplateString = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>{{with .Personal.Name}}{{.}}{{else}}CV{{end}}</title>
    <style>
        @page { size: A4; margin: 16mm 14mm; }
        body { margin: 0; font-family: 'Helvetica Neue', Arial, sans-serif; font-size: 10.5pt; color: #1f2933; }
        header { display: flex; gap: 16px; align-items: center; border-bottom: 2px solid #2563eb; padding-bottom: 10px; }
        header img { width: 88px; height: 88px; border-radius: 50%; object-fit: cover; }
        h1 { margin: 0; font-size: 22pt; }
        h2 { font-size: 12pt; color: #2563eb; text-transform: uppercase; letter-spacing: .06em; margin: 18px 0 6px; }
        .subtitle { font-size: 12pt; color: #52606d; }
        .contact { font-size: 9pt; color: #52606d; }
        .contact span + span::before { content: " · "; }
        .entry { margin-bottom: 8px; page-break-inside: avoid; }
        .entry-head { display: flex; justify-content: space-between; font-weight: 600; }
        .period { font-weight: 400; color: #52606d; white-space: nowrap; }
        .muted { color: #52606d; }
        ul { margin: 4px 0 0 18px; padding: 0; }
        .tags span { display: inline-block; border: 1px solid #cbd2d9; border-radius: 3px; padding: 1px 6px; margin: 0 4px 4px 0; }
    </style>
</head>
<body>
<header>
    {{with .ImageDataURI}}<img src="{{.}}" alt="">{{end}}
    <div>
        <h1>{{.Personal.Name}}</h1>
        {{with .Personal.Title}}<div class="subtitle">{{.}}</div>{{end}}
        <div class="contact">
            {{with .Personal.Email}}<span>{{.}}</span>{{end}}
            {{with .Personal.Phone}}<span>{{.}}</span>{{end}}
            {{with .Location}}<span>{{.}}</span>{{end}}
            {{with .Personal.LinkedIn}}<span>{{.}}</span>{{end}}
            {{with .Personal.GitHub}}<span>{{.}}</span>{{end}}
            {{with .Personal.Portfolio}}<span>{{.}}</span>{{end}}
        </div>
    </div>
</header>

{{with .Personal.Summary}}<h2>Summary</h2><p>{{.}}</p>{{end}}

{{if .Experience}}<h2>Experience</h2>
{{range .Experience}}<div class="entry">
    <div class="entry-head"><span>{{.Position}}{{with .Company}} · {{.}}{{end}}</span><span class="period">{{period .StartDate (endDate .EndDate .CurrentlyWorking)}}</span></div>
    {{with .Location}}<div class="muted">{{.}}</div>{{end}}
    {{with .Description}}<p>{{.}}</p>{{end}}
    {{with .Achievements}}<ul>{{range .}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>{{end}}{{end}}

{{if .Education}}<h2>Education</h2>
{{range .Education}}<div class="entry">
    <div class="entry-head"><span>{{.Degree}}{{with .Field}}, {{.}}{{end}}</span><span class="period">{{period .StartDate (endDate .EndDate .CurrentlyStudying)}}</span></div>
    <div class="muted">{{.Institution}}{{with .Location}} · {{.}}{{end}}{{with .GPA}} · GPA {{.}}{{end}}</div>
    {{with .Description}}<p>{{.}}</p>{{end}}
</div>{{end}}{{end}}

{{if .Skills}}<h2>Skills</h2>
<div class="tags">{{range .Skills}}<span>{{.Name}}{{with .Level}} ({{.}}){{end}}</span>{{end}}</div>{{end}}

{{if .Projects}}<h2>Projects</h2>
{{range .Projects}}<div class="entry">
    <div class="entry-head"><span>{{.Name}}{{with .Role}} · {{.}}{{end}}</span><span class="period">{{period .StartDate .EndDate}}</span></div>
    {{with .Technologies}}<div class="muted">{{.}}</div>{{end}}
    {{with .Description}}<p>{{.}}</p>{{end}}
    {{with .LiveLink}}<div class="muted">{{.}}</div>{{end}}
    {{with .GitHubLink}}<div class="muted">{{.}}</div>{{end}}
</div>{{end}}{{end}}

{{if .Certifications}}<h2>Certifications</h2>
{{range .Certifications}}<div class="entry">
    <div class="entry-head"><span>{{.Name}}{{with .Issuer}} · {{.}}{{end}}</span><span class="period">{{.IssueDate}}</span></div>
    {{with .CredentialID}}<div class="muted">Credential {{.}}</div>{{end}}
</div>{{end}}{{end}}

{{if .Languages}}<h2>Languages</h2>
<div class="tags">{{range .Languages}}<span>{{.Name}}{{with .Proficiency}} ({{.}}){{end}}</span>{{end}}</div>{{end}}

{{if .References}}<h2>References</h2>
{{range .References}}<div class="entry">
    <div class="entry-head"><span>{{.Name}}</span></div>
    <div class="muted">{{.Position}}{{with .Company}} · {{.}}{{end}}</div>
    <div class="muted">{{.Email}}{{with .Phone}} · {{.}}{{end}}</div>
</div>{{end}}{{end}}
</body>
</html>
`

var cvTemplate = template.Must(template.New("cv").Funcs(template.FuncMap{
	"endDate": cv.DisplayEndDate,
	"period":  period,
}).Parse(cvTemplateString))

type templateData struct {
	cv.Document
	Location string
	// ImageDataURI 是内联的头像 data URI，template.URL 避免被 html/template 过滤成 #ZgotmplZ。
	ImageDataURI template.URL
}

// BuildHTML 把文档渲染成完整的 HTML 页面。imageDataURI 为空时不输出头像。
func BuildHTML(doc cv.Document, imageDataURI string) (string, error) {
	data := templateData{
		Document: doc,
		Location: joinNonEmpty(", ", doc.Personal.City, doc.Personal.Country),
	}
	if strings.HasPrefix(imageDataURI, "data:image/") {
		data.ImageDataURI = template.URL(imageDataURI)
	}

	var buf bytes.Buffer
	if err := cvTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute cv template: %w", err)
	}
	return buf.String(), nil
}

func period(start, end string) string {
	switch {
	case start == "" && end == "":
		return ""
	case start == "":
		return end
	case end == "":
		return start
	default:
		return start + " – " + end
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
