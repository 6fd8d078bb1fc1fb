package cv

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// Sanitize 去掉所有文本字段中的 HTML 标签，返回新文档，原文档不变。
// bluemonday 会转义实体，这里再反转义一次，存储的是纯文本，HTML 转义交给渲染模板。
func Sanitize(d Document) Document {
	out := d.Clone()

	p := &out.Personal
	for _, f := range []*string{
		&p.Name, &p.Title, &p.Email, &p.Phone, &p.Address, &p.City, &p.Country, &p.PostalCode,
		&p.DateOfBirth, &p.Nationality, &p.DrivingLicense, &p.Summary, &p.LinkedIn, &p.GitHub, &p.Portfolio,
	} {
		*f = clean(*f)
	}
	for i := range out.Education {
		e := &out.Education[i]
		cleanAll(&e.Institution, &e.Degree, &e.Field, &e.Location, &e.StartDate, &e.EndDate, &e.GPA, &e.Description)
	}
	for i := range out.Experience {
		e := &out.Experience[i]
		cleanAll(&e.Company, &e.Position, &e.Location, &e.StartDate, &e.EndDate, &e.Description)
		for j := range e.Achievements {
			e.Achievements[j] = clean(e.Achievements[j])
		}
	}
	for i := range out.Skills {
		s := &out.Skills[i]
		cleanAll(&s.Name, &s.Level, &s.Category)
	}
	for i := range out.Projects {
		pr := &out.Projects[i]
		cleanAll(&pr.Name, &pr.Technologies, &pr.Description, &pr.StartDate, &pr.EndDate,
			&pr.LiveLink, &pr.GitHubLink, &pr.Role, &pr.TeamSize)
	}
	for i := range out.Languages {
		l := &out.Languages[i]
		cleanAll(&l.Name, &l.Proficiency, &l.Level)
	}
	for i := range out.Certifications {
		c := &out.Certifications[i]
		cleanAll(&c.Name, &c.Issuer, &c.IssueDate, &c.ExpiryDate, &c.CredentialID, &c.CredentialURL)
	}
	for i := range out.References {
		r := &out.References[i]
		cleanAll(&r.Name, &r.Position, &r.Company, &r.Email, &r.Phone, &r.Relationship)
	}
	return out
}

func cleanAll(fields ...*string) {
	for _, f := range fields {
		*f = clean(*f)
	}
}

func clean(s string) string {
	if s == "" {
		return s
	}
	return html.UnescapeString(strictPolicy.Sanitize(s))
}
