package cv

import "fmt"

// Section 标识文档中的一个部分：个人信息或某个集合。
type Section string

const (
	SectionPersonal       Section = "personal"
	SectionEducation      Section = "education"
	SectionExperience     Section = "experience"
	SectionSkills         Section = "skills"
	SectionProjects       Section = "projects"
	SectionLanguages      Section = "languages"
	SectionCertifications Section = "certifications"
	SectionReferences     Section = "references"
)

// Sections 按编辑器侧边栏的顺序列出全部部分。
var Sections = []Section{
	SectionPersonal,
	SectionEducation,
	SectionExperience,
	SectionSkills,
	SectionProjects,
	SectionLanguages,
	SectionCertifications,
	SectionReferences,
}

// CollectionSections 是七个有序集合，也是 multipart 中的 JSON 数组字段。
var CollectionSections = Sections[1:]

func (s Section) Valid() bool {
	for _, known := range Sections {
		if s == known {
			return true
		}
	}
	return false
}

// IsCollection 对 personal 以外的部分返回 true。
func (s Section) IsCollection() bool {
	return s != SectionPersonal && s.Valid()
}

func ParseSection(raw string) (Section, error) {
	s := Section(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSection, raw)
	}
	return s, nil
}
