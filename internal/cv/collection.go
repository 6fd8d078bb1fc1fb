package cv

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

var (
	ErrUnknownSection  = errors.New("unknown section")
	ErrNotCollection   = errors.New("section is not a collection")
	ErrIndexOutOfRange = errors.New("entry index out of range")
	ErrUnknownField    = errors.New("unknown field")
	ErrFieldType       = errors.New("field value has wrong type")
)

// collection 把某个集合的 add/entry/remove 绑定到 Document 上的具体切片，
// 七个集合共用同一套位置语义。
type collection struct {
	length func(d *Document) int
	add    func(d *Document)
	entry  func(d *Document, index int) any
	remove func(d *Document, index int)
}

func bind[E any](slice func(d *Document) *[]E, blank func() E) collection {
	return collection{
		length: func(d *Document) int { return len(*slice(d)) },
		add: func(d *Document) {
			*slice(d) = append(*slice(d), blank())
		},
		entry: func(d *Document, index int) any {
			return &(*slice(d))[index]
		},
		remove: func(d *Document, index int) {
			*slice(d) = slices.Delete(*slice(d), index, index+1)
		},
	}
}

var collections = map[Section]collection{
	SectionEducation: bind(func(d *Document) *[]Education { return &d.Education },
		func() Education { return Education{} }),
	SectionExperience: bind(func(d *Document) *[]Experience { return &d.Experience },
		func() Experience { return Experience{Achievements: []string{}} }),
	SectionSkills: bind(func(d *Document) *[]Skill { return &d.Skills },
		func() Skill { return Skill{} }),
	SectionProjects: bind(func(d *Document) *[]Project { return &d.Projects },
		func() Project { return Project{} }),
	SectionLanguages: bind(func(d *Document) *[]Language { return &d.Languages },
		func() Language { return Language{} }),
	SectionCertifications: bind(func(d *Document) *[]Certification { return &d.Certifications },
		func() Certification { return Certification{} }),
	SectionReferences: bind(func(d *Document) *[]Reference { return &d.References },
		func() Reference { return Reference{} }),
}

func lookup(section Section) (collection, error) {
	if c, ok := collections[section]; ok {
		return c, nil
	}
	if section == SectionPersonal {
		return collection{}, fmt.Errorf("%w: %s", ErrNotCollection, section)
	}
	return collection{}, fmt.Errorf("%w: %q", ErrUnknownSection, section)
}

// Len 返回集合当前的条目数。
func (d *Document) Len(section Section) int {
	c, err := lookup(section)
	if err != nil {
		return 0
	}
	return c.length(d)
}

// Add 在集合末尾追加一个字段全为默认值的条目。
func (d *Document) Add(section Section) error {
	c, err := lookup(section)
	if err != nil {
		return err
	}
	c.add(d)
	return nil
}

// Update 按 JSON 字段名修改 index 处条目的一个字段。越界返回 ErrIndexOutOfRange，状态不变。
func (d *Document) Update(section Section, index int, field string, value any) error {
	c, err := lookup(section)
	if err != nil {
		return err
	}
	if index < 0 || index >= c.length(d) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, section, index)
	}
	return setField(c.entry(d, index), field, value)
}

// Remove 删除 index 处的条目，之后的条目前移一位，内容不变。
func (d *Document) Remove(section Section, index int) error {
	c, err := lookup(section)
	if err != nil {
		return err
	}
	if index < 0 || index >= c.length(d) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, section, index)
	}
	c.remove(d, index)
	return nil
}

// SetPersonalField 按 JSON 字段名修改个人信息。头像不在此列，见 Personal.ProfileImage。
func (d *Document) SetPersonalField(field string, value string) error {
	return setField(&d.Personal, field, value)
}

// fieldIndexes 缓存每个条目类型的 json 名到结构体字段下标的映射。
var fieldIndexes sync.Map // reflect.Type -> map[string]int

func fieldIndex(t reflect.Type) map[string]int {
	if cached, ok := fieldIndexes.Load(t); ok {
		return cached.(map[string]int)
	}
	index := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		index[name] = i
	}
	fieldIndexes.Store(t, index)
	return index
}

func setField(target any, field string, value any) error {
	rv := reflect.ValueOf(target).Elem()
	i, ok := fieldIndex(rv.Type())[field]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, rv.Type().Name(), field)
	}
	fv := rv.Field(i)

	// 列表字段复制一份，调用方之后修改自己的切片不会影响文档。
	if list, ok := value.([]string); ok {
		value = append([]string{}, list...)
	}
	val := reflect.ValueOf(value)
	if !val.IsValid() || !val.Type().AssignableTo(fv.Type()) {
		return fmt.Errorf("%w: %s.%s wants %s", ErrFieldType, rv.Type().Name(), field, fv.Type())
	}
	fv.Set(val)
	return nil
}
