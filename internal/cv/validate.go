package cv

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var documentValidator *validator.Validate

func init() {
	documentValidator = validator.New(validator.WithRequiredStructEnabled())

	documentValidator.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = documentValidator.RegisterValidation("cvdate", validateCVDate)
	documentValidator.RegisterStructValidation(educationStructValidation, Education{})
	documentValidator.RegisterStructValidation(experienceStructValidation, Experience{})
	documentValidator.RegisterStructValidation(projectStructValidation, Project{})
	documentValidator.RegisterStructValidation(certificationStructValidation, Certification{})
}

// 表单的 month 控件给出 yyyy-mm，date 控件给出 yyyy-mm-dd，两者都接受。
var cvDateLayouts = []string{"2006-01-02", "2006-01"}

func parseCVDate(value string) (time.Time, bool) {
	for _, layout := range cvDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func validateCVDate(fl validator.FieldLevel) bool {
	_, ok := parseCVDate(fl.Field().String())
	return ok
}

func reportEndBeforeStart(sl validator.StructLevel, start, end, field string) {
	if start == "" || end == "" {
		return
	}
	s, okStart := parseCVDate(start)
	e, okEnd := parseCVDate(end)
	if !okStart || !okEnd {
		return
	}
	if e.Before(s) {
		sl.ReportError(end, field, field, "after_start", "")
	}
}

func educationStructValidation(sl validator.StructLevel) {
	education := sl.Current().Interface().(Education)
	if education.CurrentlyStudying {
		return
	}
	reportEndBeforeStart(sl, education.StartDate, education.EndDate, "endDate")
}

func experienceStructValidation(sl validator.StructLevel) {
	experience := sl.Current().Interface().(Experience)
	if experience.CurrentlyWorking {
		return
	}
	reportEndBeforeStart(sl, experience.StartDate, experience.EndDate, "endDate")
}

func projectStructValidation(sl validator.StructLevel) {
	project := sl.Current().Interface().(Project)
	reportEndBeforeStart(sl, project.StartDate, project.EndDate, "endDate")
}

func certificationStructValidation(sl validator.StructLevel) {
	cert := sl.Current().Interface().(Certification)
	reportEndBeforeStart(sl, cert.IssueDate, cert.ExpiryDate, "expiryDate")
}

// FieldError 描述一个字段的校验失败。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 汇总文档的全部字段错误，Error() 用于直接展示给用户。
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}

// Validate 校验字段格式（邮箱、链接、日期以及起止先后）。不检查完整性，完整性见 IsComplete。
func Validate(d Document) error {
	err := documentValidator.Struct(d)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("validate document: %w", err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(validationErrs))}
	for _, fe := range validationErrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		out.Fields = append(out.Fields, FieldError{Field: field, Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "cvdate":
		return "must be a date in YYYY-MM or YYYY-MM-DD format"
	case "after_start":
		return "must not be before the start date"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
