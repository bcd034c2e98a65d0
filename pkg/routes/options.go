package routes

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/debargha2001/ytdlx/pkg/yterr"
)

// Options is the option object accepted by every product.
type Options struct {
	Query      string `json:"query" form:"query" validate:"required,min=2"`
	Output     string `json:"output,omitempty" form:"output"`
	UseTor     bool   `json:"useTor,omitempty" form:"useTor"`
	Stream     bool   `json:"stream,omitempty" form:"stream"`
	Verbose    bool   `json:"verbose,omitempty" form:"verbose"`
	Metadata   bool   `json:"metadata,omitempty" form:"metadata"`
	Resolution string `json:"resolution,omitempty" form:"resolution"`
	Filter     string `json:"filter,omitempty" form:"filter"`
}

// QueryOptions is the option object accepted by lookup commands.
type QueryOptions struct {
	Query   string `json:"query" form:"query" validate:"required,min=2"`
	UseTor  bool   `json:"useTor,omitempty" form:"useTor"`
	Verbose bool   `json:"verbose,omitempty" form:"verbose"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks opts against the schema of p.
func (p Product) Validate(opts Options) error {
	if !p.Valid() {
		return yterr.Validation([]yterr.FieldIssue{{Field: "product", Rule: "oneof", Message: "unknown product " + string(p)}})
	}

	issues := structIssues(validate.Struct(opts))

	if p.Custom() {
		issues = append(issues, varIssues("resolution", opts.Resolution, "required,oneof="+strings.Join(p.Resolutions(), " "))...)
	} else if opts.Resolution != "" {
		issues = append(issues, yterr.FieldIssue{Field: "resolution", Rule: "excluded", Message: "only Custom products accept a resolution"})
	}
	issues = append(issues, varIssues("filter", opts.Filter, "omitempty,oneof="+strings.Join(p.Filters(), " "))...)

	if len(issues) > 0 {
		return yterr.Validation(issues)
	}
	return nil
}

// Validate checks lookup options.
func (o QueryOptions) Validate() error {
	if issues := structIssues(validate.Struct(o)); len(issues) > 0 {
		return yterr.Validation(issues)
	}
	return nil
}

func structIssues(err error) []yterr.FieldIssue {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	issues := make([]yterr.FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, issue(fe.Field(), fe))
	}
	return issues
}

func varIssues(field string, value any, tag string) []yterr.FieldIssue {
	var verrs validator.ValidationErrors
	if !errors.As(validate.Var(value, tag), &verrs) {
		return nil
	}
	issues := make([]yterr.FieldIssue, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, issue(field, fe))
	}
	return issues
}

func issue(field string, fe validator.FieldError) yterr.FieldIssue {
	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "min":
		msg = "must be at least " + fe.Param() + " characters"
	case "oneof":
		msg = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
		if field == "resolution" {
			msg = "no matching format for " + fmt.Sprint(fe.Value()) + ", " + msg
		}
	default:
		msg = "failed " + fe.Tag()
	}
	return yterr.FieldIssue{Field: field, Rule: fe.Tag(), Message: msg}
}
