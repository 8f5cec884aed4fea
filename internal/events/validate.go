package events

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// PageViewInput is the tracking payload sent by the browser snippet.
type PageViewInput struct {
	Type             string `json:"type" validate:"required,eq=pageview"`
	SiteID           string `json:"siteId" validate:"required,max=64"`
	VisitorID        string `json:"visitorId" validate:"required"`
	SessionID        string `json:"sessionId" validate:"required"`
	SessionStartTime int64  `json:"sessionStartTime" validate:"omitempty,gt=0"`
	URL              string `json:"url" validate:"required,url"`
	Path             string `json:"path" validate:"required"`
	Title            string `json:"title"`
	Referrer         string `json:"referrer"`
	Language         string `json:"language"`
	ScreenWidth      int    `json:"width" validate:"omitempty,gte=0"`
	ScreenHeight     int    `json:"height" validate:"omitempty,gte=0"`
	UserAgent        string `json:"userAgent" validate:"required"`
}

// InvalidInputError carries per-field validation messages keyed by the
// payload's JSON field name.
type InvalidInputError struct {
	Fields map[string]string
}

func (e *InvalidInputError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid input"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	return fmt.Sprintf("invalid input: %s", strings.Join(names, ", "))
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ParsePageViewInput decodes and validates a raw tracking payload. It
// returns *InvalidInputError for anything a client could fix.
func ParsePageViewInput(body []byte) (*PageViewInput, error) {
	var input PageViewInput
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, &InvalidInputError{Fields: map[string]string{"body": "must be a valid JSON object"}}
	}

	fields := make(map[string]string)
	if err := getValidator().Struct(&input); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, fmt.Errorf("validating page view input: %w", err)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessage(fe)
		}
	}

	// Visitor and session identifiers must be UUIDs so that malformed
	// client state never pollutes session stitching.
	if input.VisitorID != "" {
		if _, err := uuid.Parse(input.VisitorID); err != nil {
			fields["visitorId"] = "must be a valid UUID"
		}
	}
	if input.SessionID != "" {
		if _, err := uuid.Parse(input.SessionID); err != nil {
			fields["sessionId"] = "must be a valid UUID"
		}
	}

	if len(fields) > 0 {
		return nil, &InvalidInputError{Fields: fields}
	}
	return &input, nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "eq":
		return fmt.Sprintf("must be %q", fe.Param())
	case "url":
		return "must be a valid absolute URL"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return "must be a positive number"
	case "gte":
		return "must not be negative"
	default:
		return "is invalid"
	}
}
