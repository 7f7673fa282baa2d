package validators

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/anonto42/devforum/backend/internal/models"
	"github.com/go-playground/validator/v10"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func ValidPassword(password string) bool {
	return utf8.RuneCountInString(password) >= 6
}

func ValidDisplayName(name string) bool {
	return trimmedLen(name) >= 2
}

func ValidPostTitle(title string) bool {
	n := trimmedLen(title)
	return n >= 5 && n <= 200
}

func ValidPostContent(content string) bool {
	return trimmedLen(content) >= 10
}

func ValidComment(comment string) bool {
	n := trimmedLen(comment)
	return n >= 1 && n <= 500
}

func trimmedLen(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

// messages maps a struct field (Type.Field) to the message shown next to it.
var messages = map[string]string{
	"CreatePostRequest.Title":       "Title must be between 5 and 200 characters",
	"CreatePostRequest.Content":     "Content must be at least 10 characters",
	"CreatePostRequest.Tags":        "Please select at least one tag",
	"CreateCommentRequest.Content":  "Comment must be between 1 and 500 characters",
	"SignUpRequest.Email":           "Please enter a valid email address",
	"SignUpRequest.Password":        "Password must be at least 6 characters",
	"SignUpRequest.DisplayName":     "Display name must be at least 2 characters",
	"SignInRequest.Email":           "Please enter a valid email address",
	"SignInRequest.Password":        "Password is required",
	"UpdateProfileRequest.PhotoURL": "Photo URL must be a valid URL",
	"UpdateProfileRequest.Bio":      "Bio must be at most 500 characters",
}

// ValidationError carries one message per offending field, keyed by its JSON name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// CustomValidator adapts go-playground/validator to echo and to the services.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a validator with the forum specific tags registered
func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "trimmin", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && trimmedLen(fl.Field().String()) >= n
	})
	mustRegister(v, "trimmax", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Param())
		return err == nil && trimmedLen(fl.Field().String()) <= n
	})
	mustRegister(v, "forumtag", func(fl validator.FieldLevel) bool {
		return models.IsKnownTag(fl.Field().String())
	})
	mustRegister(v, "email", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	})

	return &CustomValidator{validator: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validators: register %q: %v", tag, err))
	}
}

// Validate implements echo.Validator.
func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		field, key := fieldKey(fe)
		if _, seen := out.Fields[field]; seen {
			continue
		}
		if msg, ok := messages[key]; ok {
			out.Fields[field] = msg
		} else {
			out.Fields[field] = fmt.Sprintf("%s failed the %q rule", field, fe.Tag())
		}
	}
	return out
}

// fieldKey returns the JSON field name and the Type.Field key into messages. Errors
// raised inside a dive (tags[2]) are reported against the slice itself.
func fieldKey(fe validator.FieldError) (string, string) {
	ns := fe.StructNamespace()
	if i := strings.IndexByte(ns, '['); i >= 0 {
		ns = ns[:i]
	}
	field := fe.Field()
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	return field, ns
}

var defaultValidator = NewValidator()

// Struct validates i with the shared validator.
func Struct(i interface{}) error {
	return defaultValidator.Validate(i)
}
