package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"forensicvault/pkg/domain"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateRecord checks struct tags and reports failures wrapped in
// domain.ErrValidation, one clause per offending field.
func (s *Service) validateRecord(record any) error {
	err := s.validate.Struct(record)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	clauses := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			clauses = append(clauses, fe.Field()+" is required")
		case "oneof":
			clauses = append(clauses, fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fmt.Sprint(fe.Value())))
		case "max":
			clauses = append(clauses, fmt.Sprintf("%s exceeds %s characters", fe.Field(), fe.Param()))
		default:
			clauses = append(clauses, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(clauses, "; "))
}
