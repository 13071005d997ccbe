package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"libris/pkg/logger"
	"libris/pkg/model"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return v.Message
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

func (v ValidationErrors) Messages() []string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Message)
	}
	return messages
}

type LoanValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewLoanValidator(log *logger.Logger) *LoanValidator {
	return &LoanValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *LoanValidator) ValidateRequest(req *model.LoanRequest) error {
	return v.translate(v.validate.Struct(req))
}

func (v *LoanValidator) ValidateReturn(ret *model.LoanReturn) error {
	return v.translate(v.validate.Struct(ret))
}

func (v *LoanValidator) Validate(loan *model.Loan) error {
	return v.translate(v.validate.Struct(loan))
}

func (v *LoanValidator) translate(err error) error {
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return translateValidationErrors(validationErrs)
	}
	return err
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		field := fieldName(err.Field())
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", field)
		case "min":
			message = fmt.Sprintf("%s must be at least %s characters", field, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s characters", field, err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", field)
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid object id", field)
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   field,
			Message: message,
		})
	}

	return validationErrors
}

func fieldName(goField string) string {
	switch goField {
	case "CustomerEmail":
		return "customer_email"
	case "BookID":
		return "book_id"
	case "BookIsbn":
		return "book_isbn"
	case "LoanDate":
		return "loan_date"
	default:
		return strings.ToLower(goField)
	}
}
