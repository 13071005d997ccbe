package validator

import (
	"errors"
	"testing"

	"libris/pkg/logger"
	"libris/pkg/model"
)

func testValidator() *LoanValidator {
	return NewLoanValidator(logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	}))
}

func TestValidateRequest_Valid(t *testing.T) {
	err := testValidator().ValidateRequest(&model.LoanRequest{
		Isbn:          "9780132350884",
		Customer:      "Fulano Silva",
		CustomerEmail: "fulano@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRequest_InvalidEmail(t *testing.T) {
	err := testValidator().ValidateRequest(&model.LoanRequest{
		Isbn:          "9780132350884",
		Customer:      "Fulano Silva",
		CustomerEmail: "not-an-email",
	})

	var validationErrs ValidationErrors
	if !errors.As(err, &validationErrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(validationErrs) != 1 {
		t.Fatalf("expected one error, got %v", validationErrs)
	}
	if validationErrs[0].Field != "customer_email" {
		t.Errorf("unexpected field: %s", validationErrs[0].Field)
	}
	if validationErrs[0].Message != "customer_email must be a valid email address" {
		t.Errorf("unexpected message: %s", validationErrs[0].Message)
	}
}

func TestValidateRequest_MissingEverything(t *testing.T) {
	err := testValidator().ValidateRequest(&model.LoanRequest{})

	var validationErrs ValidationErrors
	if !errors.As(err, &validationErrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(validationErrs) != 3 {
		t.Errorf("expected errors for isbn, customer and customer_email, got %v", validationErrs)
	}
}

func TestValidateReturn_RequiresFlag(t *testing.T) {
	if err := testValidator().ValidateReturn(&model.LoanReturn{}); err == nil {
		t.Fatal("expected an error when returned is absent")
	}

	explicitFalse := false
	if err := testValidator().ValidateReturn(&model.LoanReturn{Returned: &explicitFalse}); err != nil {
		t.Fatalf("explicit false must be valid: %v", err)
	}
}
