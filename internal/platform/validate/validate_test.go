package validate

import (
	"strings"
	"testing"

	perr "warcdex/internal/platform/errors"
)

type opts struct {
	Endpoint  string `env:"ENDPOINT" validate:"required,url"`
	BatchSize int    `env:"BATCH_SIZE" validate:"gt=0"`
	Retries   int    `validate:"gte=0"`
}

func TestStruct_OK(t *testing.T) {
	if err := Struct(opts{Endpoint: "http://x.test/", BatchSize: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStruct_NamesEnvKeys(t *testing.T) {
	err := Struct(opts{Endpoint: "not a url", BatchSize: 0, Retries: -1})
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("code = %v, want validation", perr.CodeOf(err))
	}
	msg := err.Error()
	for _, want := range []string{"ENDPOINT", "BATCH_SIZE must be greater than 0", "Retries must be at least 0"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q does not contain %q", msg, want)
		}
	}
	if e, ok := perr.As(err); !ok || e.Field() != "ENDPOINT" {
		t.Fatalf("field not attached: %v", err)
	}
}

func TestStruct_NonStruct(t *testing.T) {
	err := Struct(42)
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("code = %v, want invalid_argument", perr.CodeOf(err))
	}
}

func TestRegisterValidation(t *testing.T) {
	if err := RegisterValidation("lower", func(fl FieldLevel) bool {
		return fl.Field().String() == strings.ToLower(fl.Field().String())
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	type s struct {
		Name string `validate:"lower"`
	}
	if err := Struct(s{Name: "ok"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Struct(s{Name: "NO"}); err == nil {
		t.Fatalf("expected error for uppercase")
	}
}
