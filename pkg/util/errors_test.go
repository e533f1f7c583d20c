package util

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"
)

func TestPreconditionError(t *testing.T) {
	err := NewPreconditionError("update", "vlan[39]", "key field is immutable", "vlan-id 39 -> 40")

	msg := err.Error()
	for _, want := range []string{"update", "vlan[39]", "key field is immutable", "vlan-id 39 -> 40"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error message should contain %q: %s", want, msg)
		}
	}

	if !errors.Is(err, ErrPreconditionFailed) {
		t.Errorf("PreconditionError should unwrap to ErrPreconditionFailed")
	}
}

func TestPreconditionErrorNoDetails(t *testing.T) {
	err := NewPreconditionError("create", "vlan[39]", "name required", "")
	if strings.HasSuffix(err.Error(), ")") {
		t.Errorf("Error message should not have a details section: %s", err.Error())
	}
}

func TestValidationBuilder(t *testing.T) {
	t.Run("no errors", func(t *testing.T) {
		v := &ValidationBuilder{}
		v.Add(true, "this should not appear")

		if v.HasErrors() {
			t.Error("Should not have errors when all conditions are true")
		}
		if err := v.Build(); err != nil {
			t.Errorf("Build() should return nil when no errors: %v", err)
		}
	})

	t.Run("with errors", func(t *testing.T) {
		err := (&ValidationBuilder{}).
			Add(false, "first error").
			Add(true, "this passes").
			AddErrorf("formatted error: %d", 42).
			Build()
		if err == nil {
			t.Fatal("Build() should return error")
		}

		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Expected *ValidationError, got %T", err)
		}
		if len(verr.Errors) != 2 {
			t.Errorf("Expected 2 errors, got %d", len(verr.Errors))
		}
		if !strings.Contains(err.Error(), "formatted error: 42") {
			t.Errorf("Missing formatted error in: %s", err.Error())
		}
	})
}

func TestRangeError(t *testing.T) {
	err := NewRangeError("1-3,t/2-4", "t/2-4", "span endpoints have different prefixes")
	if !errors.Is(err, ErrMalformedRange) {
		t.Error("RangeError should unwrap to ErrMalformedRange")
	}
	if !strings.Contains(err.Error(), "t/2-4") {
		t.Errorf("Error message should name the token: %s", err.Error())
	}
}

func TestParseError(t *testing.T) {
	_, cause := strconv.Atoi("15OO")
	err := NewParseError("mtu", "15OO", "int", cause)

	if !errors.Is(err, ErrParse) {
		t.Error("ParseError should match ErrParse")
	}
	if !errors.Is(err, strconv.ErrSyntax) {
		t.Error("ParseError should unwrap to its cause")
	}
	if !strings.HasPrefix(err.Error(), "mtu: ") {
		t.Errorf("Error message should start with attribute: %s", err.Error())
	}

	wrapped := fmt.Errorf("reading vlan[39]: %w", err)
	var perr *ParseError
	if !errors.As(wrapped, &perr) || perr.Attribute != "mtu" {
		t.Errorf("errors.As through wrapping failed: %v", wrapped)
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrPreconditionFailed,
		ErrValidationFailed,
		ErrInUse,
		ErrMalformedRange,
		ErrParse,
		ErrTransport,
		ErrUnknownProfile,
		ErrDrift,
	}

	for i, err1 := range sentinels {
		for j, err2 := range sentinels {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v == %v", err1, err2)
			}
		}
	}
}

func TestErrorsIsWrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"PreconditionError", NewPreconditionError("op", "res", "pre", ""), ErrPreconditionFailed},
		{"ValidationError", NewValidationError("msg"), ErrValidationFailed},
		{"InUseError", NewInUseError("vlan[39]", "interface[Gi0/1]"), ErrInUse},
		{"RangeError", NewRangeError("5-1", "5-1", "start greater than end"), ErrMalformedRange},
		{"DriftError", NewDriftError("vlan[39]", "name"), ErrDrift},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(fmt.Errorf("wrapped: %w", tt.err), tt.sentinel) {
				t.Errorf("%s should wrap %v", tt.name, tt.sentinel)
			}
		})
	}
}
