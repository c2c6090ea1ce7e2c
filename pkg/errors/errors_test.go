package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewFormatsMessage(t *testing.T) {
	err := New(ErrCodeInvalidFormat, "unknown format: %s", "BMP")

	if err.Code != ErrCodeInvalidFormat {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeInvalidFormat)
	}
	if got, want := err.Error(), "INVALID_FORMAT: unknown format: BMP"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("syntax error in line 2 near '->'")
	err := Wrap(ErrCodeDiagram, cause, "blockdiag error")

	if errors.Unwrap(err) != cause {
		t.Errorf("Unwrap() = %v, want %v", errors.Unwrap(err), cause)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true")
	}
	if got, want := err.Error(), "DIAGRAM_ERROR: blockdiag error: syntax error in line 2 near '->'"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCodeLookup(t *testing.T) {
	outer := fmt.Errorf("render index: %w", New(ErrCodeUnsupported, "could not output PDF format"))

	tests := []struct {
		name     string
		err      error
		code     Code
		wantIs   bool
		wantCode Code
	}{
		{"direct", New(ErrCodeEncoding, "bad bytes"), ErrCodeEncoding, true, ErrCodeEncoding},
		{"other code", New(ErrCodeEncoding, "bad bytes"), ErrCodeDiagram, false, ErrCodeEncoding},
		{"outermost code wins", Wrap(ErrCodeDiagram, New(ErrCodeEncoding, "inner"), "outer"), ErrCodeDiagram, true, ErrCodeDiagram},
		{"fmt wrapped", outer, ErrCodeUnsupported, true, ErrCodeUnsupported},
		{"plain error", errors.New("plain"), ErrCodeInternal, false, ""},
		{"nil", nil, ErrCodeInternal, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.wantIs {
				t.Errorf("Is() = %v, want %v", got, tt.wantIs)
			}
			if got := GetCode(tt.err); got != tt.wantCode {
				t.Errorf("GetCode() = %v, want %v", got, tt.wantCode)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"message only", New(ErrCodeInvalidOption, "unknown option: size"), "unknown option: size"},
		{"with cause", Wrap(ErrCodeDiagram, errors.New("unexpected token"), "blockdiag error"), "blockdiag error: unexpected token"},
		{"plain error", errors.New("plain error"), "plain error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
