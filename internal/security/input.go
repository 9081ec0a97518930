package security

import (
	"errors"
	"unicode"
	"unicode/utf8"
)

var (
	ErrInputTooLarge     = errors.New("input exceeds maximum size")
	ErrNullByteDetected  = errors.New("null byte detected in input")
	ErrInvalidEncoding   = errors.New("input is not valid UTF-8")
	ErrRepetitiveContent = errors.New("excessive repetition detected")
	ErrInvalidPatientID  = errors.New("invalid patient id")
)

const MaxPatientIDLength = 128

// InputValidator checks free text a patient attaches to a completion
type InputValidator struct {
	MaxSize       int
	MaxRepetition int
}

func NewInputValidator() *InputValidator {
	return &InputValidator{
		MaxSize:       4 * 1024,
		MaxRepetition: 100,
	}
}

func (v *InputValidator) Validate(input string) error {
	if v.MaxSize > 0 && len(input) > v.MaxSize {
		return ErrInputTooLarge
	}

	if !utf8.ValidString(input) {
		return ErrInvalidEncoding
	}

	for i := 0; i < len(input); i++ {
		if input[i] == 0 {
			return ErrNullByteDetected
		}
	}

	if v.MaxRepetition > 0 && len(input) > v.MaxRepetition {
		if hasExcessiveRepetition(input, v.MaxRepetition) {
			return ErrRepetitiveContent
		}
	}

	return nil
}

func hasExcessiveRepetition(input string, maxLen int) bool {
	runes := []rune(input)
	consecutiveCount := 1

	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] {
			consecutiveCount++
			if consecutiveCount > maxLen {
				return true
			}
		} else {
			consecutiveCount = 1
		}
	}

	return false
}

// ValidateNotes applies the default limits to completion notes
func ValidateNotes(notes string) error {
	return NewInputValidator().Validate(notes)
}

// ValidatePatientID accepts the opaque ids the identity provider issues:
// non-empty, bounded, printable and free of whitespace.
func ValidatePatientID(id string) error {
	if id == "" || len(id) > MaxPatientIDLength || !utf8.ValidString(id) {
		return ErrInvalidPatientID
	}
	for _, r := range id {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return ErrInvalidPatientID
		}
	}
	return nil
}
