package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type turn struct {
	Role string `json:"role" validate:"omitempty,oneof=user model"`
	Text string `json:"text" validate:"omitempty,max=5"`
}

type sample struct {
	Message string `json:"message" validate:"required,max=10"`
	Lang    string `json:"lang" validate:"omitempty,oneof=en ar"`
	Data    string `json:"data" validate:"omitempty,base64"`
	History []turn `json:"history" validate:"omitempty,max=2,dive"`
}

func TestStruct_Valid(t *testing.T) {
	assert.Nil(t, Struct(sample{Message: "hi", Lang: "ar", Data: "aGk=", History: []turn{{Role: "user", Text: "x"}}}))
	assert.Nil(t, Struct(sample{Message: "hi"}))
}

func TestStruct_FieldErrors(t *testing.T) {
	errs := Struct(sample{
		Message: strings.Repeat("x", 11),
		Lang:    "fr",
		Data:    "not base64!",
		History: []turn{{Role: "system", Text: "toolong"}},
	})

	assert.ElementsMatch(t, []FieldError{
		{Field: "message", Message: "must be at most 10 characters"},
		{Field: "lang", Message: "must be one of: en, ar"},
		{Field: "data", Message: "must be base64 encoded"},
		{Field: "history[0].role", Message: "must be one of: user, model"},
		{Field: "history[0].text", Message: "must be at most 5 characters"},
	}, errs)
}

func TestStruct_Required(t *testing.T) {
	errs := Struct(sample{})
	assert.Equal(t, []FieldError{{Field: "message", Message: "is required"}}, errs)
}

func TestStruct_SliceLimit(t *testing.T) {
	errs := Struct(sample{Message: "m", History: make([]turn, 3)})
	assert.Equal(t, []FieldError{{Field: "history", Message: "must contain at most 2 items"}}, errs)
}

func TestStruct_CountsRunes(t *testing.T) {
	assert.Nil(t, Struct(sample{Message: strings.Repeat("ق", 10)}))
}
