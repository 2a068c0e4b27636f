package shared

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
)

func TestFieldErrors(t *testing.T) {
	type form struct {
		Name   string `validate:"required"`
		Avatar string `validate:"omitempty,url"`
		Bio    string `validate:"max=3"`
	}
	err := validator.New().Struct(form{Avatar: "not a url", Bio: "toolong"})

	msgs := FieldErrors(err)
	assert.Equal(t, "This field is required.", msgs["Name"])
	assert.Equal(t, "Must be a valid URL.", msgs["Avatar"])
	assert.Equal(t, "Must be at most 3 characters.", msgs["Bio"])

	assert.Empty(t, FieldErrors(nil))
	assert.Equal(t, map[string]string{"general": "boom"}, FieldErrors(errors.New("boom")))
}
