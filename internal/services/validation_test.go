package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	ve := NewValidationError()
	assert.False(t, ve.HasErrors())
	assert.NoError(t, ve.OrNil())

	ve.Add("title", msgRequired)
	ve.Add("email", msgInvalidEmail)
	ve.Add("email", msgDuplicateEmail)

	assert.True(t, ve.Has("email"))
	assert.False(t, ve.Has("password"))
	assert.Error(t, ve.OrNil())
	assert.Equal(t,
		"validation failed: email: Enter a valid email address. user with this email address already exists.; title: This field is required.",
		ve.Error(),
	)
}

func TestValidateStruct_UsesJSONNames(t *testing.T) {
	type request struct {
		Name  *string `json:"display_name" validate:"required,notblank"`
		Email string  `json:"email,omitempty" validate:"omitempty,email"`
	}
	v := newValidator()

	ve := validateStruct(v, request{Email: "nope"})
	assert.Equal(t, []string{msgRequired}, ve.Fields["display_name"])
	assert.Equal(t, []string{msgInvalidEmail}, ve.Fields["email"])

	blank := " \t"
	ve = validateStruct(v, request{Name: &blank})
	assert.Equal(t, map[string][]string{"display_name": {msgBlank}}, ve.Fields)
}
