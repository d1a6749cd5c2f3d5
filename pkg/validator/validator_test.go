package validator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type registerPayload struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func TestValidateStructPasses(t *testing.T) {
	err := ValidateStruct(&registerPayload{
		Username: "teacher",
		Email:    "teacher@example.com",
		Password: "longenough",
	})
	require.NoError(t, err)
}

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	err := ValidateStruct(&registerPayload{
		Username: "ab",
		Email:    "not-an-email",
	})
	require.Error(t, err)

	ve, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, ve, 3)

	byField := map[string]ValidationError{}
	for _, failure := range ve {
		byField[failure.Field] = failure
	}

	require.Equal(t, "min", byField["username"].Tag)
	require.Equal(t, "3", byField["username"].Param)
	require.Equal(t, "email", byField["email"].Tag)
	require.Equal(t, "required", byField["password"].Tag)
}

func TestValidationErrorsMessage(t *testing.T) {
	err := ValidateStruct(&registerPayload{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "username")
}
