package customer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() map[string]string {
	return map[string]string{
		"full_name":     "Ada Lovelace",
		"email":         "Ada.Lovelace@Example.COM",
		"date_of_birth": "1990-12-10",
		"timezone":      "Europe/London",
	}
}

func TestValidate_ValidRecord(t *testing.T) {
	rec, violations := Validate(validFields())
	require.Empty(t, violations)

	assert.Equal(t, "Ada Lovelace", rec.FullName)
	assert.Equal(t, "ada.lovelace@example.com", rec.Email, "email must be normalized to lowercase")
	assert.Equal(t, "Europe/London", rec.Timezone)
	assert.Equal(t, 1990, rec.DateOfBirth.Year())
}

func TestValidate_FieldRules(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string]string)
		expected []string
	}{
		{
			name:     "empty full name",
			mutate:   func(f map[string]string) { f["full_name"] = "   " },
			expected: []string{MsgFullNameRequired},
		},
		{
			name:     "missing full name column",
			mutate:   func(f map[string]string) { delete(f, "full_name") },
			expected: []string{MsgFullNameRequired},
		},
		{
			name:     "malformed email",
			mutate:   func(f map[string]string) { f["email"] = "not-an-email" },
			expected: []string{MsgEmailInvalid},
		},
		{
			name:     "display name email form rejected",
			mutate:   func(f map[string]string) { f["email"] = "ada lovelace <ada@example.com>" },
			expected: []string{MsgEmailInvalid},
		},
		{
			name:     "unparseable date",
			mutate:   func(f map[string]string) { f["date_of_birth"] = "12/10/1990" },
			expected: []string{MsgDOBInvalid},
		},
		{
			name: "date of birth in the future",
			mutate: func(f map[string]string) {
				f["date_of_birth"] = time.Now().AddDate(1, 0, 0).Format("2006-01-02")
			},
			expected: []string{MsgDOBInFuture},
		},
		{
			name:     "bogus timezone",
			mutate:   func(f map[string]string) { f["timezone"] = "Not/A_Real_Place" },
			expected: []string{MsgTimezoneInvalid},
		},
		{
			name:     "empty timezone",
			mutate:   func(f map[string]string) { f["timezone"] = "" },
			expected: []string{MsgTimezoneInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			tt.mutate(fields)

			_, violations := Validate(fields)
			assert.Equal(t, tt.expected, violations)
		})
	}
}

func TestValidate_CollectsAllViolationsInDeclarationOrder(t *testing.T) {
	_, violations := Validate(map[string]string{
		"full_name":     "",
		"email":         "nope",
		"date_of_birth": "not-a-date",
		"timezone":      "Mars/Olympus_Mons",
	})

	require.Equal(t, []string{
		MsgFullNameRequired,
		MsgEmailInvalid,
		MsgDOBInvalid,
		MsgTimezoneInvalid,
	}, violations)
}

func TestValidate_IgnoresExtraColumns(t *testing.T) {
	fields := validFields()
	fields["favourite_colour"] = "teal"

	_, violations := Validate(fields)
	assert.Empty(t, violations)
}

func TestValidate_DOBTodayAllowed(t *testing.T) {
	fields := validFields()
	fields["date_of_birth"] = time.Now().UTC().Format("2006-01-02")

	_, violations := Validate(fields)
	assert.Empty(t, violations, "today is not strictly in the future")
}

func TestValidatePartial_SingleFieldSucceeds(t *testing.T) {
	patch, violations := ValidatePartial(map[string]string{"full_name": "X"})
	require.Empty(t, violations)

	require.NotNil(t, patch.FullName)
	assert.Equal(t, "X", *patch.FullName)
	assert.Nil(t, patch.Email)
	assert.Nil(t, patch.DateOfBirth)
	assert.Nil(t, patch.Timezone)
}

func TestValidatePartial_EmptyPatchRejected(t *testing.T) {
	_, violations := ValidatePartial(map[string]string{})
	assert.Equal(t, []string{MsgAtLeastOneField}, violations)
}

func TestValidatePartial_UnknownFieldRejected(t *testing.T) {
	_, violations := ValidatePartial(map[string]string{"unknown_field": "1"})
	assert.Equal(t, []string{`Unknown field "unknown_field"`}, violations)
}

func TestValidatePartial_PresentFieldsStillValidated(t *testing.T) {
	_, violations := ValidatePartial(map[string]string{
		"email":    "broken",
		"timezone": "Atlantis/Lost",
	})

	assert.Equal(t, []string{MsgEmailInvalid, MsgTimezoneInvalid}, violations)
}

func TestValidatePartial_NormalizesEmail(t *testing.T) {
	patch, violations := ValidatePartial(map[string]string{"email": "ADA@Example.Com"})
	require.Empty(t, violations)
	require.NotNil(t, patch.Email)
	assert.Equal(t, "ada@example.com", *patch.Email)
}
