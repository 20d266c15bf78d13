package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RkayG/Cxperia-sub002/internal/common/errors"
)

type sample struct {
	ExperienceID string `json:"experienceId" validate:"notblank"`
	Rating       int    `json:"rating" validate:"min=1,max=5"`
	Comment      string `json:"comment" validate:"max=10"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
}

func TestValidateStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name       string
		input      sample
		wantFields []string
	}{
		{"valid", sample{ExperienceID: "exp-1", Rating: 5}, nil},
		{"blank id", sample{ExperienceID: "   ", Rating: 3}, []string{"experienceId"}},
		{"rating too low", sample{ExperienceID: "exp-1", Rating: 0}, []string{"rating"}},
		{"rating too high", sample{ExperienceID: "exp-1", Rating: 6}, []string{"rating"}},
		{"comment too long", sample{ExperienceID: "exp-1", Rating: 4, Comment: strings.Repeat("x", 11)}, []string{"comment"}},
		{"bad email", sample{ExperienceID: "exp-1", Rating: 4, Email: "nope"}, []string{"email"}},
		{"several", sample{Rating: 9}, []string{"experienceId", "rating"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.input)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))

			fields := Fields(err)
			got := make([]string, 0, len(fields))
			for _, f := range fields {
				got = append(got, f.Field)
				assert.NotEmpty(t, f.Message)
			}
			assert.ElementsMatch(t, tt.wantFields, got)
		})
	}
}

func TestMessages(t *testing.T) {
	err := New().ValidateStruct(sample{ExperienceID: "", Rating: 7, Comment: strings.Repeat("y", 20)})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "experienceId is required")
	assert.Contains(t, msg, "rating must be at most 5")
	assert.Contains(t, msg, "comment must be at most 10 characters long")
}

func TestFieldsOnForeignError(t *testing.T) {
	assert.Nil(t, Fields(nil))
	assert.Nil(t, Fields(errors.InternalError("x", nil)))
}
