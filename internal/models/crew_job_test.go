package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   JobInput
		wantErr string
	}{
		{
			name:  "minimal valid input",
			input: JobInput{JobID: "J1", Title: "Cannot log in", Description: "Password reset link expired"},
		},
		{
			name:    "missing job id",
			input:   JobInput{Title: "t", Description: "d"},
			wantErr: "job_id (required)",
		},
		{
			name:    "missing title and description",
			input:   JobInput{JobID: "J1"},
			wantErr: "title (required), description (required)",
		},
		{
			name:    "malformed callback url",
			input:   JobInput{JobID: "J1", Title: "t", Description: "d", CallbackURL: "not a url"},
			wantErr: "callback_url (url)",
		},
		{
			name:  "valid callback url",
			input: JobInput{JobID: "J1", Title: "t", Description: "d", CallbackURL: "http://localhost:3000/hooks"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestJobInput_TicketContent(t *testing.T) {
	input := JobInput{JobID: "J1", Title: "Cannot log in", Description: "Password reset link expired"}
	assert.Equal(t, "Cannot log in\n\nPassword reset link expired", input.TicketContent())

	input.Requirements = "Reply within 1 hour"
	assert.Equal(t, "Cannot log in\n\nPassword reset link expired\n\nRequirements: Reply within 1 hour", input.TicketContent())
}
