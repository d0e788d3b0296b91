package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunRequest_Validation(t *testing.T) {
	tests := []struct {
		name    string
		request RunRequest
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid request",
			request: RunRequest{AssignmentID: "asg-1", ExternalFileID: "file-1", Prompt: "Summarize week 2."},
		},
		{
			name:    "prompt optional",
			request: RunRequest{AssignmentID: "asg-1", ExternalFileID: "file-1"},
		},
		{
			name:    "missing assignment",
			request: RunRequest{ExternalFileID: "file-1"},
			wantErr: true,
			errMsg:  "AssignmentID",
		},
		{
			name:    "missing file",
			request: RunRequest{AssignmentID: "asg-1"},
			wantErr: true,
			errMsg:  "ExternalFileID",
		},
		{
			name:    "prompt too long",
			request: RunRequest{AssignmentID: "asg-1", ExternalFileID: "file-1", Prompt: strings.Repeat("a", 20001)},
			wantErr: true,
			errMsg:  "max",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTokenRequest_Validation(t *testing.T) {
	assert.NoError(t, (&TokenRequest{ClientID: "grader", ClientSecret: "long-enough"}).Validate())

	err := (&TokenRequest{ClientID: "grader", ClientSecret: "short"}).Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "min")

	err = (&TokenRequest{ClientSecret: "long-enough"}).Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestSignedURLRequest_Validation(t *testing.T) {
	assert.NoError(t, (&SignedURLRequest{}).Validate())
	assert.NoError(t, (&SignedURLRequest{TTLSeconds: 600}).Validate())
	assert.Error(t, (&SignedURLRequest{TTLSeconds: -1}).Validate())
	assert.Error(t, (&SignedURLRequest{TTLSeconds: 90000}).Validate())
}
