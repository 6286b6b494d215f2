package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRaw(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{
			name: "valid plan",
			json: `{
				"version": "1.0",
				"title": "smoke",
				"jobs": [
					{"id": "a", "plugin": "shell", "command": "true"},
					{"id": "b", "plugin": "shell", "command": "true", "depends": ["a"]}
				],
				"select": ["a"]
			}`,
		},
		{
			name: "minimal plan",
			json: `{"version": "1.0"}`,
		},
		{
			name:    "unknown top-level field",
			json:    `{"version": "1.0", "job": []}`,
			wantErr: true,
		},
		{
			name:    "unknown job field",
			json:    `{"version": "1.0", "jobs": [{"id": "a", "comand": "oops"}]}`,
			wantErr: true,
		},
		{
			name:    "job missing id",
			json:    `{"version": "1.0", "jobs": [{"plugin": "shell"}]}`,
			wantErr: true,
		},
		{
			name:    "jobs not an array",
			json:    `{"version": "1.0", "jobs": "nope"}`,
			wantErr: true,
		},
		{
			name:    "depends not an array",
			json:    `{"version": "1.0", "jobs": [{"id": "a", "depends": "b"}]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRaw([]byte(tt.json))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidationFailed))

			var errs ValidationErrors
			require.ErrorAs(t, err, &errs)
			assert.NotEmpty(t, errs)
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	withPath := ValidationError{Path: "/jobs/0/id", Message: "expected string"}
	assert.Equal(t, "/jobs/0/id: expected string", withPath.Error())

	noPath := ValidationError{Message: "invalid document"}
	assert.Equal(t, "invalid document", noPath.Error())
}

func TestToJSON(t *testing.T) {
	jsonData, err := toJSON([]byte("version: \"1.0\"\njobs:\n  - id: a\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version": "1.0", "jobs": [{"id": "a"}]}`, string(jsonData))

	_, err = toJSON([]byte(": not yaml : ["))
	assert.Error(t, err)
}
