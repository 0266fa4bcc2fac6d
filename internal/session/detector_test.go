package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/audiocare/practice/pkg/apiclient"
)

func TestIsExpired(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"expired and unauthorized", errors.New("Session expired: unauthorized"), true},
		{"network", errors.New("Network request failed"), false},
		{"invalid", errors.New("session invalid"), true},
		{"upper case", errors.New("SESSION UNAUTHORIZED"), true},
		{"session alone", errors.New("session started"), false},
		{"marker alone", errors.New("token expired"), false},
		{"wrapped", fmt.Errorf("list appointments: %w", errors.New("session expired")), true},
		{"api error body", &apiclient.APIError{Status: 401, Body: `{"message":"session expired"}`}, true},
		{"api error other", &apiclient.APIError{Status: 404, Body: "Not Found"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExpired(tt.err))
		})
	}
}

func TestIsExpiredMessage(t *testing.T) {
	assert.True(t, IsExpiredMessage("Your Session is Invalid"))
	assert.False(t, IsExpiredMessage(""))
}
