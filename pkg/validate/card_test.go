package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsCardNumber(t *testing.T) {
	tests := []struct {
		name     string
		number   string
		expected bool
	}{
		{"Valid card number", "4111111111111111", true},
		{"Bad check digit", "4111111111111112", false},
		{"Non-numeric", "4111-1111", false},
		{"Empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsCardNumber(tt.number))
		})
	}
}
