package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		address  string
		expected string
	}{
		{"ada.lovelace@example.com", "Ada Lovelace"},
		{"GRACE_hopper+pass@example.com", "Grace Hopper"},
		{"mary-jane.o@example.com", "Mary Jane O"},
		{"alan@example.com", "Alan"},
		{"+tag@example.com", "Applicant"},
		{"", "Applicant"},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			assert.Equal(t, tt.expected, DisplayName(tt.address))
		})
	}
}
