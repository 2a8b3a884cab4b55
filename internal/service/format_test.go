package service_test

import (
	"testing"

	"github.com/boddenberg/profile-bff-go/internal/service"

	"github.com/stretchr/testify/assert"
)

func TestMaskCPF(t *testing.T) {
	assert.Equal(t, "123.456.789-09", service.MaskCPF("12345678909"))
	assert.Equal(t, "1234", service.MaskCPF("1234"))
}

func TestFormatPhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"11987654321", "(11) 98765-4321"},
		{"+55 11 98765-4321", "(11) 98765-4321"},
		{"  12345 ", "12345"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, service.FormatPhone(tt.in), tt.in)
	}
}
