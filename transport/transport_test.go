package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{":8080", true},
		{"127.0.0.1:8080", true},
		{"[::1]:443", true},
		{"authgate.internal:9000", true},
		{"", false},
		{"8080", false},
		{"localhost:", false},
		{"localhost:0", false},
		{"localhost:70000", false},
		{"-bad-:80", false},
		{"bad_host:80", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidateAddress(tt.addr), tt.addr)
	}
}
