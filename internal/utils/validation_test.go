package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidJPEG(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"minimal", []byte{0xFF, 0xD8, 0xFF, 0xD9}, true},
		{"with segment", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x04, 0x00, 0x00, 0xFF, 0xD9}, true},
		{"too short", []byte{0xFF, 0xD8}, false},
		{"missing soi", []byte{0x89, 0x50, 0xFF, 0xD9}, false},
		{"missing eoi", []byte{0xFF, 0xD8, 0xFF, 0xD9, 0x00}, false},
		{"broken segment", []byte{0xFF, 0xD8, 0xFF, 0xE1, 0x40, 0x00, 0xFF, 0xD9}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidJPEG(tt.data))
		})
	}
}

func TestIsAllowedImage(t *testing.T) {
	assert.True(t, IsAllowedImage("image/jpeg"))
	assert.True(t, IsAllowedImage("image/PNG"))
	assert.True(t, IsAllowedImage("image/webp; charset=binary"))
	assert.False(t, IsAllowedImage("application/pdf"))
	assert.False(t, IsAllowedImage(""))
}
