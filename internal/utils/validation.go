package utils

import (
	"mime"
	"strings"

	"github.com/BrunoKrugel/guestshots/internal/exif"
)

// allowedTypes lists the media types guests may upload
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// IsValidJPEG checks if the data is a structurally sound JPEG image
func IsValidJPEG(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	// Check JPEG magic bytes (SOI marker: FF D8)
	if data[0] != 0xFF || data[1] != 0xD8 {
		return false
	}
	// Check for EOI marker (FF D9) at the end
	if data[len(data)-2] != 0xFF || data[len(data)-1] != 0xD9 {
		return false
	}
	// Header segments must chain up to SOS or EOI
	_, err := exif.Segments(data)
	return err == nil
}

// IsAllowedImage reports whether mediaType is an accepted upload type
func IsAllowedImage(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	return allowedTypes[mt]
}
