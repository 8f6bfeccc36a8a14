package model

import "time"

// File is an in-memory upload: its name, declared media type and content.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Record describes the outcome of a single upload
type Record struct {
	Name         string    `json:"name"`
	MediaType    string    `json:"mediaType"`
	OriginalSize int       `json:"originalSize"`
	StoredSize   int       `json:"storedSize"`
	ExifRemoved  int       `json:"exifRemoved"`
	Stripped     bool      `json:"stripped"`
	Status       int       `json:"status,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
