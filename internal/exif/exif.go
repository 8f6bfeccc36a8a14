// Package exif removes EXIF metadata from JPEG images without re-encoding
// them. Only the marker segments ahead of the first scan are inspected;
// entropy-coded data is copied through untouched.
package exif

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/BrunoKrugel/guestshots/internal/model"
)

// JPEG markers the scanner cares about
const (
	MarkerTEM  uint16 = 0xFF01
	MarkerRST0 uint16 = 0xFFD0
	MarkerRST7 uint16 = 0xFFD7
	MarkerSOI  uint16 = 0xFFD8
	MarkerEOI  uint16 = 0xFFD9
	MarkerSOS  uint16 = 0xFFDA
	MarkerAPP1 uint16 = 0xFFE1
)

// MediaType is the declared type of the files StripFile rewrites.
const MediaType = "image/jpeg"

var (
	ErrRead      = errors.New("exif: read failed")
	ErrMalformed = errors.New("exif: malformed segment table")
)

// Segment is a marker segment found in the JPEG header. Length is the value
// of its length field, which counts the field itself; it is 0 for markers
// that carry no payload.
type Segment struct {
	Marker uint16
	Offset int
	Length int
}

// Size returns the number of bytes the segment occupies, marker included.
func (s Segment) Size() int {
	return 2 + s.Length
}

// Report summarizes a Strip call.
type Report struct {
	Removed      int  // APP1 segments removed
	RemovedBytes int  // bytes removed, markers included
	Scanned      int  // segments visited
	Truncated    bool // scan stopped on a malformed segment table
}

type scanState int

const (
	scanSegment scanState = iota
	scanEnd
	scanBroken
)

// segmentAt decodes the segment starting at off. Fill bytes (0xFF runs)
// ahead of the marker are skipped, so the returned Offset may be past off.
// A segment is only returned as scanSegment when it lies fully inside data.
func segmentAt(data []byte, off int) (Segment, scanState) {
	if off >= len(data) {
		return Segment{Offset: off}, scanEnd
	}
	for off+2 < len(data) && data[off] == 0xFF && data[off+1] == 0xFF {
		off++
	}
	if off+2 > len(data) || data[off] != 0xFF {
		return Segment{Offset: off}, scanBroken
	}

	seg := Segment{Marker: binary.BigEndian.Uint16(data[off:]), Offset: off}
	switch {
	case seg.Marker == MarkerEOI:
		return seg, scanEnd
	case seg.Marker == MarkerSOS:
		if off+4 <= len(data) {
			seg.Length = int(binary.BigEndian.Uint16(data[off+2:]))
		}
		return seg, scanEnd
	case seg.Marker == MarkerTEM, seg.Marker >= MarkerRST0 && seg.Marker <= MarkerRST7:
		return seg, scanSegment
	case seg.Marker == MarkerSOI, seg.Marker == 0xFF00:
		return seg, scanBroken
	}

	if off+4 > len(data) {
		return seg, scanBroken
	}
	seg.Length = int(binary.BigEndian.Uint16(data[off+2:]))
	if seg.Length < 2 || off+seg.Size() > len(data) {
		return seg, scanBroken
	}
	return seg, scanSegment
}

func hasSOI(data []byte) bool {
	return len(data) >= 2 && binary.BigEndian.Uint16(data) == MarkerSOI
}

// Strip returns a copy of data with every APP1 segment ahead of the first
// scan removed. data is never modified. Input that does not start with SOI
// is returned as an unchanged copy; a broken segment table stops the scan
// and the bytes produced so far are returned with Report.Truncated set.
func Strip(data []byte) ([]byte, Report) {
	out := make([]byte, len(data))
	copy(out, data)

	var r Report
	if !hasSOI(out) {
		return out, r
	}

	off := 2
	for {
		seg, state := segmentAt(out, off)
		switch state {
		case scanEnd:
			return out, r
		case scanBroken:
			r.Truncated = true
			return out, r
		}
		r.Scanned++

		if seg.Marker == MarkerAPP1 {
			// the next segment slides into seg.Offset, so rescan there
			out = append(out[:seg.Offset], out[seg.Offset+seg.Size():]...)
			r.Removed++
			r.RemovedBytes += seg.Size()
			off = seg.Offset
			continue
		}
		off = seg.Offset + seg.Size()
	}
}

// IsJPEG reports whether mediaType declares a JPEG image.
func IsJPEG(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	return mt == MediaType
}

// StripFile returns a new file with the same name and media type as f.
// JPEG content is stripped of its EXIF segments, anything else is copied
// byte for byte.
func StripFile(f model.File) (model.File, Report) {
	out := model.File{Name: f.Name, MediaType: f.MediaType}
	if !IsJPEG(f.MediaType) {
		out.Data = make([]byte, len(f.Data))
		copy(out.Data, f.Data)
		return out, Report{}
	}

	var r Report
	out.Data, r = Strip(f.Data)
	return out, r
}

// ReadFile loads r into memory as a File. Failures wrap ErrRead.
func ReadFile(name, mediaType string, r io.Reader) (model.File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return model.File{}, fmt.Errorf("%w: %s: %w", ErrRead, name, err)
	}
	return model.File{Name: name, MediaType: mediaType, Data: data}, nil
}

// Segments lists the header segments of data, from SOI up to and including
// the SOS or EOI marker that ends the header. The segments decoded before a
// broken entry are returned together with an error wrapping ErrMalformed.
func Segments(data []byte) ([]Segment, error) {
	if !hasSOI(data) {
		return nil, fmt.Errorf("%w: missing SOI", ErrMalformed)
	}

	segs := []Segment{{Marker: MarkerSOI}}
	off := 2
	for {
		seg, state := segmentAt(data, off)
		switch state {
		case scanEnd:
			if seg.Marker != 0 {
				segs = append(segs, seg)
			}
			return segs, nil
		case scanBroken:
			return segs, fmt.Errorf("%w at offset %d", ErrMalformed, seg.Offset)
		}
		segs = append(segs, seg)
		off = seg.Offset + seg.Size()
	}
}

// HasExif reports whether an APP1 segment appears in the header of data.
func HasExif(data []byte) bool {
	segs, _ := Segments(data)
	for _, s := range segs {
		if s.Marker == MarkerAPP1 {
			return true
		}
	}
	return false
}
