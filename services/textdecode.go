package services

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"embedding-gateway/models"
)

// DecodeTextBytes turns uploaded file bytes into a string. UTF-8 is tried
// first; on invalid UTF-8 the bytes are re-read as UTF-16, honoring an
// optional BOM and defaulting to little-endian without one. Anything else
// is unsupported media.
func DecodeTextBytes(data []byte) (string, error) {
	if utf8.Valid(data) {
		// Strip a UTF-8 BOM if present.
		if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
			data = data[3:]
		}
		return string(data), nil
	}

	s, err := decodeUTF16(data)
	if err != nil {
		return "", fmt.Errorf("%w: file is neither valid UTF-8 nor UTF-16: %v", models.ErrUnsupportedMedia, err)
	}
	return s, nil
}

func decodeUTF16(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", fmt.Errorf("odd byte length %d", len(data))
	}

	bigEndian := false
	if len(data) >= 2 {
		switch {
		case data[0] == 0xFF && data[1] == 0xFE:
			data = data[2:]
		case data[0] == 0xFE && data[1] == 0xFF:
			bigEndian = true
			data = data[2:]
		}
	}

	units := make([]uint16, len(data)/2)
	for i := range units {
		if bigEndian {
			units[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
		} else {
			units[i] = uint16(data[2*i+1])<<8 | uint16(data[2*i])
		}
	}
	return string(utf16.Decode(units)), nil
}
