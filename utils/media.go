package utils

import (
	"path/filepath"
	"strings"
)

// MediaClass is the closed classification of uploaded content. Every
// request is classified exactly once, before any embedding work.
type MediaClass int

const (
	MediaUnsupported MediaClass = iota
	MediaText
	MediaImage
	// MediaPDF is a text source: the pipeline extracts the text layer and
	// then treats the document as MediaText.
	MediaPDF
)

func (m MediaClass) String() string {
	switch m {
	case MediaText:
		return "text"
	case MediaImage:
		return "image"
	case MediaPDF:
		return "pdf"
	default:
		return "unsupported"
	}
}

var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/gif":  true,
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
	".gif":  true,
}

var textContentTypes = map[string]bool{
	"text/plain":    true,
	"text/markdown": true,
	"text/csv":      true,
}

var textExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".csv": true,
}

// ClassifyMedia decides how an upload is handled from its declared content
// type and filename extension. The content type may carry parameters
// ("text/plain; charset=utf-8"); only the media type part is considered.
func ClassifyMedia(filename, contentType string) MediaClass {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext := strings.ToLower(filepath.Ext(filename))

	switch {
	case imageContentTypes[ct] || imageExtensions[ext]:
		return MediaImage
	case ct == "application/pdf" || ext == ".pdf":
		return MediaPDF
	case textContentTypes[ct] || textExtensions[ext]:
		return MediaText
	default:
		return MediaUnsupported
	}
}

// IsValidImageType checks if the content type is a recognized image type.
func IsValidImageType(contentType string) bool {
	return imageContentTypes[strings.ToLower(contentType)]
}
