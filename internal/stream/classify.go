package stream

import (
	"mime"
	"path/filepath"
	"strings"

	"anonstream/internal/model"
)

// longVideoThreshold is the size above which a video counts as long-form.
const longVideoThreshold = 50 * 1024 * 1024

// Classify derives the content type from a filename and its size.
// Images and videos are recognized by MIME type; videos over 50 MiB are
// long-form. Markdown and plain text files become text items. Everything
// else is unknown.
func Classify(filename string, size int64) model.ContentType {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".md" || ext == ".txt" {
		return model.TypeText
	}

	mimeType := mime.TypeByExtension(ext)
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return model.TypeImage
	case strings.HasPrefix(mimeType, "video/"):
		if size > longVideoThreshold {
			return model.TypeLongVideo
		}
		return model.TypeShortVideo
	case strings.HasPrefix(mimeType, "text/"):
		return model.TypeText
	default:
		return model.TypeUnknown
	}
}

// TitleFromFilename derives a default draft title: the base name without its
// extension.
func TitleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
