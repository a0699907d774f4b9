package policy

import "strings"

var mimeFormats = map[string]string{
	"video/mp4":        "mp4",
	"video/quicktime":  "mov",
	"video/x-msvideo":  "avi",
	"video/avi":        "avi",
	"video/msvideo":    "avi",
	"video/webm":       "webm",
	"video/x-matroska": "mkv",
	"video/3gpp":       "3gp",
	"video/mpeg":       "mpeg",
}

// FormatFromMIME maps a video MIME type to its container format name.
// Unknown video/* types map to their subtype; anything else maps to "".
func FormatFromMIME(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	mt = strings.ToLower(strings.TrimSpace(mt))
	if f, ok := mimeFormats[mt]; ok {
		return f
	}
	if sub, ok := strings.CutPrefix(mt, "video/"); ok {
		return sub
	}
	return ""
}

// ExtForFormat returns the file extension used for a container format.
func ExtForFormat(format string) string {
	if format == "" {
		return ".bin"
	}
	return "." + strings.ToLower(format)
}
