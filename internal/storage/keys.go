package storage

import (
	"fmt"
	"path"
	"strings"
)

// VideoKey is the object key of a processed moment video.
func VideoKey(ownerID, contentID string) string {
	return "videos/" + ownerID + "/" + contentID + ".mp4"
}

// ThumbnailKey is the object key of a moment thumbnail in the given image format.
func ThumbnailKey(ownerID, contentID, format string) string {
	ext := strings.ToLower(format)
	switch ext {
	case "jpeg", "":
		ext = "jpg"
	}
	return "thumbnails/" + ownerID + "/" + contentID + "." + ext
}

// ContentIDFromKey derives the content ID from a raw object key of the form
// "raw/<id>.<ext>": the base name with the extension stripped.
func ContentIDFromKey(key string) (string, error) {
	base := path.Base(key)
	if base == "" || base == "." || base == "/" {
		return "", fmt.Errorf("object key %q has no base component", key)
	}
	id := strings.TrimSuffix(base, path.Ext(base))
	if id == "" {
		return "", fmt.Errorf("could not derive content ID from object key %q", key)
	}
	return id, nil
}
