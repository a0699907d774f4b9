package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
)

// StorageObject holds the subset of object metadata the trigger needs from
// a storage finalize notification.
type StorageObject struct {
	Bucket      string            `json:"bucket"`
	Name        string            `json:"name"`
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
}

// OwnerID returns the owner_id object attribute, or the directory directly
// above the file for keys of the form "raw/<owner>/<id>.<ext>".
func (o StorageObject) OwnerID() (string, error) {
	if id := o.Metadata["owner_id"]; id != "" {
		return id, nil
	}
	dir := path.Dir(path.Clean(o.Name))
	if path.Dir(dir) == "raw" {
		if owner := path.Base(dir); owner != "" && owner != "." && owner != ".." {
			return owner, nil
		}
	}
	return "", fmt.Errorf("object %q carries no owner", o.Name)
}

// ParseStorageObject decodes a JSON-encoded StorageObject from r.
func ParseStorageObject(r io.Reader) (StorageObject, error) {
	var obj StorageObject
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return StorageObject{}, fmt.Errorf("decode storage object: %w", err)
	}
	if obj.Bucket == "" {
		return StorageObject{}, fmt.Errorf("storage object missing bucket")
	}
	if obj.Name == "" {
		return StorageObject{}, fmt.Errorf("storage object missing name")
	}
	if strings.HasSuffix(obj.Name, "/") {
		return StorageObject{}, fmt.Errorf("storage object %q is a folder placeholder", obj.Name)
	}
	return obj, nil
}
