package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/ai-teammate/mytube/moments/internal/ingest"
)

// JobSubmitter queues an ingest job; *queue.Producer implements it.
type JobSubmitter interface {
	Submit(ctx context.Context, job ingest.Job) error
}

// NewTriggerHandler returns an http.HandlerFunc that:
//  1. Parses the StorageObject from the finalize notification body.
//  2. Resolves the owner of the upload.
//  3. Submits an ingest job for the object.
//
// Notifications for other buckets are acknowledged and ignored. rawBucket may
// be empty to accept every bucket.
func NewTriggerHandler(sub JobSubmitter, rawBucket string, logger hclog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("trigger")
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		obj, err := ParseStorageObject(r.Body)
		if err != nil {
			logger.Warn("parse event", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if rawBucket != "" && obj.Bucket != rawBucket {
			logger.Debug("ignoring object in foreign bucket", "bucket", obj.Bucket, "name", obj.Name)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		owner, err := obj.OwnerID()
		if err != nil {
			logger.Warn("resolve owner", "error", err)
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		job := ingest.Job{OwnerID: owner, RawKey: obj.Name}
		// Generic types such as application/octet-stream fall back to the extension.
		if strings.HasPrefix(obj.ContentType, "video/") {
			job.MIMEType = obj.ContentType
		}
		if err := sub.Submit(r.Context(), job); err != nil {
			if errors.Is(err, ingest.ErrRejected) {
				logger.Warn("job rejected", "name", obj.Name, "error", err)
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			logger.Error("submit job", "name", obj.Name, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		logger.Info("job submitted", "name", obj.Name, "owner_id", owner)
		w.WriteHeader(http.StatusNoContent)
	}
}
