package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"inboxd/pkg/inbox"
	"inboxd/pkg/logger"
	"inboxd/pkg/security"
	"inboxd/pkg/utils"
)

// writeServiceError maps the pipeline error taxonomy to HTTP. Internal
// detail stays in the logs; callers only see a stable error code.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *inbox.ValidationError
	var rerr *inbox.RateLimitedError
	var aerr *inbox.AdapterError
	switch {
	case errors.As(err, &verr):
		utils.JSONError(w, http.StatusBadRequest, verr.Error())
	case errors.As(err, &rerr):
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(rerr.RetryAfter.Seconds()+0.999)))
		utils.JSONError(w, http.StatusTooManyRequests, "rate_limited")
	case errors.Is(err, inbox.ErrForbidden):
		utils.JSONError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, inbox.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, security.ErrDecryptFailed):
		logger.Error("request_encryption_failure", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "encryption_failed")
	case errors.As(err, &aerr):
		logger.Error("request_adapter_failure", "channel", aerr.Channel, "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "dispatch_failed")
	default:
		logger.Error("request_internal_failure", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "internal_error")
	}
}
