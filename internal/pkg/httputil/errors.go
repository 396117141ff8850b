package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/havenpoint/facility-response/internal/pkg/ctxlog"
)

// ErrorMapping pairs a sentinel error with the HTTP status it maps to.
// An empty Message means the error's own text is sent to the client.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string
}

func (m ErrorMapping) respond(w http.ResponseWriter, err error) {
	msg := m.Message
	if msg == "" {
		msg = err.Error()
	}
	Error(w, m.Status, msg)
}

// HandleError resolves err against the mapping table and writes the matched
// response. Errors with no mapping are logged and answered with a bare 500
// so internals never leak to the client.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			m.respond(w, err)
			return
		}
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
