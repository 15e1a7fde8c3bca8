package httpserver

import (
	"net/http"

	"github.com/GateStream/orchestrator/pkg/responders"

	"github.com/GateStream/orchestrator/internal/gateerr"
)

// errorBody is the facade's error envelope. The kind doubles as the
// machine-readable code so frontends can branch without string matching.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps any orchestration error onto its HTTP status and the
// stable error envelope.
func writeError(w http.ResponseWriter, err error) {
	kind := gateerr.KindOf(err)
	responders.JSON(w, kind.HTTPStatus(), errorBody{
		Error:   string(kind),
		Message: err.Error(),
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	responders.JSON(w, http.StatusBadRequest, errorBody{
		Error:   "bad_request",
		Message: message,
	})
}

func writeNotFound(w http.ResponseWriter, message string) {
	responders.JSON(w, http.StatusNotFound, errorBody{
		Error:   string(gateerr.KindNotFound),
		Message: message,
	})
}
