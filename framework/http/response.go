package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-beans/framework/container"
)

// Response writes the JSON bodies of the inspection API.
//
//	{"data": ...}                                 on success
//	{"message": "...", "kind": "...", "requestId": "..."}  on failure
type Response struct {
	w http.ResponseWriter
}

type dataBody struct {
	Data any `json:"data"`
}

type errorBody struct {
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// NewResponse wraps a ResponseWriter.
func NewResponse(w http.ResponseWriter) *Response {
	return &Response{w: w}
}

// JSON sends v as the body with the given status.
func (res *Response) JSON(status int, v any) {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	_ = json.NewEncoder(res.w).Encode(v)
}

// Success sends 200 {"data": v}.
func (res *Response) Success(v any) {
	res.JSON(http.StatusOK, dataBody{Data: v})
}

// NoContent sends 204 with no body.
func (res *Response) NoContent() {
	res.w.WriteHeader(http.StatusNoContent)
}

// Error sends {"message": message} with status.
//
//	res.Error(http.StatusBadRequest, "text is required")
func (res *Response) Error(status int, message string) {
	res.JSON(status, errorBody{Message: message})
}

// NotFound sends 404.
func (res *Response) NotFound(message ...string) {
	res.Error(http.StatusNotFound, orDefault(message, "Not found."))
}

// ServerError sends 500.
func (res *Response) ServerError(message ...string) {
	res.Error(http.StatusInternalServerError, orDefault(message, "Server Error."))
}

// Fail maps a container error to a status and sends it, tagged with the
// failure kind and the request id set by chi's RequestID middleware.
func (res *Response) Fail(r *http.Request, err error) {
	status, kind := classify(err)
	res.JSON(status, errorBody{
		Message:   err.Error(),
		Kind:      kind,
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// ── Helpers ──────────────────────────────────────────────────────────────────

var kinds = []struct {
	err    error
	status int
	kind   string
}{
	{container.ErrNoSuchDefinition, http.StatusNotFound, "not_found"},
	{container.ErrNoSuchAlias, http.StatusNotFound, "not_found"},
	{container.ErrCyclicAlias, http.StatusBadRequest, "cyclic_alias"},
	{container.ErrAbstractDefinition, http.StatusBadRequest, "abstract"},
	{container.ErrCircularReferenceUnresolvable, http.StatusConflict, "circular_reference"},
	{container.ErrCyclicDependsOn, http.StatusConflict, "circular_depends_on"},
	{container.ErrCreationNotAllowed, http.StatusServiceUnavailable, "shutting_down"},
	{container.ErrCreationFailure, http.StatusInternalServerError, "creation_failed"},
}

func classify(err error) (int, string) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status, k.kind
		}
	}
	return http.StatusInternalServerError, ""
}

func orDefault(ss []string, fallback string) string {
	if len(ss) > 0 && ss[0] != "" {
		return ss[0]
	}
	return fallback
}
