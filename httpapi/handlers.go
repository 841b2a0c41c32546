package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/sandbox"
)

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	Script *string `json:"script"`
}

// ExecuteResponse is returned for every execute call, including rejected
// ones: result and error are null when unset.
type ExecuteResponse struct {
	Result json.RawMessage `json:"result"`
	Stdout string          `json:"stdout"`
	Error  *string         `json:"error"`
}

// NewExecuteResponse converts an engine Result into the wire shape.
func NewExecuteResponse(r sandbox.Result) ExecuteResponse {
	if r.Failure != nil {
		msg := r.Failure.Message
		return ExecuteResponse{Error: &msg}
	}
	value := r.Value
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	return ExecuteResponse{Result: value, Stdout: r.Stdout}
}

func errorResponse(message string) ExecuteResponse {
	return ExecuteResponse{Error: &message}
}

// StatusFor maps a Result to an HTTP status: request problems are 400,
// faults in the service 500, and anything the script itself did 200.
func StatusFor(r sandbox.Result) int {
	if r.Failure == nil {
		return http.StatusOK
	}
	switch {
	case errors.Is(r.Failure, sandbox.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(r.Failure, sandbox.ErrInternal):
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse("Content-Type must be application/json"))
		return
	}

	var req ExecuteRequest
	body := http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.logger.Warn("invalid execution request body", zap.Error(err))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("Request body too large"))
			return
		}
		s.writeJSON(w, http.StatusBadRequest, errorResponse("Request body must be a JSON object with a string 'script' field"))
		return
	}

	if req.Script == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse("Missing 'script' field in JSON body"))
		return
	}

	result := s.executor.Execute(r.Context(), *req.Script)
	s.writeJSON(w, StatusFor(result), NewExecuteResponse(result))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Python Code Execution API",
		"version":  Version,
		"security": s.executor.Mode(),
		"endpoints": map[string]string{
			"GET /":         "API documentation",
			"GET /health":   "Health check",
			"GET /metrics":  "Prometheus metrics",
			"POST /execute": "Execute Python script (requires \"script\" field with main() function)",
		},
		"example_request": map[string]string{
			"script": "def main():\n    return {'message': 'Hello World', 'result': 42}",
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
	}
}
