package api

import (
	"encoding/json"
	"net/http"

	"github.com/bft-labs/stableopt/pkg/log"
)

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// encodeFailedBody is sent when a response value cannot be encoded.
const encodeFailedBody = `{"error":"internal","detail":"response encoding failed"}` + "\n"

// writeJSON encodes v before writing anything, so a value that cannot be
// encoded becomes a 500 instead of a truncated 2xx. The encode error is
// returned.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(encodeFailedBody))
		return err
	}
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
	return nil
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	_ = writeJSON(w, status, errorResponse{Error: code, Detail: detail})
}

// respond writes v and logs values that failed to encode.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.logger.Error("encode response failed",
			log.String("path", r.URL.Path),
			log.Err(err),
		)
	}
}
