package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	aigateway "github.com/llmgw/core"
	"github.com/llmgw/core/internal/gwerrors"
	"github.com/llmgw/core/providers"
)

// writeJSON encodes v as the response body with Content-Type: application/json.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the §7 failure body {error:{type,message,code?,retryAfter?}}
// at the status gwerrors.HTTPStatus maps err's class to.
func writeError(w http.ResponseWriter, err error) {
	class := gwerrors.ClassOf(err)
	status := gwerrors.HTTPStatus(class)

	body := map[string]interface{}{
		"type":    string(class),
		"message": err.Error(),
	}
	if gwErr, ok := gwerrors.As(err); ok {
		if gwErr.Code != "" {
			body["code"] = gwErr.Code
		}
		if gwErr.RetryAfter > 0 {
			body["retryAfter"] = gwErr.RetryAfter
			w.Header().Set("Retry-After", fmt.Sprintf("%d", gwErr.RetryAfter))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": body})
}

func completionsHandler(gw *aigateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req providers.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, gwerrors.Wrap(gwerrors.ClassValidation, "malformed request body", err))
			return
		}
		resp, err := gw.Route(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, resp)
	}
}

func streamHandler(gw *aigateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req providers.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, gwerrors.Wrap(gwerrors.ClassValidation, "malformed request body", err))
			return
		}
		ch, err := gw.RouteStream(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		flusher, _ := w.(http.Flusher)
		for chunk := range ch {
			if chunk.Error != nil {
				errBody, _ := json.Marshal(map[string]interface{}{
					"error": map[string]interface{}{"type": string(gwerrors.ClassOf(chunk.Error)), "message": chunk.Error.Error()},
				})
				fmt.Fprintf(w, "data: %s\n\n", errBody)
				break
			}
			data, _ := json.Marshal(chunk)
			fmt.Fprintf(w, "data: %s\n\n", data)
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func embeddingsHandler(gw *aigateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req providers.EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, gwerrors.Wrap(gwerrors.ClassValidation, "malformed request body", err))
			return
		}
		resp, err := gw.Embed(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, resp)
	}
}
