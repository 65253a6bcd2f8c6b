package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	aigateway "github.com/llmgw/core"
	"github.com/llmgw/core/internal/gwerrors"
	"github.com/llmgw/core/providers"
	"github.com/go-chi/chi/v5"
)

// mountAPIv1 wires the versioned gateway surface alongside the legacy
// OpenAI-compatible /v1/* routes: POST /completions, /completions/stream,
// /embeddings, GET /models, /models/{id}, /models/provider/{name}, /health.
// Errors render the {error:{type,message,code?,retryAfter?}} body via
// gwerrors.ClassOf/HTTPStatus instead of the OpenAI-style shape the legacy
// routes use.
func mountAPIv1(gw *aigateway.Gateway, registry *providers.Registry) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/models", func(w http.ResponseWriter, _ *http.Request) {
		writeJSONv1(w, map[string]interface{}{"object": "list", "data": gw.AllModels()})
	})

	r.Get("/models/provider/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		p, ok := registry.Get(name)
		if !ok {
			writeErrorv1(w, gwerrors.New(gwerrors.ClassModelNotFound, "no provider registered with name: "+name))
			return
		}
		writeJSONv1(w, map[string]interface{}{"object": "list", "data": p.Models()})
	})

	r.Get("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		for _, m := range gw.AllModels() {
			if m.ID == id {
				writeJSONv1(w, m)
				return
			}
		}
		writeErrorv1(w, gwerrors.New(gwerrors.ClassModelNotFound, "no model found with id: "+id))
	})

	r.Post("/completions", func(w http.ResponseWriter, r *http.Request) {
		var req providers.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorv1(w, gwerrors.Wrap(gwerrors.ClassValidation, "malformed request body", err))
			return
		}
		resp, err := gw.Route(r.Context(), req)
		if err != nil {
			writeErrorv1(w, err)
			return
		}
		writeJSONv1(w, resp)
	})

	r.Post("/completions/stream", func(w http.ResponseWriter, r *http.Request) {
		var req providers.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorv1(w, gwerrors.Wrap(gwerrors.ClassValidation, "malformed request body", err))
			return
		}
		ch, err := gw.RouteStream(r.Context(), req)
		if err != nil {
			writeErrorv1(w, err)
			return
		}
		writeSSEv1(w, ch)
	})

	r.Post("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req providers.EmbeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorv1(w, gwerrors.Wrap(gwerrors.ClassValidation, "malformed request body", err))
			return
		}
		resp, err := gw.Embed(r.Context(), req)
		if err != nil {
			writeErrorv1(w, err)
			return
		}
		writeJSONv1(w, resp)
	})

	return r
}

func writeJSONv1(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorv1(w http.ResponseWriter, err error) {
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

func writeSSEv1(w http.ResponseWriter, ch <-chan providers.StreamChunk) {
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
