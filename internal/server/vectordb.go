package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/bankbot/aicore/internal/logging"
	"github.com/bankbot/aicore/internal/rag"
	"github.com/bankbot/aicore/internal/task"
)

// maxUploadMemory caps how much of a multipart upload is buffered in memory
// before spilling to disk.
const maxUploadMemory = 32 << 20 // 32 MiB

// defaultSearchLimit is the number of results returned by the search route
// when the request omits a limit.
const defaultSearchLimit = 3

// handleLoad handles POST /api/v1/vectordb/load. It accepts a multipart
// dataset upload, validates the filename, persists the payload to a temp
// file, and hands it to the background runner. The response is 202 with a
// task id; the upload's fate is observable only through the task route.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".json") {
		http.Error(w, "only .json files are supported", http.StatusBadRequest)
		return
	}

	collection := r.FormValue("collection_name")
	if collection == "" {
		collection = s.cfg.DefaultCollection
	}

	tmp, err := os.CreateTemp("", "aicore-upload-*.json")
	if err != nil {
		log.Error("load: create temp file failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		log.Error("load: buffer upload failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		log.Error("load: close temp file failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	id := s.tracker.Create()
	job := task.Job{TaskID: id, DatasetPath: tmp.Name(), Collection: collection}
	if err := s.runner.Submit(job); err != nil {
		// The runner marks the task failed and removes the temp file; the
		// caller still gets the task id to observe the failure.
		log.Error("load: submit ingestion job failed",
			slog.String("task_id", id),
			slog.Any("error", err),
		)
		s.metrics.ingestTasksTotal.WithLabelValues("rejected").Inc()
	} else {
		s.metrics.ingestTasksTotal.WithLabelValues("queued").Inc()
	}

	log.Info("load: ingestion task accepted",
		slog.String("task_id", id),
		slog.String("collection", collection),
		slog.String("filename", header.Filename),
	)

	resp := loadResponse{
		TaskID:  id,
		Status:  string(task.StateQueued),
		Message: fmt.Sprintf("dataset accepted for loading into collection %q", collection),
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("load encode error", slog.Any("error", err))
	}
}

// handleTask handles GET /api/v1/vectordb/task/{id}: the polling side of the
// asynchronous load contract.
func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	status, err := s.tracker.Get(id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		logging.FromContext(r.Context()).Error("task lookup failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := struct {
		TaskID string `json:"task_id"`
		task.Status
	}{TaskID: id, Status: status}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleCollections handles GET /api/v1/vectordb/collections.
func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	names, err := s.vstore.ListCollections(r.Context())
	if err != nil {
		log.Error("list collections failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := collectionsResponse{Collections: make([]collectionName, 0, len(names))}
	for _, name := range names {
		resp.Collections = append(resp.Collections, collectionName{Name: name})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleCollectionInfo handles GET /api/v1/vectordb/collection/{name}.
func (s *Server) handleCollectionInfo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	info, err := s.vstore.CollectionInfo(r.Context(), name)
	if err != nil {
		if errors.Is(err, rag.ErrCollectionNotFound) {
			http.Error(w, "collection not found", http.StatusNotFound)
			return
		}
		logging.FromContext(r.Context()).Error("collection info failed",
			slog.String("collection", name),
			slog.Any("error", err),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

// handleSearch handles POST /api/v1/vectordb/search/{name}: raw similarity
// search with no LLM involved, for inspecting what retrieval would feed the
// answer pipeline.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	name := r.PathValue("name")

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	vectors, err := s.embedder.Embed(r.Context(), []string{req.Text})
	if err != nil || len(vectors) == 0 {
		log.Error("search: embedding failed", slog.Any("error", err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	points, err := s.vstore.Search(r.Context(), name, vectors[0], limit)
	if err != nil {
		if errors.Is(err, rag.ErrCollectionNotFound) {
			http.Error(w, "collection not found", http.StatusNotFound)
			return
		}
		log.Error("search: vector search failed",
			slog.String("collection", name),
			slog.Any("error", err),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := searchResponse{Results: make([]searchResult, 0, len(points))}
	for _, p := range points {
		resp.Results = append(resp.Results, searchResult{
			Score:    p.Score,
			Question: p.Question,
			Answer:   p.Answer,
			ID:       p.ID,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
