// internal/api/handlers.go
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"keep/internal/engine"
	"keep/internal/errors"
)

// Handler exposes the version-control engine over HTTP. Callers
// arrive pre-authorized by the portal; the author identity comes in
// the X-Author header.
type Handler struct {
	engine *engine.Engine
}

func NewHandler(e *engine.Engine) *Handler {
	return &Handler{engine: e}
}

// Register wires every route onto the mux
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/repos", h.CreateRepository)
	mux.HandleFunc("GET /api/repos/{repo}", h.GetRepository)
	mux.HandleFunc("DELETE /api/repos/{repo}", h.DeleteRepository)
	mux.HandleFunc("POST /api/repos/{repo}/branches", h.CreateBranch)
	mux.HandleFunc("GET /api/repos/{repo}/branches", h.ListBranches)
	mux.HandleFunc("POST /api/repos/{repo}/branches/{branch}/commits", h.CreateCommit)
	mux.HandleFunc("GET /api/repos/{repo}/branches/{branch}/log", h.Log)
	mux.HandleFunc("GET /api/repos/{repo}/commits/{id}", h.GetCommit)
	mux.HandleFunc("GET /api/repos/{repo}/branches/{branch}/tree", h.GetTree)
	mux.HandleFunc("GET /api/repos/{repo}/branches/{branch}/file", h.GetFile)
	mux.HandleFunc("GET /api/repos/{repo}/branches/{branch}/readme", h.GetReadme)
}

func author(r *http.Request) string {
	return r.Header.Get("X-Author")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders engine errors with their kind and offending
// identifier; anything else becomes a bare 500.
func writeError(w http.ResponseWriter, err error) {
	if e, ok := err.(*errors.Error); ok {
		writeJSON(w, e.Code, e)
		return
	}
	writeJSON(w, http.StatusInternalServerError, errors.Internal(err.Error()))
}

func (h *Handler) CreateRepository(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		GroupID string `json:"group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("invalid request body", nil))
		return
	}

	repo, err := h.engine.CreateRepository(req.Name, req.GroupID, author(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, repo)
}

func (h *Handler) GetRepository(w http.ResponseWriter, r *http.Request) {
	repo, err := h.engine.GetRepository(r.PathValue("repo"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, repo)
}

func (h *Handler) DeleteRepository(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteRepository(r.PathValue("repo")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		SourceBranch string `json:"source_branch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("invalid request body", nil))
		return
	}

	b, err := h.engine.CreateBranch(r.PathValue("repo"), req.Name, req.SourceBranch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.engine.ListBranches(r.PathValue("repo"), r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

func (h *Handler) CreateCommit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string               `json:"message"`
		Changes []engine.ChangeInput `json:"changes"`
		Parents []string             `json:"parents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.InvalidInput("invalid request body", nil))
		return
	}

	c, err := h.engine.CreateCommit(
		r.PathValue("repo"),
		r.PathValue("branch"),
		req.Message,
		author(r),
		req.Changes,
		req.Parents,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetCommit(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.GetCommit(r.PathValue("repo"), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, errors.InvalidInput("invalid limit", v))
			return
		}
		limit = n
	}

	commits, err := h.engine.Log(r.PathValue("repo"), r.PathValue("branch"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, commits)
}

func (h *Handler) GetTree(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.engine.GetTree(
		r.PathValue("repo"),
		r.PathValue("branch"),
		r.URL.Query().Get("prefix"),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, errors.InvalidInput("path is required", nil))
		return
	}
	raw := r.URL.Query().Get("raw") == "true"

	meta, err := h.engine.GetFile(r.PathValue("repo"), r.PathValue("branch"), path, raw)
	if err != nil {
		writeError(w, err)
		return
	}

	if raw {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(meta.Content)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (h *Handler) GetReadme(w http.ResponseWriter, r *http.Request) {
	content, err := h.engine.GetReadme(
		r.PathValue("repo"),
		r.PathValue("branch"),
		r.URL.Query().Get("folder"),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(content)
}
