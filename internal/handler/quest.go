package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strconv"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/objectstore"
	"github.com/dukerupert/questtracker/internal/quest"
	"github.com/dukerupert/questtracker/internal/store"
)

const maxProofBytes = 10 << 20

var proofTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ProofReader streams stored proof images back to parents.
type ProofReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, int64, error)
}

type QuestHandler struct {
	quests *quest.Service
	users  *store.UserStore
	proofs ProofReader
	logger *slog.Logger
}

func NewQuestHandler(quests *quest.Service, users *store.UserStore, proofs ProofReader, logger *slog.Logger) *QuestHandler {
	return &QuestHandler{quests: quests, users: users, proofs: proofs, logger: logger}
}

// ListTasks handles GET /api/tasks.
func (h *QuestHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.quests.Tasks(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateTask handles POST /api/tasks.
func (h *QuestHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	parent, ok := currentUser(w, r, h.users, h.logger)
	if !ok {
		return
	}
	var t model.Task
	if !decodeJSON(w, r, &t) {
		return
	}
	created, err := h.quests.CreateTask(r.Context(), parent, t)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create task")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateTask handles PUT /api/tasks/{id}.
func (h *QuestHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var t model.Task
	if !decodeJSON(w, r, &t) {
		return
	}
	t.ID = id
	updated, err := h.quests.UpdateTask(r.Context(), auth.FamilyID(r.Context()), t)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update task")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteTask handles DELETE /api/tasks/{id}.
func (h *QuestHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.quests.DeleteTask(r.Context(), auth.FamilyID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete task")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Board handles GET /api/quests: the child's tasks grouped for display.
func (h *QuestHandler) Board(w http.ResponseWriter, r *http.Request) {
	childID, ok := targetChild(w, r, h.users, h.logger)
	if !ok {
		return
	}
	board, err := h.quests.Board(r.Context(), childID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load quests")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

// Process handles POST /api/quests/process. Children run their own daily
// pass when the app opens; parents run it for the whole family.
func (h *QuestHandler) Process(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	if ac.Role == auth.RoleChild {
		res, err := h.quests.RunPass(r.Context(), ac.UserID)
		if err != nil {
			writeServiceError(w, h.logger, err, "failed to process quests")
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	results, err := h.quests.RunFamilyPass(r.Context(), ac.FamilyID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to process quests")
		return
	}
	if results == nil {
		results = []*quest.PassResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

// Submit handles POST /api/quests/{id}/submit as multipart/form-data with
// an optional "proof" image and a "nanny_approve" flag.
func (h *QuestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxProofBytes+(1<<20))

	var proof *quest.Proof
	nanny := false
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}
	if r.MultipartForm != nil {
		nanny, _ = strconv.ParseBool(r.FormValue("nanny_approve"))
		file, header, err := r.FormFile("proof")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			writeError(w, http.StatusBadRequest, "invalid proof upload")
			return
		default:
			defer file.Close()
			ct := header.Header.Get("Content-Type")
			if !proofTypes[ct] {
				writeError(w, http.StatusBadRequest, "proof must be a JPEG, PNG or WebP image")
				return
			}
			if header.Size > maxProofBytes {
				writeError(w, http.StatusRequestEntityTooLarge, "proof image is too large")
				return
			}
			proof = &quest.Proof{Body: file, ContentType: ct, Size: header.Size}
		}
	}

	ct, err := h.quests.Submit(r.Context(), auth.UserID(r.Context()), id, proof, nanny)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to submit quest")
		return
	}
	writeJSON(w, http.StatusOK, ct)
}

// Cancel handles POST /api/quests/{id}/cancel.
func (h *QuestHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ct, err := h.quests.Cancel(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to cancel submission")
		return
	}
	writeJSON(w, http.StatusOK, ct)
}

// Claim handles POST /api/quests/{id}/claim.
func (h *QuestHandler) Claim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	res, err := h.quests.Claim(r.Context(), auth.UserID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to claim quest")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type reviewFunc func(ctx context.Context, familyID, taskID, childID int64) (*model.ChildTask, error)

func (h *QuestHandler) review(w http.ResponseWriter, r *http.Request, fn reviewFunc) {
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	childID, ok := pathID(w, r, "child")
	if !ok {
		return
	}
	if _, ok := familyChild(w, r, h.users, h.logger, childID); !ok {
		return
	}
	ct, err := fn(r.Context(), auth.FamilyID(r.Context()), taskID, childID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to review quest")
		return
	}
	writeJSON(w, http.StatusOK, ct)
}

// Approve handles POST /api/tasks/{id}/children/{child}/approve.
func (h *QuestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.quests.Approve)
}

// Decline handles POST /api/tasks/{id}/children/{child}/decline.
func (h *QuestHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.quests.Decline)
}

// Proof handles GET /api/tasks/{id}/children/{child}/proof.
func (h *QuestHandler) Proof(w http.ResponseWriter, r *http.Request) {
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	childID, ok := pathID(w, r, "child")
	if !ok {
		return
	}
	if _, ok := familyChild(w, r, h.users, h.logger, childID); !ok {
		return
	}
	ct, err := h.quests.ChildTask(r.Context(), childID, taskID)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load quest")
		return
	}
	if ct.ProofKey == "" {
		writeError(w, http.StatusNotFound, "no proof for this quest")
		return
	}
	body, size, err := h.proofs.Get(r.Context(), ct.ProofKey)
	if errors.Is(err, objectstore.ErrNotConfigured) {
		writeError(w, http.StatusServiceUnavailable, "proof storage is not configured")
		return
	}
	if err != nil {
		h.logger.Error("load proof", "key", ct.ProofKey, "error", err)
		writeError(w, http.StatusBadGateway, "failed to load proof")
		return
	}
	defer body.Close()
	ctype := mime.TypeByExtension(path.Ext(ct.ProofKey))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	io.Copy(w, body)
}

// Pending handles GET /api/approvals.
func (h *QuestHandler) Pending(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.quests.PendingApprovals(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list approvals")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// History handles GET /api/history?status=&limit=.
func (h *QuestHandler) History(w http.ResponseWriter, r *http.Request) {
	childID, ok := targetChild(w, r, h.users, h.logger)
	if !ok {
		return
	}
	status := model.TaskStatus(r.URL.Query().Get("status"))
	entries, err := h.quests.History(r.Context(), childID, status, queryInt(r, "limit", 100))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// RequestQuest handles POST /api/quest-requests.
func (h *QuestHandler) RequestQuest(w http.ResponseWriter, r *http.Request) {
	var req model.QuestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.quests.RequestQuest(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to request quest")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// QuestRequests handles GET /api/quest-requests. Children see their own.
func (h *QuestHandler) QuestRequests(w http.ResponseWriter, r *http.Request) {
	var (
		reqs []model.QuestRequest
		err  error
	)
	if auth.IsChild(r.Context()) {
		reqs, err = h.quests.ChildQuestRequests(r.Context(), auth.UserID(r.Context()))
	} else {
		reqs, err = h.quests.QuestRequests(r.Context(), auth.FamilyID(r.Context()))
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list quest requests")
		return
	}
	if reqs == nil {
		reqs = []model.QuestRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

// ApproveRequest handles POST /api/quest-requests/{id}/approve. The body
// may override the proposed task's fields.
func (h *QuestHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	parent, ok := currentUser(w, r, h.users, h.logger)
	if !ok {
		return
	}
	var t model.Task
	if r.ContentLength != 0 && !decodeJSON(w, r, &t) {
		return
	}
	created, err := h.quests.ApproveRequest(r.Context(), parent, id, t)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to approve request")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeclineRequest handles POST /api/quest-requests/{id}/decline.
func (h *QuestHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	if err := h.quests.DeclineRequest(r.Context(), auth.FamilyID(r.Context()), id, req.Reason); err != nil {
		writeServiceError(w, h.logger, err, "failed to decline request")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
