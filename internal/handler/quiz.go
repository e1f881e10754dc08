package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/questtracker/internal/auth"
	"github.com/dukerupert/questtracker/internal/model"
	"github.com/dukerupert/questtracker/internal/quiz"
	"github.com/dukerupert/questtracker/internal/store"
)

type QuizHandler struct {
	quizzes *quiz.Service
	users   *store.UserStore
	logger  *slog.Logger
}

func NewQuizHandler(quizzes *quiz.Service, users *store.UserStore, logger *slog.Logger) *QuizHandler {
	return &QuizHandler{quizzes: quizzes, users: users, logger: logger}
}

// List handles GET /api/quizzes. Parents get every quiz with its attempts;
// children get the quizzes assigned to them without the answers.
func (h *QuizHandler) List(w http.ResponseWriter, r *http.Request) {
	if auth.IsChild(r.Context()) {
		assigned, err := h.quizzes.ChildQuizzes(r.Context(), auth.UserID(r.Context()))
		if err != nil {
			writeServiceError(w, h.logger, err, "failed to list quizzes")
			return
		}
		writeJSON(w, http.StatusOK, assigned)
		return
	}
	summaries, err := h.quizzes.Quizzes(r.Context(), auth.FamilyID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list quizzes")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Get handles GET /api/quizzes/{id}.
func (h *QuizHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	s, err := h.quizzes.Quiz(r.Context(), auth.FamilyID(r.Context()), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to load quiz")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Create handles POST /api/quizzes.
func (h *QuizHandler) Create(w http.ResponseWriter, r *http.Request) {
	parent, ok := currentUser(w, r, h.users, h.logger)
	if !ok {
		return
	}
	var q model.Quiz
	if !decodeJSON(w, r, &q) {
		return
	}
	created, err := h.quizzes.CreateQuiz(r.Context(), parent, q)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create quiz")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// Delete handles DELETE /api/quizzes/{id}.
func (h *QuizHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.quizzes.DeleteQuiz(r.Context(), auth.FamilyID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete quiz")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitQuizRequest struct {
	Answers map[int64][]string `json:"answers"`
}

// Submit handles POST /api/quizzes/{id}/submit.
func (h *QuizHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req submitQuizRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	attempt, err := h.quizzes.Submit(r.Context(), auth.UserID(r.Context()), id, req.Answers)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to submit quiz")
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}
