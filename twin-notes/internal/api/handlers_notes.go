package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bouvet-sqad/flowcheck/pkg/twincore"
	"github.com/bouvet-sqad/flowcheck/twin-notes/internal/store"
)

const msgBadCompleted = "Note completed status must be boolean"

type noteRequest struct {
	Title       string `validate:"min=4,max=100"`
	Description string `validate:"min=4,max=1000"`
	Category    string `validate:"oneof=Home Work Personal"`
}

var errNotOwner = errors.New("note belongs to another user")

// CreateNote handles POST /notes/api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req := noteRequest{
		Title:       strings.TrimSpace(fields["title"]),
		Description: strings.TrimSpace(fields["description"]),
		Category:    fields["category"],
	}
	if msg := h.validationMessage(req); msg != "" {
		twincore.Error(w, http.StatusBadRequest, msg)
		return
	}

	now := h.store.Clock.Now()
	note := store.Note{
		ID:          h.store.Notes.NextID(),
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      caller(r).user.ID,
	}
	h.store.Notes.Set(note.ID, note)
	twincore.Success(w, http.StatusOK, "Note successfully created", note)
}

// ListNotes handles GET /notes/api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	twincore.Success(w, http.StatusOK, "Notes successfully retrieved", h.store.NotesOf(caller(r).user.ID))
}

// GetNote handles GET /notes/api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	note, found := h.store.Notes.Get(id)
	if !found || note.UserID != caller(r).user.ID {
		twincore.Error(w, http.StatusNotFound, msgNoteNotFound)
		return
	}
	twincore.Success(w, http.StatusOK, "Note successfully retrieved", note)
}

// ReplaceNote handles PUT /notes/api/notes/{id}: title, description,
// category and completed are all required.
func (h *Handler) ReplaceNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	fields, err := readFields(r)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	req := noteRequest{
		Title:       strings.TrimSpace(fields["title"]),
		Description: strings.TrimSpace(fields["description"]),
		Category:    fields["category"],
	}
	if msg := h.validationMessage(req); msg != "" {
		twincore.Error(w, http.StatusBadRequest, msg)
		return
	}
	completed, err := strconv.ParseBool(fields["completed"])
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, msgBadCompleted)
		return
	}

	h.updateNote(w, r, id, func(n store.Note) store.Note {
		n.Title = req.Title
		n.Description = req.Description
		n.Category = req.Category
		n.Completed = completed
		return n
	})
}

// SetCompleted handles PATCH /notes/api/notes/{id}.
func (h *Handler) SetCompleted(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	fields, err := readFields(r)
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	completed, err := strconv.ParseBool(fields["completed"])
	if err != nil {
		twincore.Error(w, http.StatusBadRequest, msgBadCompleted)
		return
	}

	h.updateNote(w, r, id, func(n store.Note) store.Note {
		n.Completed = completed
		return n
	})
}

// DeleteNote handles DELETE /notes/api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, ok := h.noteID(w, r)
	if !ok {
		return
	}
	note, found := h.store.Notes.Get(id)
	if !found || note.UserID != caller(r).user.ID {
		twincore.Error(w, http.StatusNotFound, msgNoteNotFound)
		return
	}
	h.store.Notes.Delete(id)
	twincore.Success(w, http.StatusOK, "Note successfully deleted", nil)
}

func (h *Handler) noteID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if !validNoteID(id) {
		twincore.Error(w, http.StatusBadRequest, msgBadNoteID)
		return "", false
	}
	return id, true
}

func (h *Handler) updateNote(w http.ResponseWriter, r *http.Request, id string, fn func(store.Note) store.Note) {
	owner := caller(r).user.ID
	note, err := h.store.Notes.Update(id, func(n store.Note) (store.Note, error) {
		if n.UserID != owner {
			return n, errNotOwner
		}
		n = fn(n)
		n.UpdatedAt = h.store.Clock.Now()
		return n, nil
	})
	if err != nil {
		twincore.Error(w, http.StatusNotFound, msgNoteNotFound)
		return
	}
	twincore.Success(w, http.StatusOK, "Note successfully Updated", note)
}
