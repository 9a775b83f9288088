// Package http is the chi-based transport surface of the enrollment engine.
// Handlers decode, delegate to the workflow and encode; no business rules
// live here.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cohort/internal/audit"
	"cohort/internal/enrollment"
	"cohort/internal/lifecycle"
	"cohort/internal/volunteer"
	id "cohort/pkg/domain"
	dErrors "cohort/pkg/domain-errors"
)

type Handler struct {
	workflow *enrollment.Workflow
	trail    *audit.Trail
}

func NewHandler(workflow *enrollment.Workflow, trail *audit.Trail) *Handler {
	return &Handler{workflow: workflow, trail: trail}
}

type createRequest struct {
	FirstName  string            `json:"first_name"`
	Surname    string            `json:"surname"`
	Contact    string            `json:"contact,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Stage      string            `json:"stage,omitempty"`
	Status     string            `json:"status,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type identityResponse struct {
	VolunteerID string            `json:"volunteer_id"`
	SubjectCode string            `json:"subject_code,omitempty"`
	FirstName   string            `json:"first_name"`
	Surname     string            `json:"surname"`
	Contact     string            `json:"contact,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Stage       string            `json:"stage"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	CreatedBy   string            `json:"created_by"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty"`
	UpdatedBy   string            `json:"updated_by,omitempty"`
	Version     int64             `json:"version"`
}

func toIdentityResponse(identity *volunteer.Identity) identityResponse {
	return identityResponse{
		VolunteerID: identity.ID.String(),
		SubjectCode: identity.SubjectCode,
		FirstName:   identity.FirstName,
		Surname:     identity.Surname,
		Contact:     identity.Contact,
		Attributes:  identity.Attributes,
		Stage:       string(identity.Stage),
		Status:      string(identity.Status),
		CreatedAt:   identity.CreatedAt,
		CreatedBy:   identity.CreatedBy,
		UpdatedAt:   identity.UpdatedAt,
		UpdatedBy:   identity.UpdatedBy,
		Version:     identity.Version,
	}
}

func (h *Handler) createVolunteer(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.FirstName == "" || req.Surname == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "first_name and surname are required"))
		return
	}

	identity, err := h.workflow.CreateIdentity(r.Context(), enrollment.CreateParams{
		FirstName:  req.FirstName,
		Surname:    req.Surname,
		Contact:    req.Contact,
		Attributes: req.Attributes,
		Stage:      lifecycle.Stage(req.Stage),
		Status:     lifecycle.Status(req.Status),
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIdentityResponse(identity))
}

func (h *Handler) getVolunteer(w http.ResponseWriter, r *http.Request) {
	volunteerID, err := id.ParseVolunteerID(chi.URLParam(r, "volunteerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	identity, err := h.workflow.Get(r.Context(), volunteerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(identity))
}

// listVolunteers serves the worklist query plus point lookups by subject
// code or contact.
func (h *Handler) listVolunteers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if code := query.Get("subject_code"); code != "" {
		identity, err := h.workflow.FindBySubjectCode(r.Context(), code)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, []identityResponse{toIdentityResponse(identity)})
		return
	}
	if contact := query.Get("contact"); contact != "" {
		identity, err := h.workflow.FindByContact(r.Context(), contact)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, []identityResponse{toIdentityResponse(identity)})
		return
	}

	stage, err := lifecycle.ParseStage(query.Get("stage"))
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := lifecycle.ParseStatus(query.Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	identities, err := h.workflow.ListByState(r.Context(), lifecycle.State{Stage: stage, Status: status}, parseLimit(query.Get("limit")))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]identityResponse, 0, len(identities))
	for _, identity := range identities {
		out = append(out, toIdentityResponse(identity))
	}
	writeJSON(w, http.StatusOK, out)
}

type subjectCodeResponse struct {
	VolunteerID string `json:"volunteer_id"`
	SubjectCode string `json:"subject_code"`
}

func (h *Handler) ensureSubjectCode(w http.ResponseWriter, r *http.Request) {
	volunteerID, err := id.ParseVolunteerID(chi.URLParam(r, "volunteerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	code, err := h.workflow.EnsureSubjectCode(r.Context(), volunteerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subjectCodeResponse{VolunteerID: volunteerID.String(), SubjectCode: code})
}

type transitionRequest struct {
	Stage  string `json:"stage"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) applyTransition(w http.ResponseWriter, r *http.Request) {
	volunteerID, err := id.ParseVolunteerID(chi.URLParam(r, "volunteerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	stage, err := lifecycle.ParseStage(req.Stage)
	if err != nil {
		writeError(w, err)
		return
	}
	status, err := lifecycle.ParseStatus(req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.workflow.ApplyTransition(r.Context(), volunteerID, lifecycle.State{Stage: stage, Status: status}, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	identity, err := h.workflow.Get(r.Context(), volunteerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(identity))
}

type updateRequest struct {
	Updates map[string]string `json:"updates"`
}

func (h *Handler) updateVolunteer(w http.ResponseWriter, r *http.Request) {
	volunteerID, err := id.ParseVolunteerID(chi.URLParam(r, "volunteerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Updates) == 0 {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "updates must not be empty"))
		return
	}
	if err := h.workflow.ApplyUpdate(r.Context(), volunteerID, req.Updates); err != nil {
		writeError(w, err)
		return
	}
	identity, err := h.workflow.Get(r.Context(), volunteerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityResponse(identity))
}

type auditRecordResponse struct {
	ID         string                       `json:"id"`
	EntityType string                       `json:"entity_type"`
	EntityID   string                       `json:"entity_id"`
	Action     string                       `json:"action"`
	ActorID    string                       `json:"actor_id"`
	Timestamp  time.Time                    `json:"timestamp"`
	Changes    map[string]audit.FieldChange `json:"changes,omitempty"`
	Metadata   map[string]string            `json:"metadata,omitempty"`
}

func toAuditResponses(records []audit.Record) []auditRecordResponse {
	out := make([]auditRecordResponse, 0, len(records))
	for _, record := range records {
		out = append(out, auditRecordResponse{
			ID:         record.ID.String(),
			EntityType: record.EntityType,
			EntityID:   record.EntityID,
			Action:     string(record.Action),
			ActorID:    record.ActorID,
			Timestamp:  record.Timestamp,
			Changes:    record.Changes,
			Metadata:   record.Metadata,
		})
	}
	return out
}

func (h *Handler) volunteerHistory(w http.ResponseWriter, r *http.Request) {
	volunteerID, err := id.ParseVolunteerID(chi.URLParam(r, "volunteerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := h.workflow.History(r.Context(), volunteerID, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponses(records))
}

func (h *Handler) recentAudit(w http.ResponseWriter, r *http.Request) {
	records, err := h.trail.Recent(r.Context(), parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponses(records))
}

func (h *Handler) actorAudit(w http.ResponseWriter, r *http.Request) {
	actorID := chi.URLParam(r, "actorID")
	if actorID == "" {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "actor id is required"))
		return
	}
	records, err := h.trail.ActorActions(r.Context(), actorID, parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponses(records))
}

func parseLimit(raw string) int {
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}
