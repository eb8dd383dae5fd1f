package complaint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/nagarseva-api/internal/apperror"
	"github.com/redmonkez12/nagarseva-api/internal/auth"
	"github.com/redmonkez12/nagarseva-api/internal/authz"
	"github.com/redmonkez12/nagarseva-api/internal/blob"
	"github.com/redmonkez12/nagarseva-api/internal/httputil"
	"github.com/redmonkez12/nagarseva-api/internal/logging"
)

// multipart overhead allowed on top of the image itself
const formOverheadBytes = 1 << 20

// Handler contains HTTP handlers for complaint endpoints
type Handler struct {
	service       *Service
	maxImageBytes int64
}

func NewHandler(service *Service, maxImageBytes int64) *Handler {
	return &Handler{
		service:       service,
		maxImageBytes: maxImageBytes,
	}
}

// CreateRequest is the JSON form of a new complaint. Multipart requests use
// the same field names plus an optional "image" file.
type CreateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Urgency     string `json:"urgency"`
	Anonymous   bool   `json:"anonymous"`
}

// UpdateRequest is a partial update; omitted fields keep their stored value
type UpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Location    *string `json:"location,omitempty"`
	Urgency     *string `json:"urgency,omitempty"`
	Anonymous   *bool   `json:"anonymous,omitempty"`
	RemoveImage bool    `json:"removeImage,omitempty"`
}

// OwnerResponse is the resolved author of a complaint
type OwnerResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

// ComplaintResponse is the wire form of a complaint
type ComplaintResponse struct {
	ID             uuid.UUID      `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Location       string         `json:"location"`
	Urgency        Urgency        `json:"urgency"`
	ImageURL       string         `json:"imageUrl"`
	Status         Status         `json:"status"`
	Anonymous      bool           `json:"anonymous"`
	VisibleToAdmin bool           `json:"visibleToAdmin"`
	OwnerID        *uuid.UUID     `json:"ownerId,omitempty"`
	User           *OwnerResponse `json:"user,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// StatusChangeResponse acknowledges a resolve or reject
type StatusChangeResponse struct {
	Message   string            `json:"message"`
	Complaint ComplaintResponse `json:"complaint"`
}

// MessageResponse is a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

func toResponse(c *Complaint) ComplaintResponse {
	return ComplaintResponse{
		ID:             c.ID,
		Title:          c.Title,
		Description:    c.Description,
		Location:       c.Location,
		Urgency:        c.Urgency,
		ImageURL:       c.ImageURL,
		Status:         c.Status,
		Anonymous:      c.Anonymous,
		VisibleToAdmin: c.VisibleToAdmin(),
		OwnerID:        c.OwnerID,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toResponseWithOwner(c *WithOwner) ComplaintResponse {
	resp := toResponse(c.Complaint)
	if c.Owner != nil {
		resp.User = &OwnerResponse{ID: c.Owner.ID, Name: c.Owner.Name, Email: c.Owner.Email}
	}
	return resp
}

// Create handles complaint submission
// @Summary      Submit a complaint
// @Description  Create a complaint as the signed-in user. Accepts JSON, or multipart/form-data with an optional image.
// @Tags         complaints
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateRequest true "Complaint details"
// @Success      201 {object} ComplaintResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Failure      413 {object} httputil.ErrorResponse "Upload too large"
// @Failure      502 {object} httputil.ErrorResponse "Image upload failed"
// @Router       /complaints [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var (
		fields Fields
		image  *blob.Object
	)
	if isMultipart(r) {
		form, err := h.parseForm(w, r)
		if err != nil {
			h.respondBodyError(w, r, err)
			return
		}
		anonymous, err := form.boolValue("anonymous")
		if err != nil {
			httputil.RespondAppError(w, err)
			return
		}
		fields = Fields{
			Title:       form.value("title"),
			Description: form.value("description"),
			Location:    form.value("location"),
			Urgency:     form.value("urgency"),
			Anonymous:   anonymous != nil && *anonymous,
		}
		image = form.image
	} else {
		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("invalid complaint request body", "error", err.Error())
			httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
			return
		}
		fields = Fields(req)
	}

	c, err := h.service.Create(r.Context(), actor, fields, image)
	if err != nil {
		h.respondServiceError(w, r, "create complaint failed", err)
		return
	}

	httputil.RespondJSON(w, toResponse(c), http.StatusCreated)
}

// ListOwn handles listing the caller's complaints
// @Summary      List my complaints
// @Tags         complaints
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} ComplaintResponse
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Router       /complaints/my [get]
func (h *Handler) ListOwn(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	list, err := h.service.ListOwn(r.Context(), actor)
	if err != nil {
		h.respondServiceError(w, r, "list own complaints failed", err)
		return
	}

	resp := make([]ComplaintResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, toResponse(c))
	}
	httputil.RespondJSON(w, resp, http.StatusOK)
}

// ListAll handles the admin listing
// @Summary      List all complaints
// @Description  Admin only. Filters are exact matches and are combined.
// @Tags         complaints
// @Produce      json
// @Security     BearerAuth
// @Param        status   query string false "Pending, Resolved or Rejected"
// @Param        urgency  query string false "Low, Medium or High"
// @Param        location query string false "Exact location"
// @Param        sort     query string false "newest (default) or oldest"
// @Success      200 {array} ComplaintResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid filter"
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Failure      403 {object} httputil.ErrorResponse "Admin required"
// @Router       /complaints [get]
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter, err := ParseFilter(q.Get("status"), q.Get("urgency"), q.Get("location"), q.Get("sort"))
	if err != nil {
		httputil.RespondAppError(w, err)
		return
	}

	list, err := h.service.ListAll(r.Context(), actor, filter)
	if err != nil {
		h.respondServiceError(w, r, "list complaints failed", err)
		return
	}

	resp := make([]ComplaintResponse, 0, len(list))
	for _, c := range list {
		resp = append(resp, toResponseWithOwner(c))
	}
	httputil.RespondJSON(w, resp, http.StatusOK)
}

// GetByID handles fetching one complaint
// @Summary      Get a complaint
// @Description  Only the owner may fetch a single complaint.
// @Tags         complaints
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Complaint ID"
// @Success      200 {object} ComplaintResponse
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Failure      403 {object} httputil.ErrorResponse "Not the owner"
// @Failure      404 {object} httputil.ErrorResponse "Complaint not found"
// @Router       /complaints/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := complaintID(w, r)
	if !ok {
		return
	}

	c, err := h.service.GetByID(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, r, "get complaint failed", err)
		return
	}

	httputil.RespondJSON(w, toResponse(c), http.StatusOK)
}

// Update handles a partial update by the owner
// @Summary      Update a complaint
// @Description  Owner only. Omitted fields are kept. Accepts JSON, or multipart/form-data with an optional replacement image.
// @Tags         complaints
// @Accept       json,mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string        true "Complaint ID"
// @Param        request body UpdateRequest true "Fields to change"
// @Success      200 {object} ComplaintResponse
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      403 {object} httputil.ErrorResponse "Not the owner"
// @Failure      404 {object} httputil.ErrorResponse "Complaint not found"
// @Failure      409 {object} httputil.ErrorResponse "Complaint is closed"
// @Router       /complaints/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := complaintID(w, r)
	if !ok {
		return
	}

	var (
		patch Patch
		image *blob.Object
	)
	if isMultipart(r) {
		form, err := h.parseForm(w, r)
		if err != nil {
			h.respondBodyError(w, r, err)
			return
		}
		anonymous, err := form.boolValue("anonymous")
		if err != nil {
			httputil.RespondAppError(w, err)
			return
		}
		removeImage, err := form.boolValue("removeImage")
		if err != nil {
			httputil.RespondAppError(w, err)
			return
		}
		patch = Patch{
			Title:       form.optional("title"),
			Description: form.optional("description"),
			Location:    form.optional("location"),
			Urgency:     form.optional("urgency"),
			Anonymous:   anonymous,
			RemoveImage: removeImage != nil && *removeImage,
		}
		image = form.image
	} else {
		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Warn("invalid complaint update body", "error", err.Error())
			httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
			return
		}
		patch = Patch(req)
	}

	c, err := h.service.Update(r.Context(), actor, id, patch, image)
	if err != nil {
		h.respondServiceError(w, r, "update complaint failed", err)
		return
	}

	httputil.RespondJSON(w, toResponse(c), http.StatusOK)
}

// Delete handles removal by the owner
// @Summary      Delete a complaint
// @Tags         complaints
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Complaint ID"
// @Success      200 {object} MessageResponse
// @Failure      403 {object} httputil.ErrorResponse "Not the owner"
// @Failure      404 {object} httputil.ErrorResponse "Complaint not found"
// @Router       /complaints/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := complaintID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		h.respondServiceError(w, r, "delete complaint failed", err)
		return
	}

	httputil.RespondJSON(w, MessageResponse{Message: "Complaint deleted successfully"}, http.StatusOK)
}

// Resolve handles marking a complaint resolved
// @Summary      Resolve a complaint
// @Description  Admin only. Notifies the owner unless the complaint is anonymous.
// @Tags         complaints
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Complaint ID"
// @Success      200 {object} StatusChangeResponse
// @Failure      403 {object} httputil.ErrorResponse "Admin required"
// @Failure      404 {object} httputil.ErrorResponse "Complaint not found"
// @Failure      409 {object} httputil.ErrorResponse "Complaint is closed"
// @Router       /complaints/{id}/resolve [put]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.Resolve, "Complaint marked as resolved")
}

// Reject handles rejecting a complaint
// @Summary      Reject a complaint
// @Description  Admin only. Notifies the owner unless the complaint is anonymous.
// @Tags         complaints
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Complaint ID"
// @Success      200 {object} StatusChangeResponse
// @Failure      403 {object} httputil.ErrorResponse "Admin required"
// @Failure      404 {object} httputil.ErrorResponse "Complaint not found"
// @Failure      409 {object} httputil.ErrorResponse "Complaint is closed"
// @Router       /complaints/{id}/reject [put]
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.changeStatus(w, r, h.service.Reject, "Complaint rejected")
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request, set func(context.Context, authz.Actor, uuid.UUID) (*WithOwner, error), message string) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, ok := complaintID(w, r)
	if !ok {
		return
	}

	c, err := set(r.Context(), actor, id)
	if err != nil {
		h.respondServiceError(w, r, "status change failed", err)
		return
	}

	httputil.RespondJSON(w, StatusChangeResponse{Message: message, Complaint: toResponseWithOwner(c)}, http.StatusOK)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (authz.Actor, bool) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		httputil.RespondAppError(w, apperror.Unauthenticated("authentication required"))
		return authz.Actor{}, false
	}
	return session.Actor(), true
}

func complaintID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondAppError(w, apperror.Validation("id", "invalid complaint id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	logger := logging.GetLoggerFromContext(r.Context())
	if apperror.KindOf(err) == apperror.KindInternal {
		logger.Error(msg, "error", err.Error())
	} else {
		logger.Warn(msg, "error", err.Error())
	}
	httputil.RespondAppError(w, err)
}

func (h *Handler) respondBodyError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.GetLoggerFromContext(r.Context())

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		logger.Warn("complaint upload too large", "limit", tooLarge.Limit)
		httputil.RespondErrorWithCode(w, "request body too large", httputil.CodePayloadTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	logger.Warn("invalid multipart body", "error", err.Error())
	httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// complaintForm is a parsed multipart body
type complaintForm struct {
	values map[string][]string
	image  *blob.Object
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) (*complaintForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxImageBytes+formOverheadBytes)

	if err := r.ParseMultipartForm(h.maxImageBytes + formOverheadBytes); err != nil {
		return nil, err
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	form := &complaintForm{values: r.MultipartForm.Value}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read image part: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read image part: %w", err)
	}

	form.image = &blob.Object{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
	}
	return form, nil
}

func (f *complaintForm) value(key string) string {
	if v := f.values[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// optional returns nil when key was not sent, distinguishing omission from an empty value
func (f *complaintForm) optional(key string) *string {
	v, ok := f.values[key]
	if !ok || len(v) == 0 {
		return nil
	}
	s := v[0]
	return &s
}

func (f *complaintForm) boolValue(key string) (*bool, error) {
	raw := f.optional(key)
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(*raw))
	if err != nil {
		return nil, apperror.Validation(key, fmt.Sprintf("%s must be true or false", key))
	}
	return &b, nil
}
