package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jobsift/jobsift/internal/handler/dto"
	"github.com/jobsift/jobsift/internal/model"
	"github.com/jobsift/jobsift/internal/service"
)

// FilterAnnouncer tells the scrapers about a newly stored shared filter.
type FilterAnnouncer interface {
	AnnounceFilter(f *model.Filter)
}

// UserHandler handles HTTP requests for users, their filters and jobs.
type UserHandler struct {
	svc       *service.JobBoardService
	announcer FilterAnnouncer
	logger    *slog.Logger
}

// NewUserHandler creates a new UserHandler. announcer may be nil.
func NewUserHandler(svc *service.JobBoardService, announcer FilterAnnouncer, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		svc:       svc,
		announcer: announcer,
		logger:    logger,
	}
}

// Register handles POST /user.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, created, err := h.svc.RegisterUser(r.Context(), service.RegisterUserInput{
		UserID:   req.UserID,
		UserName: req.UserName,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	if !created {
		writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "User already exists."})
		return
	}

	h.logger.Info("user_registered", "user_id", user.UserID)

	writeJSON(w, http.StatusCreated, dto.ToUserResponse(user))
}

// Get handles GET /user?userId=.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToUserResponse(user))
}

// ListFilters handles GET /user/filters?userId=.
func (h *UserHandler) ListFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := h.svc.ListFilters(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToFilterResponses(filters))
}

// AddFilter handles POST /user/filters?userId=.
func (h *UserHandler) AddFilter(w http.ResponseWriter, r *http.Request) {
	var req dto.AddFilterRequest
	if !h.decode(w, r, &req) {
		return
	}

	userID := r.URL.Query().Get("userId")
	res, err := h.svc.AddFilter(r.Context(), service.AddFilterInput{
		UserID:     userID,
		SiteNames:  req.SiteName,
		Keywords:   req.Keywords,
		State:      req.State,
		Experience: req.Experience,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("filter_attached",
		"user_id", userID,
		"filter_id", res.Filter.ID,
		"document_hash", res.Filter.DocumentHash,
		"created", res.Created,
	)

	if res.Created && h.announcer != nil {
		h.announcer.AnnounceFilter(res.Filter)
	}

	writeJSON(w, http.StatusCreated, dto.ToFilterResponse(res.Filter))
}

// RemoveFilter handles DELETE /user/filters?userId=&filterId=.
func (h *UserHandler) RemoveFilter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, filterID := q.Get("userId"), q.Get("filterId")

	if err := h.svc.RemoveFilter(r.Context(), userID, filterID); err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("filter_detached", "user_id", userID, "filter_id", filterID)

	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Filter removed."})
}

// ListJobs handles GET /user/jobs?userId=.
func (h *UserHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.svc.ListJobs(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToJobResponses(jobs))
}

// MarkApplied handles POST /user/applied?userId=&jobId=.
func (h *UserHandler) MarkApplied(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, jobID := q.Get("userId"), q.Get("jobId")

	record, err := h.svc.MarkApplied(r.Context(), userID, jobID)
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("job_applied", "user_id", userID, "job_id", jobID)

	writeJSON(w, http.StatusCreated, dto.ToAppliedJobResponse(*record))
}

// decode reads a JSON request body into dst, writing the error response on failure.
func (h *UserHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large")
		return false
	}
	h.writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
	return false
}

// handleServiceError maps service errors to HTTP responses.
func (h *UserHandler) handleServiceError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		h.writeError(w, http.StatusBadRequest, "INVALID_INPUT", verr.Error())
	case errors.Is(err, service.ErrUserNotFound):
		h.writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	case errors.Is(err, service.ErrFilterNotFound):
		h.writeError(w, http.StatusNotFound, "FILTER_NOT_FOUND", "Filter not found")
	case errors.Is(err, service.ErrDuplicateFilter):
		h.writeError(w, http.StatusConflict, "DUPLICATE_FILTER", "This job search configuration already exists")
	default:
		h.logger.Error("internal_error", "error", err)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// writeError writes an error response.
func (h *UserHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
