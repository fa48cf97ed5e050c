package handlers

import (
	"encoding/json"
	"net/http"
	"time"
	"todoTree/internal/filter"
	"todoTree/internal/handlers/dto"
	"todoTree/internal/logger"
	"todoTree/internal/middleware"
	"todoTree/internal/render"
	"todoTree/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskHandler struct {
	TaskService Service
}

func NewTaskHandler(taskService Service) *TaskHandler {
	return &TaskHandler{
		TaskService: taskService,
	}
}

// Routes mounts the task endpoints. They expect middleware.Identity to run
// first.
func (h *TaskHandler) Routes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.GetTree)
		r.Post("/", h.PostTask)
		r.Get("/flat", h.GetFlat)
		r.Get("/urgent", h.GetUrgent)
		r.Get("/due-soon", h.GetDueSoon)
		r.Get("/export", h.Export)
		r.Get("/{id}", h.GetTaskByID)
		r.Put("/{id}", h.UpdateTaskByID)
		r.Delete("/{id}", h.DeleteTaskByID)
		r.Put("/{id}/parent", h.Reparent)
	})
}

func (h *TaskHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	logger.HttpRequestInfo(r, "HTTP: Health check")

	healthCheck(w, h.TaskService.HealthCheck(r.Context()))
}

func (h *TaskHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	snap, err := h.TaskService.Snapshot(r.Context(), userID)
	if err != nil {
		handleError(w, r, err, "get_tree")
		return
	}

	logger.Debug("HTTP_OUT: tree built",
		zap.Int("tasks", snap.Len()),
		zap.Duration("ms", time.Since(start)))

	writeJSON(w, http.StatusOK, dto.FromSnapshot(snap))
}

func (h *TaskHandler) GetFlat(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	f, err := filter.Parse(r.URL.Query())
	if err != nil {
		logger.Warn("HTTP: invalid filter",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))
		responseWithJSON(w, http.StatusBadRequest,
			toPayload("error", service.CodeValidation),
			toPayload("message", err.Error()))
		return
	}

	nodes, err := h.TaskService.FilteredTasks(r.Context(), userID, f)
	if err != nil {
		handleError(w, r, err, "get_flat")
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("tasks", dto.FromScoredList(nodes)),
		toPayload("count", len(nodes)))
}

func (h *TaskHandler) GetUrgent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	snap, err := h.TaskService.Snapshot(r.Context(), userID)
	if err != nil {
		handleError(w, r, err, "get_urgent")
		return
	}

	responseWithJSON(w, http.StatusOK, toPayload("tasks", dto.FromScoredList(snap.Urgent)))
}

func (h *TaskHandler) GetDueSoon(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	snap, err := h.TaskService.Snapshot(r.Context(), userID)
	if err != nil {
		handleError(w, r, err, "get_due_soon")
		return
	}

	responseWithJSON(w, http.StatusOK,
		toPayload("today", snap.Today),
		toPayload("tasks", dto.FromScoredList(snap.DueSoon)))
}

// Export writes the forest as a document, YAML unless format=json.
func (h *TaskHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "yaml"
	}
	if format != "yaml" && format != "json" {
		handleError(w, r, service.NewValidationError("format", "must be yaml or json"), "export")
		return
	}

	snap, err := h.TaskService.Snapshot(r.Context(), userID)
	if err != nil {
		handleError(w, r, err, "export")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="tasks.`+format+`"`)
	if format == "json" {
		w.Header().Set("Content-Type", "application/json")
		err = render.JSON(w, snap.Roots)
	} else {
		w.Header().Set("Content-Type", "application/yaml")
		err = render.YAML(w, snap.Roots)
	}
	if err != nil {
		logger.Error("HTTP: export failed", err, zap.String("format", format))
	}
}

func (h *TaskHandler) PostTask(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if !checkContentType(r, "application/json") {
		logger.Warn("HTTP: wrong content type",
			zap.String("expected", "application/json"),
			zap.String("received", r.Header.Get("Content-Type")),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}

	var request dto.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: failed to read JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if err := validateCreate(request); err != nil {
		handleError(w, r, err, "create_task")
		return
	}

	in := service.NewTask{
		Title:       request.Title,
		Description: request.Description,
		DueDate:     request.DueDate,
		ParentID:    request.ParentID,
		Completed:   request.Completed,
	}
	if request.Weight != nil {
		in.Weight = *request.Weight
	}

	created, err := h.TaskService.CreateTask(r.Context(), userID, in)
	if err != nil {
		handleError(w, r, err, "create_task")
		return
	}

	logger.Info("HTTP_OUT: task created",
		zap.String("task_id", created.ID.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusCreated))

	writeJSON(w, http.StatusCreated, dto.FromTask(created))
}

func (h *TaskHandler) GetTaskByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	node, err := h.TaskService.GetTask(r.Context(), userID, id)
	if err != nil {
		handleError(w, r, err, "get_task")
		return
	}

	writeJSON(w, http.StatusOK, dto.FromNode(node))
}

func (h *TaskHandler) UpdateTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !checkContentType(r, "application/json") {
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var request dto.UpdateTaskRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		logger.Warn("HTTP: failed to read JSON",
			zap.Error(err),
			zap.String("client_ip", r.RemoteAddr))

		responseWithError(w, http.StatusBadRequest, "invalid update body: "+err.Error())
		return
	}

	if err := validateUpdate(request); err != nil {
		handleError(w, r, err, "update_task")
		return
	}

	var parent *service.ParentChange
	if request.ParentID.Set {
		parent = &service.ParentChange{ParentID: request.ParentID.Value}
	}

	updated, err := h.TaskService.UpdateTask(r.Context(), userID, id, parent, request.Options()...)
	if err != nil {
		handleError(w, r, err, "update_task")
		return
	}

	logger.Info("HTTP_OUT: task updated",
		zap.String("task_id", id.String()),
		zap.Duration("ms", time.Since(start)),
		zap.Int("http_status", http.StatusOK))

	writeJSON(w, http.StatusOK, dto.FromTask(updated))
}

func (h *TaskHandler) Reparent(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if !checkContentType(r, "application/json") {
		responseWithError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var request dto.ReparentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		responseWithError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !request.ParentID.Set {
		handleError(w, r, service.NewValidationError("parent_id", "is required, use null for the top level"), "reparent")
		return
	}

	moved, err := h.TaskService.ReparentTask(r.Context(), userID, id, request.ParentID.Value)
	if err != nil {
		handleError(w, r, err, "reparent")
		return
	}

	writeJSON(w, http.StatusOK, dto.FromTask(moved))
}

func (h *TaskHandler) DeleteTaskByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger.HttpRequestInfo(r, "HTTP_IN:")

	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	deleted, err := h.TaskService.DeleteTask(r.Context(), userID, id)
	if err != nil {
		handleError(w, r, err, "delete_task")
		return
	}

	logger.Info("HTTP_OUT: task deleted",
		zap.String("task_id", id.String()),
		zap.Int("deleted", len(deleted)),
		zap.Duration("ms", time.Since(start)))

	responseWithJSON(w, http.StatusOK,
		toPayload("deleted", deleted),
		toPayload("count", len(deleted)))
}

func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	u, ok := middleware.UserFromContext(r.Context())
	if !ok {
		logger.Warn("HTTP: no user in request context", zap.String("path", r.URL.Path))
		responseWithError(w, http.StatusUnauthorized, "UNAUTHORIZED")
		return uuid.Nil, false
	}
	return u.ID, true
}

func taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idParam := chi.URLParam(r, "id")
	id, err := uuid.Parse(idParam)
	if err != nil || id == uuid.Nil {
		logger.Warn("HTTP: invalid task id",
			zap.String("id", idParam),
			zap.String("client_ip", r.RemoteAddr))

		handleError(w, r, service.NewValidationError("id", "must be a non-nil UUID"), "parse_id")
		return uuid.Nil, false
	}
	return id, true
}
