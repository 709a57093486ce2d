package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/patient-feedback/survey-console/internal/services"
	"github.com/patient-feedback/survey-console/internal/utils"
	"github.com/patient-feedback/survey-console/internal/validator"
)

// ===== REQUEST STRUCTURES =====

type OpenEditorRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
}

// UpdateQuestionFieldRequest replaces one field of a question. Value must have
// the JSON type of the named field.
type UpdateQuestionFieldRequest struct {
	Field string          `json:"field" validate:"required,question_field"`
	Value json.RawMessage `json:"value" validate:"required"`
}

type UpdateOptionRequest struct {
	Value string `json:"value"`
}

type EditorHandler struct {
	BaseHandler
	editorService services.EditorService
	exportService services.ExportService
	validator     *validator.Validator
}

func NewEditorHandler(
	editorService services.EditorService,
	exportService services.ExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *EditorHandler {
	return &EditorHandler{
		BaseHandler:   NewBaseHandler(logger),
		editorService: editorService,
		exportService: exportService,
		validator:     validator,
	}
}

// OpenSession opens the question editor on a template
// @Summary Open editor session
// @Tags editor
// @Accept json
// @Produce json
// @Param request body OpenEditorRequest true "Template to edit"
// @Success 201 {object} services.EditorSnapshot
// @Failure 404 {object} ErrorResponse
// @Router /editor/sessions [post]
func (h *EditorHandler) OpenSession(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req OpenEditorRequest
	if !h.bind(c, &req) {
		return
	}

	h.LogRequest(c, "Opening editor session", "template_id", req.TemplateID)

	snap, err := h.editorService.Open(c.Request.Context(), p, req.TemplateID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, snap)
}

// GetSession returns the current state of an editor session
// @Summary Get editor session
// @Tags editor
// @Param session_id path string true "Session ID"
// @Success 200 {object} services.EditorSnapshot
// @Router /editor/sessions/{session_id} [get]
func (h *EditorHandler) GetSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	snap, err := h.editorService.Snapshot(c.Request.Context(), p, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// AddQuestion appends an empty short_text question
// @Summary Add question
// @Tags editor
// @Param session_id path string true "Session ID"
// @Success 201 {object} services.EditorSnapshot
// @Router /editor/sessions/{session_id}/questions [post]
func (h *EditorHandler) AddQuestion(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Adding question", "session_id", sessionID)

	snap, err := h.editorService.AddQuestion(c.Request.Context(), p, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, snap)
}

// UpdateQuestion replaces a single field of one question
// @Summary Update question field
// @Tags editor
// @Accept json
// @Param session_id path string true "Session ID"
// @Param question_id path string true "Question ID"
// @Param request body UpdateQuestionFieldRequest true "Field update"
// @Success 200 {object} services.EditorSnapshot
// @Failure 400 {object} ErrorResponse
// @Router /editor/sessions/{session_id}/questions/{question_id} [patch]
func (h *EditorHandler) UpdateQuestion(c *gin.Context) {
	sessionID, questionID, ok := h.questionParams(c)
	if !ok {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req UpdateQuestionFieldRequest
	if !h.bind(c, &req) {
		return
	}

	h.LogRequest(c, "Updating question field", "session_id", sessionID, "question_id", questionID, "field", req.Field)

	snap, err := h.editorService.UpdateQuestion(c.Request.Context(), p, sessionID, questionID, req.Field, req.Value)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// RemoveQuestion
// @Summary Remove question
// @Tags editor
// @Router /editor/sessions/{session_id}/questions/{question_id} [delete]
func (h *EditorHandler) RemoveQuestion(c *gin.Context) {
	sessionID, questionID, ok := h.questionParams(c)
	if !ok {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Removing question", "session_id", sessionID, "question_id", questionID)

	snap, err := h.editorService.RemoveQuestion(c.Request.Context(), p, sessionID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// AddOption appends an empty option
// @Summary Add option
// @Tags editor
// @Router /editor/sessions/{session_id}/questions/{question_id}/options [post]
func (h *EditorHandler) AddOption(c *gin.Context) {
	sessionID, questionID, ok := h.questionParams(c)
	if !ok {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Adding option", "session_id", sessionID, "question_id", questionID)

	snap, err := h.editorService.AddOption(c.Request.Context(), p, sessionID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, snap)
}

// UpdateOption sets the text of the option at index
// @Summary Update option
// @Tags editor
// @Accept json
// @Param index path int true "Option index"
// @Param request body UpdateOptionRequest true "Option text"
// @Router /editor/sessions/{session_id}/questions/{question_id}/options/{index} [put]
func (h *EditorHandler) UpdateOption(c *gin.Context) {
	sessionID, questionID, ok := h.questionParams(c)
	if !ok {
		return
	}
	index, ok := ParseIndexParam(c, "index")
	if !ok {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}

	var req UpdateOptionRequest
	if !h.bind(c, &req) {
		return
	}

	h.LogRequest(c, "Updating option", "session_id", sessionID, "question_id", questionID, "index", index)

	snap, err := h.editorService.UpdateOption(c.Request.Context(), p, sessionID, questionID, index, req.Value)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// RemoveOption
// @Summary Remove option
// @Tags editor
// @Router /editor/sessions/{session_id}/questions/{question_id}/options/{index} [delete]
func (h *EditorHandler) RemoveOption(c *gin.Context) {
	sessionID, questionID, ok := h.questionParams(c)
	if !ok {
		return
	}
	index, ok := ParseIndexParam(c, "index")
	if !ok {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Removing option", "session_id", sessionID, "question_id", questionID, "index", index)

	snap, err := h.editorService.RemoveOption(c.Request.Context(), p, sessionID, questionID, index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, snap)
}

// SaveSession submits the question set. The session ends on success; on
// failure it stays open so the save can be retried.
// @Summary Save questions
// @Tags editor
// @Success 200 {object} SuccessResponse
// @Failure 502 {object} ErrorResponse
// @Router /editor/sessions/{session_id}/save [post]
func (h *EditorHandler) SaveSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Saving questions", "session_id", sessionID)

	if err := h.editorService.Save(c.Request.Context(), p, sessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Questions updated successfully", gin.H{"session_id": sessionID})
}

// CloseSession discards unsaved edits
// @Summary Close editor session
// @Tags editor
// @Success 204
// @Router /editor/sessions/{session_id} [delete]
func (h *EditorHandler) CloseSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Closing editor session", "session_id", sessionID)

	if err := h.editorService.Close(c.Request.Context(), p, sessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ExportQuestions downloads the session's questions as a spreadsheet
// @Summary Export questions
// @Tags editor
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /editor/sessions/{session_id}/export [get]
func (h *EditorHandler) ExportQuestions(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Exporting questions", "session_id", sessionID)

	export, err := h.exportService.ExportQuestions(c.Request.Context(), p, sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(export.Filename))
	c.Data(http.StatusOK, services.XLSXContentType, export.Content)
}

func (h *EditorHandler) questionParams(c *gin.Context) (string, string, bool) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return "", "", false
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return "", "", false
	}
	return sessionID, questionID, true
}

// bind decodes the JSON body and runs struct validation, writing a 400 on failure.
func (h *EditorHandler) bind(c *gin.Context, req interface{}) bool {
	return h.bindJSON(c, h.validator, req)
}
