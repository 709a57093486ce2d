package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patient-feedback/survey-console/internal/backend"
	"github.com/patient-feedback/survey-console/internal/models"
	"github.com/patient-feedback/survey-console/internal/services"
	"github.com/patient-feedback/survey-console/internal/utils"
	"github.com/patient-feedback/survey-console/internal/validator"
)

const defaultHistoryLimit = 50

// CreateTemplateRequest creates an empty template in the caller's organization.
type CreateTemplateRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=255"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

type TemplateHandler struct {
	BaseHandler
	templateService services.TemplateService
	validator       *validator.Validator
}

func NewTemplateHandler(templateService services.TemplateService, v *validator.Validator, logger utils.Logger) *TemplateHandler {
	return &TemplateHandler{
		BaseHandler:     NewBaseHandler(logger),
		templateService: templateService,
		validator:       v,
	}
}

// ListTemplates lists survey templates
// @Summary List survey templates
// @Tags templates
// @Produce json
// @Param skip query int false "Offset" default(0)
// @Param limit query int false "Page size"
// @Success 200 {object} models.SurveyTemplateList
// @Router /templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Listing survey templates")

	list, err := h.templateService.List(c.Request.Context(), p, parsePage(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// ListActiveTemplates lists templates currently used for delivery
// @Summary List active survey templates
// @Tags templates
// @Produce json
// @Success 200 {object} models.SurveyTemplateList
// @Router /templates/active [get]
func (h *TemplateHandler) ListActiveTemplates(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Listing active survey templates")

	list, err := h.templateService.ListActive(c.Request.Context(), p, parsePage(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

// GetTemplate retrieves a survey template by ID
// @Summary Get survey template
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} models.SurveyTemplate
// @Failure 404 {object} ErrorResponse
// @Router /templates/{id} [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Getting survey template", "template_id", id)

	tpl, err := h.templateService.Get(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tpl)
}

// CreateTemplate creates a template with no questions
// @Summary Create survey template
// @Tags templates
// @Accept json
// @Produce json
// @Param request body CreateTemplateRequest true "Template"
// @Success 201 {object} models.SurveyTemplate
// @Failure 400 {object} ErrorResponse
// @Router /templates [post]
func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req CreateTemplateRequest
	if !h.bindJSON(c, h.validator, &req) {
		return
	}
	h.LogRequest(c, "Creating survey template", "name", req.Name)

	// new templates are active unless the caller says otherwise
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	tpl, err := h.templateService.Create(c.Request.Context(), p, services.TemplateInput{
		Name:        req.Name,
		Description: req.Description,
		Active:      active,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tpl)
}

// UpdateTemplate edits template metadata. Questions go through editor sessions.
// @Summary Update survey template metadata
// @Tags templates
// @Accept json
// @Produce json
// @Param id path string true "Template ID"
// @Param request body models.SurveyTemplateUpdate true "Fields to change"
// @Success 200 {object} models.SurveyTemplate
// @Failure 400 {object} ErrorResponse
// @Router /templates/{id} [patch]
func (h *TemplateHandler) UpdateTemplate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var update models.SurveyTemplateUpdate
	if !h.bindJSON(c, h.validator, &update) {
		return
	}
	h.LogRequest(c, "Updating survey template", "template_id", id)

	tpl, err := h.templateService.UpdateMetadata(c.Request.Context(), p, id, update)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tpl)
}

// ActivateTemplate marks a template active
// @Summary Activate survey template
// @Tags templates
// @Param id path string true "Template ID"
// @Success 200 {object} models.SurveyTemplate
// @Router /templates/{id}/activate [patch]
func (h *TemplateHandler) ActivateTemplate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Activating survey template", "template_id", id)

	tpl, err := h.templateService.Activate(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tpl)
}

// DeactivateTemplate
// @Summary Deactivate survey template
// @Tags templates
// @Param id path string true "Template ID"
// @Success 200 {object} models.SurveyTemplate
// @Router /templates/{id}/deactivate [patch]
func (h *TemplateHandler) DeactivateTemplate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Deactivating survey template", "template_id", id)

	tpl, err := h.templateService.Deactivate(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, tpl)
}

// DeleteTemplate deletes a survey template
// @Summary Delete survey template
// @Tags templates
// @Param id path string true "Template ID"
// @Success 200 {object} models.Message
// @Router /templates/{id} [delete]
func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Deleting survey template", "template_id", id)

	msg, err := h.templateService.Delete(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, msg)
}

// DuplicateTemplate copies a template, questions included
// @Summary Duplicate survey template
// @Tags templates
// @Param id path string true "Template ID"
// @Success 201 {object} models.SurveyTemplate
// @Router /templates/{id}/duplicate [post]
func (h *TemplateHandler) DuplicateTemplate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Duplicating survey template", "template_id", id)

	tpl, err := h.templateService.Duplicate(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tpl)
}

// GetSaveHistory lists the question save attempts recorded for a template
// @Summary Question save history
// @Tags templates
// @Param id path string true "Template ID"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} ListResponse
// @Router /templates/{id}/save-history [get]
func (h *TemplateHandler) GetSaveHistory(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	limit := parseIntQuery(c, "limit", defaultHistoryLimit)
	offset := parseIntQuery(c, "offset", 0)

	h.LogRequest(c, "Getting question save history", "template_id", id, "limit", limit, "offset", offset)

	audits, total, err := h.templateService.SaveHistory(c.Request.Context(), p, id, limit, offset)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Items:  audits,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetLastSave returns the latest successful question save made from the console
// @Summary Latest question save
// @Tags templates
// @Param id path string true "Template ID"
// @Success 200 {object} models.QuestionSetSaveAudit
// @Failure 404 {object} ErrorResponse
// @Router /templates/{id}/save-history/latest [get]
func (h *TemplateHandler) GetLastSave(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	h.LogRequest(c, "Getting latest question save", "template_id", id)

	audit, err := h.templateService.LastSave(c.Request.Context(), p, id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	if audit == nil {
		h.RespondWithError(c, http.StatusNotFound, "No saved question set recorded for this template", nil)
		return
	}

	c.JSON(http.StatusOK, audit)
}

func parsePage(c *gin.Context) backend.Page {
	return backend.Page{
		Skip:  parseIntQuery(c, "skip", 0),
		Limit: parseIntQuery(c, "limit", 0),
	}
}
