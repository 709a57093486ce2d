package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/patient-feedback/survey-console/internal/services"
	"github.com/patient-feedback/survey-console/internal/utils"
	"github.com/patient-feedback/survey-console/internal/validator"
)

type HandlerManager struct {
	templateHandler *TemplateHandler
	editorHandler   *EditorHandler
}

func NewHandlerManager(
	templateService services.TemplateService,
	editorService services.EditorService,
	exportService services.ExportService,
	validator *validator.Validator,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		templateHandler: NewTemplateHandler(templateService, validator, logger),
		editorHandler:   NewEditorHandler(editorService, exportService, validator, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "survey-console",
		})
	})

	v1 := router.Group("/api/v1")
	v1.Use(PrincipalMiddleware())
	{
		templates := v1.Group("/templates")
		{
			templates.GET("", hm.templateHandler.ListTemplates)
			templates.POST("", hm.templateHandler.CreateTemplate)
			templates.GET("/active", hm.templateHandler.ListActiveTemplates)
			templates.GET("/:id", hm.templateHandler.GetTemplate)
			templates.PATCH("/:id", hm.templateHandler.UpdateTemplate)
			templates.PATCH("/:id/activate", hm.templateHandler.ActivateTemplate)
			templates.PATCH("/:id/deactivate", hm.templateHandler.DeactivateTemplate)
			templates.DELETE("/:id", hm.templateHandler.DeleteTemplate)
			templates.POST("/:id/duplicate", hm.templateHandler.DuplicateTemplate)
			templates.GET("/:id/save-history", hm.templateHandler.GetSaveHistory)
			templates.GET("/:id/save-history/latest", hm.templateHandler.GetLastSave)
		}

		sessions := v1.Group("/editor/sessions")
		{
			sessions.POST("", hm.editorHandler.OpenSession)
			sessions.GET("/:session_id", hm.editorHandler.GetSession)
			sessions.DELETE("/:session_id", hm.editorHandler.CloseSession)
			sessions.POST("/:session_id/save", hm.editorHandler.SaveSession)
			sessions.GET("/:session_id/export", hm.editorHandler.ExportQuestions)

			// Question editing
			sessions.POST("/:session_id/questions", hm.editorHandler.AddQuestion)
			sessions.PATCH("/:session_id/questions/:question_id", hm.editorHandler.UpdateQuestion)
			sessions.DELETE("/:session_id/questions/:question_id", hm.editorHandler.RemoveQuestion)
			sessions.POST("/:session_id/questions/:question_id/options", hm.editorHandler.AddOption)
			sessions.PUT("/:session_id/questions/:question_id/options/:index", hm.editorHandler.UpdateOption)
			sessions.DELETE("/:session_id/questions/:question_id/options/:index", hm.editorHandler.RemoveOption)
		}
	}
}
