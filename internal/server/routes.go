package server

import (
	"github.com/rd-agent/backend/internal/server/middleware"
	"github.com/rd-agent/backend/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	apiRoutes.GET("/features", routes.GetFeaturesHandler)

	// Project routes
	apiRoutes.GET("/projects", routes.GetProjectsHandler)
	apiRoutes.POST("/projects", routes.CreateProjectHandler, middleware.RequirePermission("project.create"))
	apiRoutes.PATCH("/projects/:id", routes.EditProjectHandler)
	apiRoutes.DELETE("/projects/:id", routes.DeleteProjectHandler, middleware.RequirePermission("project.delete"))

	// Member routes
	apiRoutes.GET("/projects/:id/members", routes.GetProjectMembersHandler)
	apiRoutes.POST("/projects/:id/members", routes.AddProjectMemberHandler)
	apiRoutes.DELETE("/projects/:id/members", routes.RemoveProjectMemberHandler)

	// Paper routes
	apiRoutes.GET("/projects/:id/papers", routes.GetProjectPapersHandler)
	apiRoutes.POST("/projects/:id/papers", routes.AddPaperHandler)
	apiRoutes.GET("/projects/:id/papers/:pmid/related", routes.GetRelatedPapersHandler)
	apiRoutes.GET("/papers/:pmid", routes.GetPaperHandler)
	apiRoutes.GET("/papers/:pmid/pdf", routes.GetPaperPDFHandler)
	apiRoutes.POST("/papers/:pmid/pdf", routes.RequestPaperPDFHandler)

	// Question and hypothesis routes
	apiRoutes.GET("/projects/:id/questions", routes.GetQuestionsHandler)
	apiRoutes.POST("/projects/:id/questions", routes.CreateQuestionHandler)
	apiRoutes.GET("/projects/:id/hypotheses", routes.GetHypothesesHandler)
	apiRoutes.POST("/projects/:id/hypotheses", routes.CreateHypothesisHandler)
	apiRoutes.PATCH("/hypotheses/:id", routes.EditHypothesisHandler)
	apiRoutes.DELETE("/hypotheses/:id", routes.DeleteHypothesisHandler)

	// Evidence routes
	apiRoutes.GET("/hypotheses/:id/evidence", routes.GetEvidenceHandler)
	apiRoutes.POST("/hypotheses/:id/evidence", routes.AddEvidenceHandler)
	apiRoutes.DELETE("/hypotheses/:id/evidence/:pmid", routes.DeleteEvidenceHandler)
	apiRoutes.POST("/hypotheses/:id/recompute", routes.RecomputeHypothesisHandler)

	// Triage routes
	apiRoutes.GET("/projects/:id/triage", routes.GetTriageHandler)
	apiRoutes.POST("/projects/:id/triage", routes.TriagePaperHandler, middleware.RequirePermission("triage.run"))
	apiRoutes.POST("/projects/:id/triage/batch", routes.TriageBatchHandler, middleware.RequirePermission("triage.run"))

	// Collection routes
	apiRoutes.GET("/projects/:id/collections", routes.GetCollectionsHandler)
	apiRoutes.POST("/projects/:id/collections", routes.CreateCollectionHandler)
	apiRoutes.GET("/projects/:id/collections/suggestions", routes.GetSuggestionsHandler)
	apiRoutes.POST("/projects/:id/collections/suggestions/apply", routes.ApplySuggestionHandler)
	apiRoutes.DELETE("/collections/:id", routes.DeleteCollectionHandler)
	apiRoutes.GET("/collections/:id/papers", routes.GetCollectionPapersHandler)
	apiRoutes.POST("/collections/:id/papers", routes.AddCollectionPaperHandler)
	apiRoutes.DELETE("/collections/:id/papers", routes.RemoveCollectionPaperHandler)

	// Annotation and experiment routes
	apiRoutes.GET("/projects/:id/annotations", routes.GetAnnotationsHandler)
	apiRoutes.POST("/projects/:id/annotations", routes.CreateAnnotationHandler)
	apiRoutes.DELETE("/annotations/:id", routes.DeleteAnnotationHandler)
	apiRoutes.GET("/projects/:id/experiments", routes.GetExperimentsHandler)
	apiRoutes.POST("/projects/:id/experiments", routes.CreateExperimentHandler)
	apiRoutes.PATCH("/experiments/:id", routes.EditExperimentHandler)

	// Summary routes
	apiRoutes.GET("/projects/:id/summary", routes.GetSummaryHandler)
	apiRoutes.POST("/projects/:id/summary", routes.RegenerateSummaryHandler, middleware.RequirePermission("summary.generate"))

	// Notification routes
	apiRoutes.GET("/notifications", routes.GetNotificationsHandler)
	apiRoutes.POST("/notifications/:id/read", routes.MarkNotificationReadHandler)
}
