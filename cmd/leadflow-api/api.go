// Package main provides the Leadflow API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/leadflow/leadflow/pkg/eventbus"
	"github.com/leadflow/leadflow/pkg/lock"
	"github.com/leadflow/leadflow/pkg/metrics"
	"github.com/leadflow/leadflow/pkg/persistence"
	"github.com/leadflow/leadflow/pkg/registry"
	"github.com/leadflow/leadflow/pkg/services"
	"github.com/leadflow/leadflow/pkg/web"
	"github.com/leadflow/leadflow/pkg/workflow"
)

type API struct {
	logger       *slog.Logger
	persistence  persistence.Persistence
	registry     *registry.Registry
	eventBus     eventbus.EventBus
	locker       lock.Locker
	metricsStore metrics.Store
	validate     *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	locker lock.Locker,
	metricsStore metrics.Store,
) *API {
	return &API{
		logger:       logger,
		persistence:  persistence,
		registry:     registry,
		eventBus:     eventBus,
		locker:       locker,
		metricsStore: metricsStore,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	memberships := workflow.NewMemberships(a.persistence.LeadRepository(), a.logger)
	definitions := workflow.NewDefinitionStore(a.persistence)
	journal := workflow.NewJournal(a.persistence.LogRepository())
	executions := workflow.NewExecutions(a.persistence, memberships, definitions, a.locker, a.logger)

	workflowService := services.NewWorkflow(a.persistence, workflow.NewValidator(a.registry))
	executionService := services.NewExecution(executions, journal, a.eventBus, a.logger)
	leadService := services.NewLead(memberships, a.persistence.LeadRepository(), a.persistence.ExecutionRepository(), a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(workflowService, executionService, leadService, a.metricsStore, a.validate, a.registry)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Leadflow API")
	})

	app.Get("/node-types", handlers.GetNodeTypes)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id/definition", handlers.UpdateWorkflowDefinition)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Post("/:id/pause", handlers.PauseWorkflow)
	w.Post("/:id/archive", handlers.ArchiveWorkflow)
	w.Get("/:id/metrics", handlers.GetWorkflowMetrics)

	// Execution endpoints:
	w.Post("/:id/executions", handlers.TriggerExecution)
	w.Get("/:id/executions", handlers.GetExecutions)

	e := app.Group("/executions")
	e.Get("/:executionId", handlers.GetExecution)
	e.Get("/:executionId/logs", handlers.GetExecutionLogs)
	e.Post("/:executionId/cancel", handlers.CancelExecution)

	// Lead membership endpoints:
	l := app.Group("/workflows/:id/leads")
	l.Post("/", handlers.EnrollLead)
	l.Get("/", handlers.GetLeads)
	l.Post("/:leadId/pause", handlers.PauseLead)
	l.Post("/:leadId/resume", handlers.ResumeLead)
	l.Delete("/:leadId", handlers.RemoveLead)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
