package trees

import (
	"errors"

	"tree-sync/core/logger"
	"tree-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for trees.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the tree routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/trees")
	group.Post("/sync", h.HandleSync)
	group.Get("/sources/:kind", h.HandleListSources)
	group.Get("/:id", h.HandleGetTree)
}

// HandleSync reconciles the staging table into the canonical table.
// Query parameter dry_run=true computes the report without applying it.
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	dryRun := c.QueryBool("dry_run", false)
	l := logger.WithRayID(h.service.logger, c)

	report, err := h.service.Sync(c.UserContext(), dryRun)
	if err != nil {
		status := syncErrorStatus(err)
		l.Error("Tree sync failed", zap.Error(err), zap.Int("status", status), zap.Bool("retryable", reconcile.IsRetryable(err)))
		return c.Status(status).JSON(fiber.Map{
			"error":     err.Error(),
			"retryable": reconcile.IsRetryable(err),
		})
	}

	return c.JSON(report)
}

// HandleGetTree returns one tree. Query parameter table selects canonical
// (default) or staging.
func (h *Handler) HandleGetTree(c *fiber.Ctx) error {
	id := c.Params("id")
	table := c.Query("table", TableCanonical)
	l := logger.WithRayID(h.service.logger, c)

	rec, err := h.service.Lookup(c.UserContext(), table, id)
	switch {
	case errors.Is(err, ErrTreeNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrUnknownTable):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		l.Error("Tree lookup failed", zap.String("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(rec)
}

// HandleListSources lists the stored GeoJSON resources of a kind.
func (h *Handler) HandleListSources(c *fiber.Ctx) error {
	kind := c.Params("kind")
	if kind != KindTrees && kind != KindCityShape {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown resource kind " + kind})
	}

	names, err := h.service.Sources(c.UserContext(), kind)
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Listing sources failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"kind": kind, "names": names})
}

func syncErrorStatus(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrConstraintViolation):
		return fiber.StatusConflict
	case errors.Is(err, reconcile.ErrConnection):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, reconcile.ErrSchema), errors.Is(err, reconcile.ErrDuplicateKey):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}
