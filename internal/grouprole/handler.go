package grouprole

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/grouprole-condition/internal/platform/httpx"
)

// InvalidationEnqueuer schedules a background cache invalidation.
type InvalidationEnqueuer interface {
	EnqueueMembershipInvalidate(ctx context.Context, reason string) (string, error)
}

// Guard wraps routes with permission checks.
type Guard interface {
	RequireAny(perms ...string) func(http.Handler) http.Handler
}

// Handler exposes the role catalog and cache administration.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueuer InvalidationEnqueuer
	guard    Guard
	viewPerm string
	editPerm string
}

// NewHandler builds Handler instance. enqueuer may be nil, in which case the
// cache is invalidated inline.
func NewHandler(logger *slog.Logger, service *Service, enqueuer InvalidationEnqueuer, guard Guard, viewPerm, editPerm string) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, enqueuer: enqueuer, guard: guard, viewPerm: viewPerm, editPerm: editPerm}
}

// MountRoutes registers group role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(h.viewPerm))
		r.Get("/", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(h.editPerm))
		r.Post("/cache/invalidate", h.invalidateCache)
	})
}

type roleView struct {
	ID      string   `json:"id"`
	ShortID string   `json:"short_id"`
	Label   string   `json:"label"`
	Type    string   `json:"group_type"`
	Implied Audience `json:"audience,omitempty"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	var (
		roles []Role
		err   error
	)
	if groupType := r.URL.Query().Get("group_type"); groupType != "" {
		roles, err = h.service.RolesForGroupType(r.Context(), groupType)
	} else {
		roles, err = h.service.ListRoles(r.Context())
	}
	if err != nil {
		h.logger.Error("list group roles", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, roleView{
			ID:      role.ID.String(),
			ShortID: role.ID.Name,
			Label:   role.Label,
			Type:    role.ID.GroupType,
			Implied: role.Audience,
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) invalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer != nil {
		taskID, err := h.enqueuer.EnqueueMembershipInvalidate(r.Context(), "manual")
		if err != nil {
			h.logger.Error("enqueue membership invalidation", slog.Any("error", err))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue unavailable"})
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
		return
	}
	version, err := h.service.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("invalidate membership cache", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, map[string]string{"error": http.StatusText(http.StatusInternalServerError)})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"version": version})
}
