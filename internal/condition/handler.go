package condition

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
	"github.com/odyssey-erp/grouprole-condition/internal/platform/httpx"
	"github.com/odyssey-erp/grouprole-condition/internal/rbac"
	"github.com/odyssey-erp/grouprole-condition/internal/shared"
	"github.com/odyssey-erp/grouprole-condition/internal/view"
)

// RoleCatalog enumerates group role definitions for the configuration form.
type RoleCatalog interface {
	ListRoles(ctx context.Context) ([]grouprole.Role, error)
	RolesForGroupType(ctx context.Context, groupType string) ([]grouprole.Role, error)
}

// Handler manages condition endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	catalog   RoleCatalog
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	validator *validator.Validate
	language  language.Tag
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, catalog RoleCatalog, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware, lang language.Tag) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		catalog:   catalog,
		templates: templates,
		csrf:      csrf,
		rbac:      rbac,
		validator: validator.New(),
		language:  lang,
	}
}

// MountRoutes registers condition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(rbac.PermConditionsView, rbac.PermConditionsEdit))
		r.Get("/", h.listConditions)
		r.Get("/definition", h.showDefinition)
		r.Get("/{id}", h.showCondition)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAll(rbac.PermConditionsEdit))
		r.Post("/", h.createCondition)
		r.Put("/{id}", h.replaceCondition)
		r.Delete("/{id}", h.deleteCondition)
		r.Get("/{id}/edit", h.showEditForm)
		r.Post("/{id}/edit", h.submitEditForm)
	})
	r.Post("/{id}/evaluate", h.evaluateCondition)
}

type conditionRequest struct {
	Label      string   `json:"label" validate:"required,max=255"`
	GroupType  string   `json:"group_type" validate:"max=64"`
	GroupRoles []string `json:"group_roles" validate:"dive,max=128"`
	Negate     bool     `json:"negate"`
}

func (req conditionRequest) input() Input {
	return Input{
		Label:     req.Label,
		GroupType: req.GroupType,
		Config:    Config{GroupRoles: req.GroupRoles, Negate: req.Negate},
	}
}

type evaluateRequest struct {
	GroupID *int64 `json:"group_id" validate:"omitempty,gt=0"`
}

type conditionView struct {
	Record
	Summary string `json:"summary,omitempty"`
}

func (h *Handler) listConditions(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list conditions", err)
		return
	}
	p := PrinterForRequest(r, h.language)
	views := make([]conditionView, 0, len(records))
	for _, rec := range records {
		summary, _ := h.service.Instance(rec).Summary(p)
		views = append(views, conditionView{Record: rec, Summary: summary})
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) showDefinition(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, GroupRoleDefinition)
}

func (h *Handler) showCondition(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	summary, _ := h.service.Instance(rec).Summary(PrinterForRequest(r, h.language))
	httpx.JSON(w, http.StatusOK, conditionView{Record: rec, Summary: summary})
}

func (h *Handler) createCondition(w http.ResponseWriter, r *http.Request) {
	var req conditionRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Create(r.Context(), req.input())
	if err != nil {
		h.fail(w, "create condition", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) replaceCondition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req conditionRequest
	if !h.decode(w, r, &req) {
		return
	}
	rec, err := h.service.Update(r.Context(), id, req.input())
	if err != nil {
		h.fail(w, "update condition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) deleteCondition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete condition", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) evaluateCondition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req evaluateRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	actor := shared.ActorFromContext(r.Context())
	result, err := h.service.Evaluate(r.Context(), id, req.GroupID, actor, PrinterForRequest(r, h.language))
	if err != nil {
		h.fail(w, "evaluate condition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	form, err := h.buildForm(r, rec, rec.Config)
	if err != nil {
		h.fail(w, "build condition form", err)
		return
	}
	h.renderForm(w, r, rec, form, nil, http.StatusOK)
}

func (h *Handler) submitEditForm(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadRecord(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed form body")
		return
	}
	form, err := h.buildForm(r, rec, rec.Config)
	if err != nil {
		h.fail(w, "build condition form", err)
		return
	}
	negate := truthy(r.PostForm.Get("negate"))
	cfg, err := SubmitForm(form, checkboxValues(r.PostForm, "group_roles"), negate)
	if err != nil {
		p := PrinterForRequest(r, h.language)
		h.renderForm(w, r, rec, form, map[string]string{"group_roles": p.Sprintf(msgFormIllegalValue)}, http.StatusUnprocessableEntity)
		return
	}
	if _, err := h.service.SaveConfig(r.Context(), rec.ID, cfg); err != nil {
		h.fail(w, "save condition config", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: PrinterForRequest(r, h.language).Sprintf(msgFormSaved)})
	}
	http.Redirect(w, r, r.URL.Path, http.StatusSeeOther)
}

func (h *Handler) buildForm(r *http.Request, rec Record, cfg Config) (Form, error) {
	var (
		roles []grouprole.Role
		err   error
	)
	if rec.GroupType != "" {
		roles, err = h.catalog.RolesForGroupType(r.Context(), rec.GroupType)
	} else {
		roles, err = h.catalog.ListRoles(r.Context())
	}
	if err != nil {
		return Form{}, err
	}
	return BuildForm(PrinterForRequest(r, h.language), roles, cfg), nil
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, rec Record, form Form, errs map[string]string, status int) {
	sess := shared.SessionFromContext(r.Context())
	var (
		csrfToken string
		flash     *shared.FlashMessage
	)
	if sess != nil {
		csrfToken, _ = h.csrf.Token(sess)
		flash = sess.PopFlash()
	}
	data := view.TemplateData{
		Title:       rec.Label,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        map[string]any{"Record": rec, "Form": form, "Errors": errs},
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, "pages/condition_form.html", data); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) loadRecord(w http.ResponseWriter, r *http.Request) (Record, bool) {
	id, ok := parseID(w, r)
	if !ok {
		return Record{}, false
	}
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get condition", err)
		return Record{}, false
	}
	return rec, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fieldErrs[0].Error())
			return false
		}
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, httpx.ErrNotFound) && !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrDuplicate) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown condition")
		return uuid.Nil, false
	}
	return id, true
}

// checkboxValues collects fields named "<name>[<key>]" into a key to value map.
func checkboxValues(form map[string][]string, name string) map[string]string {
	prefix := name + "["
	values := make(map[string]string)
	for field, submitted := range form {
		if !strings.HasPrefix(field, prefix) || !strings.HasSuffix(field, "]") || len(submitted) == 0 {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(field, prefix), "]")
		values[key] = submitted[len(submitted)-1]
	}
	return values
}
