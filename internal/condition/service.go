package condition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/message"

	"github.com/odyssey-erp/grouprole-condition/internal/grouprole"
	"github.com/odyssey-erp/grouprole-condition/internal/shared"
)

// RepositoryPort defines data access methods for condition configurations.
type RepositoryPort interface {
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	Create(ctx context.Context, rec Record) (Record, error)
	Update(ctx context.Context, rec Record) (Record, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// GroupResolver binds a group ID to a group for evaluation.
type GroupResolver interface {
	GetGroup(ctx context.Context, id int64) (grouprole.Group, error)
}

// AuditRecorder stores configuration changes.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EvaluationObserver is notified of every evaluation outcome.
type EvaluationObserver interface {
	ObserveConditionEvaluation(plugin string, visible bool)
}

// Input is a create or replace request for a condition configuration.
type Input struct {
	Label     string
	GroupType string
	Config    Config
}

// ServiceDeps groups the collaborators of Service. Audit, Observer and
// Logger are optional.
type ServiceDeps struct {
	Repo     RepositoryPort
	Groups   GroupResolver
	Lookup   MembershipLookup
	Audit    AuditRecorder
	Observer EvaluationObserver
	Logger   *slog.Logger
}

// Service manages stored conditions and evaluates them.
type Service struct {
	repo     RepositoryPort
	groups   GroupResolver
	lookup   MembershipLookup
	audit    AuditRecorder
	observer EvaluationObserver
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(deps ServiceDeps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     deps.Repo,
		groups:   deps.Groups,
		lookup:   deps.Lookup,
		audit:    deps.Audit,
		observer: deps.Observer,
		logger:   logger,
	}
}

// List returns all stored conditions.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.repo.List(ctx)
}

// Get returns a stored condition.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new condition with a fresh ID.
func (s *Service) Create(ctx context.Context, in Input) (Record, error) {
	rec, err := buildRecord(in)
	if err != nil {
		return Record{}, err
	}
	rec.ID = uuid.New()
	rec.PluginID = PluginID
	created, err := s.repo.Create(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, "condition.create", created)
	return created, nil
}

// Update replaces label, group type and configuration of a stored condition.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (Record, error) {
	rec, err := buildRecord(in)
	if err != nil {
		return Record{}, err
	}
	rec.ID = id
	updated, err := s.repo.Update(ctx, rec)
	if err != nil {
		return Record{}, err
	}
	s.record(ctx, "condition.update", updated)
	return updated, nil
}

// SaveConfig replaces only the configuration of a stored condition.
func (s *Service) SaveConfig(ctx context.Context, id uuid.UUID, cfg Config) (Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	return s.Update(ctx, id, Input{Label: rec.Label, GroupType: rec.GroupType, Config: cfg})
}

// Delete removes a stored condition.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "condition.delete", Record{ID: id, PluginID: PluginID})
	return nil
}

// Instance builds the runtime condition for a stored record.
func (s *Service) Instance(rec Record) *GroupRole {
	return NewGroupRole(rec.Config, s.lookup, s.logger)
}

// Evaluate runs a stored condition for the actor against the group with the
// given ID. A nil, unknown or unloadable group is bound as no group.
func (s *Service) Evaluate(ctx context.Context, id uuid.UUID, groupID *int64, actor grouprole.Actor, p *message.Printer) (Result, error) {
	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return Result{}, err
	}
	bound := Context{Actor: actor, Group: s.bindGroup(ctx, groupID)}
	instance := s.Instance(rec)
	visible := instance.Execute(ctx, bound)
	if s.observer != nil {
		s.observer.ObserveConditionEvaluation(rec.PluginID, visible)
	}
	result := Result{ConditionID: rec.ID, Visible: visible}
	if summary, err := instance.Summary(p); err == nil {
		result.Summary = summary
	}
	return result, nil
}

func (s *Service) bindGroup(ctx context.Context, groupID *int64) *grouprole.Group {
	if groupID == nil || s.groups == nil {
		return nil
	}
	group, err := s.groups.GetGroup(ctx, *groupID)
	if err != nil {
		if !errors.Is(err, grouprole.ErrNotFound) {
			s.logger.Warn("bind group context", slog.Int64("group_id", *groupID), slog.Any("error", err))
		}
		return nil
	}
	return &group
}

func (s *Service) record(ctx context.Context, action string, rec Record) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx).ID,
		Action:   action,
		Entity:   "condition",
		EntityID: rec.ID.String(),
		Meta: map[string]any{
			"plugin_id":   rec.PluginID,
			"group_roles": rec.Config.GroupRoles,
			"negate":      rec.Config.Negate,
		},
	})
	if err != nil {
		s.logger.Warn("audit condition change", slog.String("action", action), slog.Any("error", err))
	}
}

func buildRecord(in Input) (Record, error) {
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return Record{}, fmt.Errorf("%w: label required", ErrValidation)
	}
	return Record{
		Label:     label,
		GroupType: strings.TrimSpace(in.GroupType),
		Config:    in.Config.Clean(),
	}, nil
}
