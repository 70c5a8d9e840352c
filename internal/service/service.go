// Package service реализует сценарии панели управления подписками: поиск,
// таблицу доставок, отправку действий и сессии просмотра.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/subscription-admin/internal/actions"
	"github.com/mmeshcher/subscription-admin/internal/dayview"
	"github.com/mmeshcher/subscription-admin/internal/model"
	"github.com/mmeshcher/subscription-admin/internal/repository"
	"github.com/mmeshcher/subscription-admin/internal/session"
	"github.com/mmeshcher/subscription-admin/internal/validation"
)

// Client описывает API управления подписками, используемое сервисом.
type Client interface {
	GetSubscription(ctx context.Context, sid string) (*model.Subscription, error)
	SearchByPhone(ctx context.Context, phone string) ([]model.Subscription, error)
	GetPlanPrice(ctx context.Context, req actions.PriceRequest) (model.PriceQuote, error)
	Perform(ctx context.Context, sid string, a actions.Action) error
}

// Repository описывает журнал отправленных действий.
type Repository interface {
	Close() error
	SaveAction(ctx context.Context, entry model.ActionLogEntry) error
	ListActions(ctx context.Context, sid string, limit int) ([]model.ActionLogEntry, error)
	GetAction(ctx context.Context, id string) (*model.ActionLogEntry, error)
}

// Options содержит настройки сервиса.
type Options struct {
	DuplicatePolicy dayview.DuplicatePolicy
	PriceDebounce   time.Duration
}

// Service содержит бизнес-логику панели управления подписками.
type Service struct {
	client   Client
	repo     Repository
	sessions *session.Registry
	logger   *zap.Logger
	opts     Options
}

// NewService создаёт сервис. Репозиторий может быть nil, тогда журнал действий не ведётся.
func NewService(client Client, repo Repository, sessions *session.Registry, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DuplicatePolicy == "" {
		opts.DuplicatePolicy = dayview.DuplicateOverwrite
	}
	return &Service{
		client:   client,
		repo:     repo,
		sessions: sessions,
		logger:   logger,
		opts:     opts,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// DayView описывает таблицу доставок подписки.
type DayView struct {
	Subscription *model.Subscription   `json:"subscription"`
	Filter       string                `json:"filter"`
	Groups       []model.DeliveryGroup `json:"groups"`
	Summary      dayview.StatusSummary `json:"summary"`
	Chips        []dayview.StatusChip  `json:"chips"`
}

// GetSubscription возвращает подписку по идентификатору.
func (s *Service) GetSubscription(ctx context.Context, sid string) (*model.Subscription, error) {
	if !validation.IsValidSID(sid) {
		return nil, validation.Errorf("invalid subscription id %q", sid)
	}
	return s.client.GetSubscription(ctx, sid)
}

// SearchByPhone ищет подписки по номеру телефона клиента.
func (s *Service) SearchByPhone(ctx context.Context, phone string) ([]model.Subscription, error) {
	normalized, err := validation.NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	return s.client.SearchByPhone(ctx, normalized)
}

// GetDayView загружает подписку и строит таблицу доставок с фильтром по статусу.
func (s *Service) GetDayView(ctx context.Context, sid, filter string) (*DayView, error) {
	sub, err := s.GetSubscription(ctx, sid)
	if err != nil {
		return nil, err
	}
	return s.buildDayView(sub, filter)
}

func (s *Service) buildDayView(sub *model.Subscription, filter string) (*DayView, error) {
	groups, err := s.group(sub)
	if err != nil {
		return nil, err
	}
	if filter == "" {
		filter = dayview.FilterAll
	}

	summary := dayview.AggregateStatuses(groups)
	return &DayView{
		Subscription: sub,
		Filter:       filter,
		Groups:       dayview.FilterGroups(groups, filter),
		Summary:      summary,
		Chips:        summary.Chips(),
	}, nil
}

func (s *Service) group(sub *model.Subscription) ([]model.DeliveryGroup, error) {
	if sub == nil {
		return []model.DeliveryGroup{}, nil
	}
	groups, err := dayview.GroupByDeliveryDay(sub.Days, s.opts.DuplicatePolicy)
	if err != nil {
		return nil, fmt.Errorf("group days of subscription %s: %w", sub.SID, err)
	}
	return groups, nil
}

// Perform проверяет и отправляет действие, после успеха возвращает перечитанную подписку.
func (s *Service) Perform(ctx context.Context, sid string, a actions.Action) (*model.Subscription, error) {
	if !validation.IsValidSID(sid) {
		return nil, validation.Errorf("invalid subscription id %q", sid)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if err := s.perform(ctx, sid, a); err != nil {
		return nil, err
	}

	sub, err := s.client.GetSubscription(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("reload subscription %s: %w", sid, err)
	}
	return sub, nil
}

// ActionLog возвращает журнал действий по подписке, новые записи первыми.
func (s *Service) ActionLog(ctx context.Context, sid string, limit int) ([]model.ActionLogEntry, error) {
	if s.repo == nil {
		return []model.ActionLogEntry{}, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListActions(ctx, sid, limit)
}

// ActionLogEntry возвращает запись журнала по идентификатору. Запись другой
// подписки считается ненайденной.
func (s *Service) ActionLogEntry(ctx context.Context, sid, id string) (*model.ActionLogEntry, error) {
	if s.repo == nil {
		return nil, repository.ErrActionNotFound
	}
	if err := uuid.Validate(id); err != nil {
		return nil, validation.Errorf("invalid action id %q", id)
	}

	entry, err := s.repo.GetAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.SID != sid {
		return nil, repository.ErrActionNotFound
	}
	return entry, nil
}

// perform отправляет действие и записывает результат в журнал.
func (s *Service) perform(ctx context.Context, sid string, a actions.Action) error {
	err := s.client.Perform(ctx, sid, a)
	if err != nil && !errors.Is(err, validation.ErrInvalid) {
		s.logger.Error("perform action error", zap.String("sid", sid), zap.String("action", a.Kind()), zap.Error(err))
	}
	s.audit(ctx, sid, a, err)
	return err
}

func (s *Service) audit(ctx context.Context, sid string, a actions.Action, actionErr error) {
	if s.repo == nil || errors.Is(actionErr, validation.ErrInvalid) {
		return
	}

	payload, err := json.Marshal(a)
	if err != nil {
		s.logger.Warn("encode action for audit", zap.String("action", a.Kind()), zap.Error(err))
		payload = []byte("null")
	}

	entry := model.ActionLogEntry{
		ID:        uuid.NewString(),
		SID:       sid,
		Action:    a.Kind(),
		Payload:   payload,
		Succeeded: actionErr == nil,
		CreatedAt: time.Now().UTC(),
	}
	if actionErr != nil {
		entry.Error = actionErr.Error()
	}

	// Журнал пишется и для действий, отменённых вызывающей стороной.
	if err := s.repo.SaveAction(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("save action log error", zap.String("sid", sid), zap.String("action", a.Kind()), zap.Error(err))
	}
}

type performerFunc func(ctx context.Context, sid string, a actions.Action) error

func (f performerFunc) Perform(ctx context.Context, sid string, a actions.Action) error {
	return f(ctx, sid, a)
}
