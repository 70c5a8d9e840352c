// Package selection хранит выбор дней в таблице доставок и выполняет групповые
// действия над выбранными днями.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/subscription-admin/internal/actions"
	"github.com/mmeshcher/subscription-admin/internal/dayview"
	"github.com/mmeshcher/subscription-admin/internal/model"
	"github.com/mmeshcher/subscription-admin/internal/validation"
)

var (
	// ErrEmptySelection возвращается групповым действием без выбранных дней.
	ErrEmptySelection = fmt.Errorf("%w: no days selected", validation.ErrInvalid)
	// ErrConfirmationRequired возвращается при удалении дней без подтверждения.
	ErrConfirmationRequired = fmt.Errorf("%w: deletion must be confirmed", validation.ErrInvalid)
	// ErrNotVisible возвращается при попытке выбрать день, скрытый фильтром.
	ErrNotVisible = fmt.Errorf("%w: day is not visible", validation.ErrInvalid)
	// ErrBusy возвращается, пока выполняется другое групповое действие.
	ErrBusy = errors.New("another bulk operation is in progress")
	// ErrReload возвращается, если действие выполнено, но подписку не удалось перечитать.
	ErrReload = errors.New("action succeeded but subscription reload failed")
)

// State описывает состояние флажка «выбрать все».
type State string

const (
	StateEmpty       State = "empty"
	StatePartial     State = "partial"
	StateAllSelected State = "all"
)

// Performer отправляет действие над подпиской.
type Performer interface {
	Perform(ctx context.Context, sid string, a actions.Action) error
}

// Reloader перечитывает подписку и возвращает её дни, сгруппированные заново,
// вместе с номером версии подписки, из которой они получены.
type Reloader func(ctx context.Context) ([]model.DeliveryGroup, uint64, error)

// Snapshot описывает состояние таблицы для отображения.
type Snapshot struct {
	Filter   string                `json:"filter"`
	Visible  []model.DeliveryGroup `json:"visible"`
	Selected []int64               `json:"selected"`
	State    State                 `json:"state"`
}

// DeleteConfirmation содержит текст подтверждения удаления выбранных дней.
type DeleteConfirmation struct {
	Count   int      `json:"count"`
	Days    []string `json:"days"`
	Message string   `json:"message"`
}

// Confirmation подтверждает удаление ровно Count дней.
type Confirmation struct {
	Confirmed bool `json:"confirmed"`
	Count     int  `json:"count"`
}

// Controller хранит выбор дней одной подписки. Выбор всегда является подмножеством
// видимых при текущем фильтре дней.
type Controller struct {
	sid       string
	performer Performer
	reload    Reloader
	logger    *zap.Logger

	mu       sync.Mutex
	groups   []model.DeliveryGroup
	version  uint64
	filter   string
	selected map[int64]struct{}
	busy     bool
}

// NewController создаёт контроллер выбора для подписки sid.
func NewController(sid string, groups []model.DeliveryGroup, performer Performer, reload Reloader, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		sid:       sid,
		performer: performer,
		reload:    reload,
		logger:    logger,
		groups:    groups,
		filter:    dayview.FilterAll,
		selected:  make(map[int64]struct{}),
	}
}

// SetGroups заменяет дни подписки и убирает из выбора исчезнувшие дни.
func (c *Controller) SetGroups(groups []model.DeliveryGroup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = groups
	c.pruneLocked()
}

// SetGroupsAt заменяет дни подписки, если version не старше версии уже
// применённых дней. Возвращает false, если дни отброшены как устаревшие.
func (c *Controller) SetGroupsAt(version uint64, groups []model.DeliveryGroup) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setGroupsLocked(version, groups)
}

func (c *Controller) setGroupsLocked(version uint64, groups []model.DeliveryGroup) bool {
	if version < c.version {
		return false
	}
	c.version = version
	c.groups = groups
	c.pruneLocked()
	return true
}

// SetFilter меняет фильтр по статусу и убирает из выбора скрытые дни.
func (c *Controller) SetFilter(filter string) {
	if filter == "" {
		filter = dayview.FilterAll
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
	c.pruneLocked()
}

// Toggle добавляет день в выбор или убирает его оттуда.
func (c *Controller) Toggle(dayID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.selected[dayID]; ok {
		delete(c.selected, dayID)
		return nil
	}
	if _, ok := c.visibleIDsLocked()[dayID]; !ok {
		return fmt.Errorf("%w: %d", ErrNotVisible, dayID)
	}
	c.selected[dayID] = struct{}{}
	return nil
}

// SelectAll выбирает все видимые дни.
func (c *Controller) SelectAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = c.visibleIDsLocked()
}

// Clear снимает выбор.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = make(map[int64]struct{})
}

// Snapshot возвращает видимые дни, выбор и состояние флажка «выбрать все».
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Filter:   c.filter,
		Visible:  dayview.FilterGroups(c.groups, c.filter),
		Selected: c.selectedLocked(),
		State:    c.stateLocked(),
	}
}

// Selected возвращает выбранные дни по возрастанию.
func (c *Controller) Selected() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedLocked()
}

// State возвращает состояние флажка «выбрать все».
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// DeleteConfirmation возвращает текст подтверждения удаления выбранных дней.
func (c *Controller) DeleteConfirmation() (DeleteConfirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.selected) == 0 {
		return DeleteConfirmation{}, ErrEmptySelection
	}

	n := len(c.selected)
	return DeleteConfirmation{
		Count:   n,
		Days:    c.selectedDatesLocked(),
		Message: fmt.Sprintf("You are about to delete %d day(s) from subscription %s. This action cannot be undone.", n, c.sid),
	}, nil
}

// DeleteDays удаляет выбранные дни после подтверждения.
func (c *Controller) DeleteDays(ctx context.Context, confirm Confirmation, notes string) error {
	return c.run(ctx, func() (actions.Action, error) {
		if !confirm.Confirmed || confirm.Count != len(c.selected) {
			return nil, ErrConfirmationRequired
		}
		return actions.DeleteDays{Days: c.selectedDatesLocked(), Notes: notes}, nil
	})
}

// ChangeStatus меняет статус доставки выбранных дней.
func (c *Controller) ChangeStatus(ctx context.Context, status model.DeliveryStatus, notes string) error {
	return c.run(ctx, func() (actions.Action, error) {
		if !status.Valid() {
			return nil, validation.Errorf("unknown delivery status %q", status)
		}
		return actions.ChangeDaysStatus{Days: c.selectedDatesLocked(), Status: status, Notes: notes}, nil
	})
}

// MergeDrafts раскрывает выбранные дни в редактируемые черновики для объединения.
func (c *Controller) MergeDrafts() ([]model.MergeDayDraft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.selected) == 0 {
		return nil, ErrEmptySelection
	}
	return c.mergeDraftsLocked(), nil
}

// MergeDays объединяет дни по отредактированным черновикам. Каждый черновик должен
// относиться к выбранному дню.
func (c *Controller) MergeDays(ctx context.Context, drafts []model.MergeDayDraft, notes string) error {
	return c.run(ctx, func() (actions.Action, error) {
		if len(drafts) == 0 {
			drafts = c.mergeDraftsLocked()
		}
		for _, d := range drafts {
			if _, ok := c.selected[d.DayID]; !ok {
				return nil, validation.Errorf("day %d is not selected", d.DayID)
			}
		}
		return actions.MergeDays{Days: drafts, Notes: notes}, nil
	})
}

// run проверяет выбор, отправляет действие и после успеха сбрасывает выбор и
// перечитывает подписку. При ошибке состояние не меняется.
func (c *Controller) run(ctx context.Context, build func() (actions.Action, error)) error {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return ErrBusy
	}
	if len(c.selected) == 0 {
		c.mu.Unlock()
		return ErrEmptySelection
	}
	a, err := build()
	if err == nil {
		err = a.Validate()
	}
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.busy = true
	c.mu.Unlock()

	if err := c.performer.Perform(ctx, c.sid, a); err != nil {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		c.logger.Warn("bulk action failed", zap.String("sid", c.sid), zap.String("action", a.Kind()), zap.Error(err))
		return err
	}

	var (
		groups    []model.DeliveryGroup
		version   uint64
		reloadErr error
	)
	if c.reload != nil {
		groups, version, reloadErr = c.reload(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.busy = false
	c.selected = make(map[int64]struct{})
	if reloadErr != nil {
		c.logger.Warn("reload after bulk action failed", zap.String("sid", c.sid), zap.Error(reloadErr))
		return fmt.Errorf("%w: %v", ErrReload, reloadErr)
	}
	if c.reload != nil {
		c.setGroupsLocked(version, groups)
	}
	return nil
}

func (c *Controller) visibleLocked() []model.DeliveryGroup {
	return dayview.FilterGroups(c.groups, c.filter)
}

func (c *Controller) visibleIDsLocked() map[int64]struct{} {
	visible := c.visibleLocked()
	ids := make(map[int64]struct{}, len(visible))
	for _, g := range visible {
		ids[g.DayID] = struct{}{}
	}
	return ids
}

func (c *Controller) pruneLocked() {
	visible := c.visibleIDsLocked()
	for id := range c.selected {
		if _, ok := visible[id]; !ok {
			delete(c.selected, id)
		}
	}
}

func (c *Controller) stateLocked() State {
	visible := c.visibleIDsLocked()
	switch {
	case len(c.selected) == 0 || len(visible) == 0:
		return StateEmpty
	case len(c.selected) == len(visible):
		return StateAllSelected
	default:
		return StatePartial
	}
}

func (c *Controller) selectedLocked() []int64 {
	ids := make([]int64, 0, len(c.selected))
	for id := range c.selected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Controller) selectedDatesLocked() []string {
	seen := make(map[string]struct{})
	dates := make([]string, 0, len(c.selected))
	for _, g := range c.visibleLocked() {
		if _, ok := c.selected[g.DayID]; !ok {
			continue
		}
		if _, ok := seen[g.Date]; ok {
			continue
		}
		seen[g.Date] = struct{}{}
		dates = append(dates, g.Date)
	}
	sort.Strings(dates)
	return dates
}

func (c *Controller) mergeDraftsLocked() []model.MergeDayDraft {
	seen := make(map[int64]struct{})
	drafts := make([]model.MergeDayDraft, 0, len(c.selected))
	for _, g := range c.visibleLocked() {
		if _, ok := c.selected[g.DayID]; !ok {
			continue
		}
		if _, ok := seen[g.DayID]; ok {
			continue
		}
		seen[g.DayID] = struct{}{}
		drafts = append(drafts, model.MergeDayDraft{
			DayID:          g.DayID,
			DeliveryDate:   g.Date,
			DayNumber:      g.DayNumberCount,
			DayName:        weekday(g.Date),
			DeliveryStatus: g.Status,
		})
	}
	return drafts
}

func weekday(date string) string {
	t, err := time.Parse(validation.DateLayout, date)
	if err != nil {
		return ""
	}
	return t.Weekday().String()
}
