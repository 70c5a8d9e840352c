// Package session хранит состояние просмотра подписки оператором: текущую подписку,
// выбор дней и открытые диалоги.
package session

import (
	"sync"

	"github.com/mmeshcher/subscription-admin/internal/model"
)

// Slot хранит текущую подписку. Ответ применяется, только если он получен на
// последний выданный запрос, поэтому запоздавший ответ на более ранний запрос
// не перезапишет более свежие данные.
type Slot struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
	sub     *model.Subscription
}

// Begin регистрирует новый запрос и возвращает его номер.
func (s *Slot) Begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Apply сохраняет подписку, если seq является номером последнего запроса.
func (s *Slot) Apply(seq uint64, sub *model.Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.issued {
		return false
	}
	s.sub = sub
	s.applied = seq
	return true
}

// Current возвращает текущую подписку и номер запроса, которым она получена.
func (s *Slot) Current() (*model.Subscription, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub, s.applied
}
