package timer

import (
	"log"
	"sync"
	"time"

	"guardnet/utils/database"

	"github.com/jmoiron/sqlx"
)

// Timer event names.
const (
	EventPoll        = "poll"
	EventSanction    = "sanction"
	EventDraftExpire = "draft_expire"
)

// Handler consumes a fired timer's payload. Dispatch is at-least-once:
// the row is deleted only after the handler returns, so handlers must
// tolerate replays.
type Handler func(payload string)

// Service drives durable one-shot timers off a sweep ticker. Timers
// live in the database and survive restarts; anything overdue fires on
// the first sweep after startup.
type Service struct {
	db       *sqlx.DB
	interval time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	done chan struct{}
	wg   sync.WaitGroup
}

// NewService creates a timer service sweeping at the given interval.
func NewService(db *sqlx.DB, interval time.Duration) *Service {
	return &Service{
		db:       db,
		interval: interval,
		handlers: make(map[string]Handler),
		done:     make(chan struct{}),
	}
}

// Register binds a handler to an event name. Must be called before
// Start; a fired timer with no handler is logged and retried on the
// next sweep.
func (s *Service) Register(event string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = handler
}

// Create schedules a timer and returns its id.
func (s *Service) Create(fireAt time.Time, event, payload string) (int64, error) {
	return database.InsertTimer(s.db, fireAt, event, payload)
}

// Cancel drops pending timers for an event carrying exactly the given
// payload. Payloads embed decimal ids, so anything looser than an
// exact match would also hit ids sharing a prefix.
func (s *Service) Cancel(event, payload string) error {
	return database.DeleteTimersByPayload(s.db, event, payload)
}

// Start runs an immediate sweep, then sweeps on the ticker until Stop.
func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Sweep()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop terminates the sweep loop and waits for it to finish.
func (s *Service) Stop() {
	close(s.done)
	s.wg.Wait()
}

// Sweep fires every due timer once. Exported so tests and startup code
// can force a pass without waiting for the ticker.
func (s *Service) Sweep() {
	due, err := database.DueTimers(s.db, time.Now())
	if err != nil {
		log.Printf("[Timer] Failed to list due timers: %v", err)
		return
	}
	for _, record := range due {
		s.mu.RLock()
		handler, ok := s.handlers[record.Event]
		s.mu.RUnlock()
		if !ok {
			log.Printf("[Timer] No handler registered for event %s (timer %d)", record.Event, record.ID)
			continue
		}
		handler(record.Payload)
		if err := database.DeleteTimer(s.db, record.ID); err != nil {
			log.Printf("[Timer] Failed to delete fired timer %d: %v", record.ID, err)
		}
	}
}
