package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/field-booking/internal/booking"
	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

func slotKey(fieldID uint64, date time.Time) string {
	return fmt.Sprintf("%d:%s", fieldID, timeslot.FormatDate(date))
}

func (s *Store) slotLock(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

func (s *Store) rowLock(id uint64) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.rowLocks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.rowLocks[id] = ch
	}
	return ch
}

// WithSlotLock serializes writers per (field, date). Writes made by fn are
// staged and applied only when fn returns nil. Rows read through the
// transaction stay locked until the staged writes are applied or dropped.
func (s *Store) WithSlotLock(ctx context.Context, fieldID uint64, date time.Time, fn func(booking.SlotTx) error) error {
	lock := s.slotLock(slotKey(fieldID, date))
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire slot lock: %w", ctx.Err())
	}
	defer func() { <-lock }()

	tx := &slotTx{s: s, staged: make(map[uint64]*model.Booking), held: make(map[uint64]chan struct{})}
	defer tx.releaseRows()
	if err := fn(tx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range tx.staged {
		s.bookings[id] = b
	}
	return nil
}

type slotTx struct {
	s      *Store
	staged map[uint64]*model.Booking
	held   map[uint64]chan struct{}
}

// lockRow takes the row lock for id once per transaction, like SELECT ... FOR UPDATE.
func (tx *slotTx) lockRow(ctx context.Context, id uint64) error {
	if _, ok := tx.held[id]; ok {
		return nil
	}
	lock := tx.s.rowLock(id)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("lock booking %d: %w", id, ctx.Err())
	}
	tx.held[id] = lock
	return nil
}

func (tx *slotTx) releaseRows() {
	for id, lock := range tx.held {
		<-lock
		delete(tx.held, id)
	}
}

// FindBooking reads the booking and holds its row lock until the transaction ends.
func (tx *slotTx) FindBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	if err := tx.lockRow(ctx, id); err != nil {
		return nil, err
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	if b, ok := tx.staged[id]; ok {
		return tx.s.decorate(b), nil
	}
	if b, ok := tx.s.bookings[id]; ok {
		return tx.s.decorate(b), nil
	}
	return nil, nil
}

func (tx *slotTx) ListActiveBookings(_ context.Context, fieldID uint64, date time.Time, excludeID uint64) ([]*model.Booking, error) {
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.activeLocked(fieldID, date, excludeID, tx.staged), nil
}

// duplicateLocked applies the unique slot index to b. Callers hold mu.
func (tx *slotTx) duplicateLocked(b *model.Booking) bool {
	if !b.Holds() {
		return false
	}
	for _, other := range tx.s.activeLocked(b.FieldID, b.BookingDate, b.ID, tx.staged) {
		if sameSlot(other, b) {
			return true
		}
	}
	return false
}

func (tx *slotTx) InsertBooking(_ context.Context, b *model.Booking) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	if tx.duplicateLocked(b) {
		return booking.ErrDuplicateSlot
	}
	tx.s.nextID.booking++
	b.ID = tx.s.nextID.booking
	b.CreatedAt, b.UpdatedAt = tx.s.now(), tx.s.now()
	tx.staged[b.ID] = stored(b)
	return nil
}

func (tx *slotTx) UpdateBooking(_ context.Context, b *model.Booking) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	old, ok := tx.staged[b.ID]
	if !ok {
		old, ok = tx.s.bookings[b.ID]
	}
	if !ok {
		return fmt.Errorf("update booking %d: not found", b.ID)
	}
	if tx.duplicateLocked(b) {
		return booking.ErrDuplicateSlot
	}
	b.CreatedAt, b.UpdatedAt = old.CreatedAt, tx.s.now()
	tx.staged[b.ID] = stored(b)
	return nil
}

// stored strips the read-side summaries before a booking is kept.
func stored(b *model.Booking) *model.Booking {
	cp := *b
	cp.User, cp.Field = nil, nil
	return &cp
}
