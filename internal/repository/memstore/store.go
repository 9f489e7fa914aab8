// Package memstore is an in-memory implementation of the booking ports and
// the catalogue/customer stores. It backs DB_DRIVER=memory and the tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/field-booking/internal/model"
	"github.com/iliyamo/field-booking/internal/repository"
	"github.com/iliyamo/field-booking/internal/timeslot"
)

type Store struct {
	mu       sync.RWMutex
	users    map[uint64]*model.User
	fields   map[uint64]*model.Field
	bookings map[uint64]*model.Booking
	nextID   struct{ user, field, booking uint64 }

	locksMu  sync.Mutex
	locks    map[string]chan struct{}
	rowLocks map[uint64]chan struct{}

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:    make(map[uint64]*model.User),
		fields:   make(map[uint64]*model.Field),
		bookings: make(map[uint64]*model.Booking),
		locks:    make(map[string]chan struct{}),
		rowLocks: make(map[uint64]chan struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ---- users ----

func (s *Store) FindUser(_ context.Context, id uint64) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) FindCustomerByPhone(_ context.Context, phone string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// CreateUser stores u with a new id. Phones are unique.
func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.users {
		if other.Phone == u.Phone {
			return repository.ErrPhoneExists
		}
	}
	s.nextID.user++
	u.ID = s.nextID.user
	u.CreatedAt, u.UpdatedAt = s.now(), s.now()
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

// CreateCustomer stores a passwordless customer.
func (s *Store) CreateCustomer(ctx context.Context, u *model.User) error {
	u.Role = model.RoleCustomer
	u.IsActive = true
	return s.CreateUser(ctx, u)
}

// ---- fields ----

func (s *Store) FindField(_ context.Context, id uint64) (*model.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.fields[id]; ok {
		cp := *f
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetField(ctx context.Context, id uint64) (*model.Field, error) {
	f, _ := s.FindField(ctx, id)
	if f == nil {
		return nil, repository.ErrFieldNotFound
	}
	return f, nil
}

func (s *Store) ListActiveFields(ctx context.Context) ([]*model.Field, error) {
	return s.ListFields(ctx, repository.FieldFilter{ActiveOnly: true})
}

func (s *Store) ListFields(_ context.Context, filter repository.FieldFilter) ([]*model.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := []*model.Field{}
	for _, f := range s.fields {
		if filter.ActiveOnly && !f.IsActive {
			continue
		}
		if filter.FieldType != "" && f.FieldType != filter.FieldType {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(f.Name), search) &&
			!strings.Contains(strings.ToLower(f.Location), search) {
			continue
		}
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateField(_ context.Context, f *model.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID.field++
	f.ID = s.nextID.field
	f.CreatedAt, f.UpdatedAt = s.now(), s.now()
	cp := *f
	s.fields[f.ID] = &cp
	return nil
}

func (s *Store) UpdateField(_ context.Context, f *model.Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.fields[f.ID]
	if !ok {
		return repository.ErrFieldNotFound
	}
	f.CreatedAt, f.UpdatedAt = old.CreatedAt, s.now()
	cp := *f
	s.fields[f.ID] = &cp
	return nil
}

// DeleteField removes a field that no booking references.
func (s *Store) DeleteField(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[id]; !ok {
		return repository.ErrFieldNotFound
	}
	for _, b := range s.bookings {
		if b.FieldID == id {
			return repository.ErrConflict
		}
	}
	delete(s.fields, id)
	return nil
}

// ---- bookings ----

// decorate copies b and attaches the user and field summaries. Callers hold mu.
func (s *Store) decorate(b *model.Booking) *model.Booking {
	cp := *b
	cp.User = s.users[b.UserID].Summary()
	cp.Field = s.fields[b.FieldID].Summary()
	return &cp
}

func (s *Store) FindBooking(_ context.Context, id uint64) (*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.bookings[id]; ok {
		return s.decorate(b), nil
	}
	return nil, nil
}

func (s *Store) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, _ := s.FindBooking(ctx, id)
	if b == nil {
		return nil, repository.ErrBookingNotFound
	}
	return b, nil
}

func (s *Store) ListActiveBookings(_ context.Context, fieldID uint64, date time.Time) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(fieldID, date, 0, nil), nil
}

func (s *Store) ListActiveBookingsOnDate(_ context.Context, date time.Time) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := timeslot.FormatDate(date)
	out := []*model.Booking{}
	for _, b := range s.bookings {
		if b.Holds() && timeslot.FormatDate(b.BookingDate) == day {
			out = append(out, s.decorate(b))
		}
	}
	sortByStart(out)
	return out, nil
}

// activeLocked lists non-cancelled bookings on (fieldID, date), letting staged
// rows shadow committed ones. Callers hold mu.
func (s *Store) activeLocked(fieldID uint64, date time.Time, excludeID uint64, staged map[uint64]*model.Booking) []*model.Booking {
	day := timeslot.FormatDate(date)
	out := []*model.Booking{}
	consider := func(b *model.Booking) {
		if b.ID == excludeID || b.FieldID != fieldID || !b.Holds() || timeslot.FormatDate(b.BookingDate) != day {
			return
		}
		out = append(out, s.decorate(b))
	}
	for id, b := range s.bookings {
		if _, shadowed := staged[id]; shadowed {
			continue
		}
		consider(b)
	}
	for _, b := range staged {
		consider(b)
	}
	sortByStart(out)
	return out
}

func (s *Store) ListBookings(_ context.Context, f repository.BookingFilter) ([]*model.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*model.Booking{}
	for _, b := range s.bookings {
		switch {
		case f.UserID != nil && b.UserID != *f.UserID,
			f.FieldID != nil && b.FieldID != *f.FieldID,
			f.Status != nil && b.Status != *f.Status,
			f.PaymentStatus != nil && b.PaymentStatus != *f.PaymentStatus,
			f.From != nil && b.BookingDate.Before(*f.From),
			f.To != nil && b.BookingDate.After(*f.To):
			continue
		}
		out = append(out, s.decorate(b))
	}
	// newest day first, later start first within a day
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookingDate.Equal(out[j].BookingDate) {
			return out[i].BookingDate.After(out[j].BookingDate)
		}
		return out[i].StartTime > out[j].StartTime
	})
	return out, nil
}

func sortByStart(list []*model.Booking) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartTime != list[j].StartTime {
			return list[i].StartTime < list[j].StartTime
		}
		return list[i].ID < list[j].ID
	})
}

// sameSlot mirrors the unique index on (field, date, start, end) over
// non-cancelled rows.
func sameSlot(a, b *model.Booking) bool {
	return a.FieldID == b.FieldID &&
		timeslot.FormatDate(a.BookingDate) == timeslot.FormatDate(b.BookingDate) &&
		a.StartTime == b.StartTime && a.EndTime == b.EndTime
}
