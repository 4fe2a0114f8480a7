package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ticketly/ticket-service/internal/domain"
)

// MemoryStore keeps users and tickets in process memory. It enforces the same
// unique keys and creator reference as the Postgres schema, and backs
// development runs without a database as well as tests.
type MemoryStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	seq     int64
	users   map[string]*userRecord
	tickets map[string]*ticketRecord
}

type userRecord struct {
	user domain.User
	seq  int64
}

type ticketRecord struct {
	ticket domain.Ticket
	seq    int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:     time.Now,
		users:   make(map[string]*userRecord),
		tickets: make(map[string]*ticketRecord),
	}
}

// SetClock overrides the timestamp source.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Users exposes the store as a UserRepository.
func (s *MemoryStore) Users() UserRepository { return memoryUsers{s} }

// Tickets exposes the store as a TicketRepository.
func (s *MemoryStore) Tickets() TicketRepository { return memoryTickets{s} }

func (s *MemoryStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

// validID mirrors the uuid column type: malformed ids never match.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type memoryUsers struct{ s *MemoryStore }

func (m memoryUsers) Create(_ context.Context, user *domain.User) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUserUnique(user, ""); err != nil {
		return err
	}
	now := s.now().UTC()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = domain.RoleClient
	}
	s.users[user.ID] = &userRecord{user: ownUser(*user), seq: s.nextSeq()}
	return nil
}

func (m memoryUsers) Update(_ context.Context, user *domain.User) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if err := s.checkUserUnique(&domain.User{Email: rec.user.Email, Phone: user.Phone}, user.ID); err != nil {
		return err
	}
	updated := ownUser(*user)
	updated.Email = rec.user.Email
	updated.RefreshTokenHash = rec.user.RefreshTokenHash
	updated.CreatedAt = rec.user.CreatedAt
	updated.UpdatedAt = s.now().UTC()
	rec.user = updated
	user.UpdatedAt = updated.UpdatedAt
	return nil
}

func (s *MemoryStore) checkUserUnique(user *domain.User, selfID string) error {
	for id, rec := range s.users {
		if id == selfID {
			continue
		}
		if rec.user.Email == user.Email {
			return &DuplicateError{Field: "email"}
		}
		if rec.user.Phone == user.Phone {
			return &DuplicateError{Field: "phone"}
		}
	}
	return nil
}

func (m memoryUsers) find(match func(domain.User) bool) (*domain.User, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.users {
		if match(rec.user) {
			user := cloneUser(rec.user)
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (m memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := cloneUser(rec.user)
	return &user, nil
}

func (m memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m memoryUsers) GetByPhone(_ context.Context, phone string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Phone == phone })
}

func (m memoryUsers) GetByVerificationToken(_ context.Context, token string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.VerificationToken != nil && *u.VerificationToken == token })
}

func (m memoryUsers) GetByResetToken(_ context.Context, token string) (*domain.User, error) {
	return m.find(func(u domain.User) bool { return u.ResetToken != nil && *u.ResetToken == token })
}

func (m memoryUsers) SetRefreshTokenHash(_ context.Context, id string, hash *string) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	rec.user.RefreshTokenHash = cloneString(hash)
	rec.user.UpdatedAt = s.now().UTC()
	return nil
}

func (m memoryUsers) List(_ context.Context, filter UserFilter) ([]domain.User, int, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*userRecord, 0, len(s.users))
	for _, rec := range s.users {
		u := rec.user
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if term != "" && !containsFold(term, u.FirstName, u.LastName, u.Email, string(u.Role)) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.user.CreatedAt.Equal(b.user.CreatedAt) {
			if filter.SortAsc {
				return a.user.CreatedAt.Before(b.user.CreatedAt)
			}
			return a.user.CreatedAt.After(b.user.CreatedAt)
		}
		if filter.SortAsc {
			return a.seq < b.seq
		}
		return a.seq > b.seq
	})

	start, end := pageBounds(len(matched), filter.Limit, filter.Offset)
	users := make([]domain.User, 0, end-start)
	for _, rec := range matched[start:end] {
		users = append(users, cloneUser(rec.user))
	}
	return users, len(matched), nil
}

func (m memoryUsers) DeleteCascade(_ context.Context, id string) (int, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return 0, ErrNotFound
	}
	removed := s.deleteTicketsBy(rec.user.Email)
	delete(s.users, id)
	return removed, nil
}

func (m memoryUsers) PurgeUnverified(_ context.Context, before time.Time) (int, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	purged := 0
	for id, rec := range s.users {
		u := rec.user
		if u.IsVerified || u.VerificationExpires == nil || !u.VerificationExpires.Before(before) {
			continue
		}
		s.deleteTicketsBy(u.Email)
		delete(s.users, id)
		purged++
	}
	return purged, nil
}

func (s *MemoryStore) deleteTicketsBy(email string) int {
	removed := 0
	for id, rec := range s.tickets {
		if rec.ticket.CreatedBy == email {
			delete(s.tickets, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) userExists(email string) bool {
	for _, rec := range s.users {
		if rec.user.Email == email {
			return true
		}
	}
	return false
}

type memoryTickets struct{ s *MemoryStore }

func (m memoryTickets) Create(_ context.Context, ticket *domain.Ticket) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range s.tickets {
		if rec.ticket.Screenshot == ticket.Screenshot {
			return &DuplicateError{Field: "screenshot"}
		}
	}
	if !s.userExists(ticket.CreatedBy) {
		return ErrNotFound
	}
	now := s.now().UTC()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusCreated
	}
	s.tickets[ticket.ID] = &ticketRecord{ticket: ownTicket(*ticket), seq: s.nextSeq()}
	return nil
}

func (m memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket := rec.ticket
	return &ticket, nil
}

func (m memoryTickets) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	rec.ticket.Status = domain.TicketStatus(strings.Clone(string(status)))
	rec.ticket.UpdatedAt = s.now().UTC()
	ticket := rec.ticket
	return &ticket, nil
}

func (m memoryTickets) Delete(_ context.Context, id string) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(s.tickets, id)
	return nil
}

func (m memoryTickets) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	s := m.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	term := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*ticketRecord, 0, len(s.tickets))
	for _, rec := range s.tickets {
		t := rec.ticket
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if term != "" && !containsFold(term, t.Summary) {
			continue
		}
		matched = append(matched, rec)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.ticket.CreatedAt.Equal(b.ticket.CreatedAt) {
			return a.ticket.CreatedAt.After(b.ticket.CreatedAt)
		}
		return a.seq > b.seq
	})

	start, end := pageBounds(len(matched), filter.Limit, filter.Offset)
	tickets := make([]domain.Ticket, 0, end-start)
	for _, rec := range matched[start:end] {
		tickets = append(tickets, rec.ticket)
	}
	return tickets, len(matched), nil
}

func (m memoryTickets) DeleteOrphans(_ context.Context) (int, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.tickets {
		if !s.userExists(rec.ticket.CreatedBy) {
			delete(s.tickets, id)
			removed++
		}
	}
	return removed, nil
}

func containsFold(lowerTerm string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerTerm) {
			return true
		}
	}
	return false
}

func pageBounds(n, limit, offset int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	if limit <= 0 || offset+limit > n {
		return offset, n
	}
	return offset, offset + limit
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := strings.Clone(*v)
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneUser(u domain.User) domain.User {
	u.VerificationToken = cloneString(u.VerificationToken)
	u.VerificationExpires = cloneTime(u.VerificationExpires)
	u.ResetToken = cloneString(u.ResetToken)
	u.ResetExpires = cloneTime(u.ResetExpires)
	u.RefreshTokenHash = cloneString(u.RefreshTokenHash)
	return u
}

// ownUser copies every string before it is stored. Callers may hand in strings
// that alias a reused request buffer.
func ownUser(u domain.User) domain.User {
	u = cloneUser(u)
	u.ID = strings.Clone(u.ID)
	u.FirstName = strings.Clone(u.FirstName)
	u.LastName = strings.Clone(u.LastName)
	u.Email = strings.Clone(u.Email)
	u.Phone = strings.Clone(u.Phone)
	u.PasswordHash = strings.Clone(u.PasswordHash)
	u.DisplayPicture = strings.Clone(u.DisplayPicture)
	u.Role = domain.Role(strings.Clone(string(u.Role)))
	return u
}

func ownTicket(t domain.Ticket) domain.Ticket {
	t.Screenshot = strings.Clone(t.Screenshot)
	t.Summary = strings.Clone(t.Summary)
	t.Status = domain.TicketStatus(strings.Clone(string(t.Status)))
	t.CreatedBy = strings.Clone(t.CreatedBy)
	return t
}
