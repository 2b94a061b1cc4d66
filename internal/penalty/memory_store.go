package penalty

import (
	"context"
	"sync"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu sync.RWMutex

	penalties         map[int64]*Penalty
	strikes           map[int64]*Strike
	agencyStrikes     map[int64]*AgencyStrike
	negativeBalances  map[int64]*NegativeBalance // keyed by userID
	suspensions       map[int64]*UserSuspension
	appeals           map[int64]*Appeal
	emergencyWaivers  map[int64]*EmergencyWaiver

	nextPenaltyID      int64
	nextStrikeID       int64
	nextAgencyStrikeID int64
	nextBalanceID      int64
	nextSuspensionID   int64
	nextAppealID       int64
	nextWaiverID       int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		penalties:        make(map[int64]*Penalty),
		strikes:          make(map[int64]*Strike),
		agencyStrikes:    make(map[int64]*AgencyStrike),
		negativeBalances: make(map[int64]*NegativeBalance),
		suspensions:      make(map[int64]*UserSuspension),
		appeals:          make(map[int64]*Appeal),
		emergencyWaivers: make(map[int64]*EmergencyWaiver),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) CreatePenalty(ctx context.Context, p *Penalty) (*Penalty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.penalties {
		if existing.ShiftID == p.ShiftID {
			return nil, ErrAlreadyNoShow
		}
	}

	m.nextPenaltyID++
	cp := *p
	cp.ID = m.nextPenaltyID
	m.penalties[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) GetPenalty(ctx context.Context, id int64) (*Penalty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.penalties[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetPenaltyByShift(ctx context.Context, shiftID int64) (*Penalty, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.penalties {
		if p.ShiftID == shiftID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdatePenaltyStatus(ctx context.Context, id int64, status PenaltyStatus, collected money.Cents, waivedBy *int64) (*Penalty, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.penalties[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.Status = status
	p.CollectedAmount = collected
	p.WaivedBy = waivedBy
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) CreateStrike(ctx context.Context, s *Strike) (*Strike, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextStrikeID++
	cp := *s
	cp.ID = m.nextStrikeID
	m.strikes[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) GetStrike(ctx context.Context, id int64) (*Strike, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.strikes[id]
	if !ok {
		return nil, ErrStrikeNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) ListActiveStrikes(ctx context.Context, userID int64, now time.Time) ([]*Strike, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Strike
	for _, s := range m.strikes {
		if s.UserID == userID && s.IsActive && s.ExpiresAt.After(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListStrikesByUser(ctx context.Context, userID int64) ([]*Strike, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Strike
	for _, s := range m.strikes {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) DeactivateStrike(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.strikes[id]
	if !ok {
		return ErrStrikeNotFound
	}
	s.IsActive = false
	return nil
}

func (m *MemoryStore) CreateAgencyStrike(ctx context.Context, s *AgencyStrike) (*AgencyStrike, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAgencyStrikeID++
	cp := *s
	cp.ID = m.nextAgencyStrikeID
	m.agencyStrikes[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) CountAgencyStrikes(ctx context.Context, agencyUserID int64, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.agencyStrikes {
		if s.AgencyUserID == agencyUserID && s.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) GetOrCreateNegativeBalance(ctx context.Context, userID int64) (*NegativeBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateNegativeBalanceLocked(userID)
}

func (m *MemoryStore) getOrCreateNegativeBalanceLocked(userID int64) (*NegativeBalance, error) {
	for _, nb := range m.negativeBalances {
		if nb.UserID == userID {
			cp := *nb
			return &cp, nil
		}
	}
	m.nextBalanceID++
	nb := &NegativeBalance{ID: m.nextBalanceID, UserID: userID, Amount: money.Zero, LastActivityAt: time.Now().UTC()}
	m.negativeBalances[nb.ID] = nb
	cp := *nb
	return &cp, nil
}

func (m *MemoryStore) AddToNegativeBalance(ctx context.Context, userID int64, amount money.Cents, at time.Time) (*NegativeBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.getOrCreateNegativeBalanceLocked(userID); err != nil {
		return nil, err
	}
	for _, nb := range m.negativeBalances {
		if nb.UserID == userID {
			nb.Amount = nb.Amount.Add(amount)
			nb.LastActivityAt = at
			cp := *nb
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ReduceNegativeBalance(ctx context.Context, userID int64, amount money.Cents, at time.Time) (*NegativeBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.getOrCreateNegativeBalanceLocked(userID); err != nil {
		return nil, err
	}
	for _, nb := range m.negativeBalances {
		if nb.UserID == userID {
			nb.Amount = nb.Amount.Sub(amount)
			if nb.Amount.IsNegative() {
				nb.Amount = money.Zero
			}
			nb.LastActivityAt = at
			cp := *nb
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListStaleNegativeBalances(ctx context.Context, before time.Time, limit int) ([]*NegativeBalance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*NegativeBalance
	for _, nb := range m.negativeBalances {
		if nb.Amount.IsPositive() && nb.LastActivityAt.Before(before) {
			cp := *nb
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateSuspension(ctx context.Context, s *UserSuspension) (*UserSuspension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSuspensionID++
	cp := *s
	cp.ID = m.nextSuspensionID
	m.suspensions[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) GetActiveSuspension(ctx context.Context, userID int64) (*UserSuspension, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.suspensions {
		if s.UserID == userID && s.IsActive {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrSuspensionNotFound
}

func (m *MemoryStore) LiftSuspension(ctx context.Context, id int64, liftedBy *int64) (*UserSuspension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.suspensions[id]
	if !ok {
		return nil, ErrSuspensionNotFound
	}
	s.IsActive = false
	s.LiftedBy = liftedBy
	cp := *s
	return &cp, nil
}

func (m *MemoryStore) CreateAppeal(ctx context.Context, a *Appeal) (*Appeal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.appeals {
		if existing.AppealType == a.AppealType && existing.RelatedID == a.RelatedID && existing.Status == AppealPending {
			return nil, ErrDuplicateAppeal
		}
	}
	m.nextAppealID++
	cp := *a
	cp.ID = m.nextAppealID
	m.appeals[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) GetAppeal(ctx context.Context, id int64) (*Appeal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appeals[id]
	if !ok {
		return nil, ErrAppealNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetPendingAppealFor(ctx context.Context, appealType AppealType, relatedID int64) (*Appeal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.appeals {
		if a.AppealType == appealType && a.RelatedID == relatedID && a.Status == AppealPending {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppealNotFound
}

func (m *MemoryStore) UpdateAppealStatus(ctx context.Context, id int64, status AppealStatus, at time.Time) (*Appeal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appeals[id]
	if !ok {
		return nil, ErrAppealNotFound
	}
	if a.Status != AppealPending {
		return nil, ErrAppealAlreadyReviewed
	}
	a.Status = status
	a.ReviewedAt = &at
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) CreateEmergencyWaiver(ctx context.Context, w *EmergencyWaiver) (*EmergencyWaiver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.emergencyWaivers {
		if existing.UserID == w.UserID && existing.Year == w.Year {
			return nil, ErrEmergencyWaiverClaimed
		}
	}
	m.nextWaiverID++
	cp := *w
	cp.ID = m.nextWaiverID
	m.emergencyWaivers[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MemoryStore) GetEmergencyWaiverForYear(ctx context.Context, userID int64, year int) (*EmergencyWaiver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.emergencyWaivers {
		if w.UserID == userID && w.Year == year {
			cp := *w
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
