package memory

import (
	"context"
	"sort"
	"sync"

	"edu-duel-service/internal/app"
	"edu-duel-service/internal/domain"
)

// DuelRepository is an in-memory implementation of app.DuelRepository. A
// per-duel mutex stands in for the database transaction boundary: Mutate
// applies fn to a private clone and swaps it in only on success, so a failed
// mutation leaves no partial state.
type DuelRepository struct {
	mu    sync.RWMutex
	duels map[string]*domain.Duel
	locks map[string]*sync.Mutex
}

func NewDuelRepository() *DuelRepository {
	return &DuelRepository{
		duels: make(map[string]*domain.Duel),
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *DuelRepository) Create(_ context.Context, duel *domain.Duel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duels[duel.ID] = duel.Clone()
	r.locks[duel.ID] = &sync.Mutex{}
	return nil
}

func (r *DuelRepository) Get(_ context.Context, id string) (*domain.Duel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	duel, ok := r.duels[id]
	if !ok {
		return nil, domain.ErrDuelNotFound
	}
	return duel.Clone(), nil
}

func (r *DuelRepository) Mutate(_ context.Context, id string, fn func(duel *domain.Duel) error) error {
	r.mu.RLock()
	lock, ok := r.locks[id]
	r.mu.RUnlock()
	if !ok {
		return domain.ErrDuelNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	r.mu.RLock()
	stored := r.duels[id]
	r.mu.RUnlock()
	if stored == nil {
		return domain.ErrDuelNotFound
	}

	working := stored.Clone()
	if err := fn(working); err != nil {
		return err
	}

	r.mu.Lock()
	r.duels[id] = working
	r.mu.Unlock()
	return nil
}

func (r *DuelRepository) ListForUser(_ context.Context, userID string, status *domain.DuelStatus) ([]*domain.Duel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Duel
	for _, duel := range r.duels {
		if duel.Participant(userID) == nil {
			continue
		}
		if status != nil && duel.Status != *status {
			continue
		}
		out = append(out, duel.Clone())
	}
	sortByCreated(out)
	return out, nil
}

func (r *DuelRepository) ListInvitations(_ context.Context, userID string) ([]*domain.Duel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Duel
	for _, duel := range r.duels {
		p := duel.Participant(userID)
		if p == nil || !p.Invited() {
			continue
		}
		out = append(out, duel.Clone())
	}
	sortByCreated(out)
	return out, nil
}

func (r *DuelRepository) ListCompletedForUser(_ context.Context, userID, subjectID string) ([]*domain.Duel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domain.Duel
	for _, duel := range r.duels {
		if duel.Status != domain.DuelStatusCompleted || duel.EndedAt == nil {
			continue
		}
		if subjectID != "" && duel.SubjectID != subjectID {
			continue
		}
		if duel.Participant(userID) == nil {
			continue
		}
		out = append(out, duel.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.After(*out[j].EndedAt) })
	return out, nil
}

func sortByCreated(duels []*domain.Duel) {
	sort.Slice(duels, func(i, j int) bool {
		if !duels[i].CreatedAt.Equal(duels[j].CreatedAt) {
			return duels[i].CreatedAt.After(duels[j].CreatedAt)
		}
		return duels[i].ID < duels[j].ID
	})
}

var _ app.DuelRepository = (*DuelRepository)(nil)
