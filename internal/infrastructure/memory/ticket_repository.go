package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/caseflow/caseflow/internal/domain/ticket"
)

// TicketRepository is an in-process ticket.Repository with the same
// conditional-write contract as the postgres implementation.
type TicketRepository struct {
	mu    sync.Mutex
	cases map[uuid.UUID]*ticket.Case
}

func NewTicketRepository() *TicketRepository {
	return &TicketRepository{cases: make(map[uuid.UUID]*ticket.Case)}
}

func (r *TicketRepository) Create(ctx context.Context, c *ticket.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.cases[c.ID] = &cp
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*ticket.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *TicketRepository) GetByChannel(ctx context.Context, channelID string) (*ticket.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cases {
		if c.ChannelID == channelID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *TicketRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to ticket.State, patch *ticket.FieldPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok || c.State != from {
		return false, nil
	}
	c.State = to
	applyPatch(c, patch)
	return true, nil
}

func (r *TicketRepository) UpdateFields(ctx context.Context, id uuid.UUID, patch ticket.FieldPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return false, nil
	}
	applyPatch(c, &patch)
	return true, nil
}

func (r *TicketRepository) DeleteInState(ctx context.Context, id uuid.UUID, from ticket.State) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok || c.State != from {
		return false, nil
	}
	delete(r.cases, id)
	return true, nil
}

func (r *TicketRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[id]; !ok {
		return false, nil
	}
	delete(r.cases, id)
	return true, nil
}

func (r *TicketRepository) ListByOwner(ctx context.Context, ownerID string) ([]*ticket.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*ticket.Case
	for _, c := range r.cases {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func applyPatch(c *ticket.Case, patch *ticket.FieldPatch) {
	if patch == nil {
		return
	}
	if patch.StaffName != nil {
		c.StaffName = *patch.StaffName
	}
	if patch.StaffAmount != nil {
		c.StaffAmount = *patch.StaffAmount
	}
	if patch.PartnerID != nil {
		c.PartnerID = *patch.PartnerID
	}
	if patch.PartnerMissing != nil {
		c.PartnerMissing = *patch.PartnerMissing
	}
}
