package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/caseflow/caseflow/internal/domain/ticket"
)

// TicketRepository implements ticket.Repository. Conditional writes use
// `WHERE state=$expected` so the row version check and the write are one
// statement; the store is the arbiter of racing transitions.
type TicketRepository struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

const caseColumns = `id, case_id, kind, owner_id, channel_id, state, category, order_description, quantity, notes, transaction_description, amount, partner_id, partner_missing, staff_name, staff_amount, created_at`

func (r *TicketRepository) Create(ctx context.Context, c *ticket.Case) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO cases (case_id, kind, owner_id, channel_id, state, category, order_description, quantity, notes, transaction_description, amount, partner_id, partner_missing, staff_name, staff_amount, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, c.ID, c.Kind, c.OwnerID, c.ChannelID, c.State, c.Category, c.OrderDescription, c.Quantity, c.Notes, c.TransactionDescription, c.Amount, c.PartnerID, c.PartnerMissing, c.StaffName, c.StaffAmount, c.CreatedAt)
	return err
}

func (r *TicketRepository) GetByID(ctx context.Context, id uuid.UUID) (*ticket.Case, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE case_id=$1`, id)
	return scanCase(row)
}

func (r *TicketRepository) GetByChannel(ctx context.Context, channelID string) (*ticket.Case, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE channel_id=$1`, channelID)
	return scanCase(row)
}

func (r *TicketRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to ticket.State, patch *ticket.FieldPatch) (bool, error) {
	var p ticket.FieldPatch
	if patch != nil {
		p = *patch
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE cases SET
			state=$1,
			staff_name=COALESCE($2, staff_name),
			staff_amount=COALESCE($3, staff_amount),
			partner_id=COALESCE($4, partner_id),
			partner_missing=COALESCE($5, partner_missing)
		WHERE case_id=$6 AND state=$7
	`, to, p.StaffName, p.StaffAmount, p.PartnerID, p.PartnerMissing, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TicketRepository) UpdateFields(ctx context.Context, id uuid.UUID, patch ticket.FieldPatch) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE cases SET
			staff_name=COALESCE($1, staff_name),
			staff_amount=COALESCE($2, staff_amount),
			partner_id=COALESCE($3, partner_id),
			partner_missing=COALESCE($4, partner_missing)
		WHERE case_id=$5
	`, patch.StaffName, patch.StaffAmount, patch.PartnerID, patch.PartnerMissing, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TicketRepository) DeleteInState(ctx context.Context, id uuid.UUID, from ticket.State) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cases WHERE case_id=$1 AND state=$2`, id, from)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TicketRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cases WHERE case_id=$1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *TicketRepository) ListByOwner(ctx context.Context, ownerID string) ([]*ticket.Case, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+caseColumns+` FROM cases WHERE owner_id=$1 ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var cases []*ticket.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func scanCase(row pgx.Row) (*ticket.Case, error) {
	var c ticket.Case
	var rowID int64
	if err := row.Scan(&rowID, &c.ID, &c.Kind, &c.OwnerID, &c.ChannelID, &c.State, &c.Category, &c.OrderDescription, &c.Quantity, &c.Notes, &c.TransactionDescription, &c.Amount, &c.PartnerID, &c.PartnerMissing, &c.StaffName, &c.StaffAmount, &c.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}
