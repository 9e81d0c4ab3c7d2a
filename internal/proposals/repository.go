package proposals

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/constructa/propostas/internal/numbering"
	"github.com/constructa/propostas/internal/platform/db"
	"github.com/constructa/propostas/internal/quotes"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	NextNumber(ctx context.Context, code string, year int) (string, error)
	Create(ctx context.Context, p Proposal) (int64, error)
	Get(ctx context.Context, id int64) (*Proposal, error)
	ListByQuote(ctx context.Context, quoteID int64) ([]Proposal, error)
	// Supersede marks every other open proposal of the quote as superseded.
	Supersede(ctx context.Context, quoteID, keepID int64) (int64, error)
	MarkSent(ctx context.Context, id int64, at time.Time) error
	// Respond moves a sent proposal to accepted or rejected. A proposal that
	// is not sent any more yields ErrAlreadyResponded.
	Respond(ctx context.Context, id int64, to Status, name, note string, at time.Time) error
	SetQuoteStatus(ctx context.Context, quoteID int64, from, to quotes.Status) error
	CreateToken(ctx context.Context, t Token) error
	GetToken(ctx context.Context, id uuid.UUID) (*Token, error)
	// UseToken consumes a token once; a used token yields ErrAlreadyResponded.
	UseToken(ctx context.Context, id uuid.UUID, at time.Time) error
	ExpireDue(ctx context.Context, now time.Time) (Expired, error)
}

type repository struct {
	db   db.DBTX
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

func (r *repository) NextNumber(ctx context.Context, code string, year int) (string, error) {
	return numbering.Next(ctx, r.db, code, year)
}

const proposalColumns = `p.id, p.quote_id, q.number, q.vendor_id, p.number, p.status, p.expires_at,
	p.pdf_path, p.sent_to, p.message, p.sent_at, p.responded_at, p.responder_name, p.response_note,
	p.created_by, p.created_at, p.updated_at`

const proposalFrom = ` FROM proposals p JOIN quotes q ON q.id = p.quote_id`

func scanProposal(row pgx.Row) (Proposal, error) {
	var p Proposal
	var status string
	err := row.Scan(&p.ID, &p.QuoteID, &p.QuoteNumber, &p.VendorID, &p.Number, &status, &p.ExpiresAt,
		&p.PDFPath, &p.SentTo, &p.Message, &p.SentAt, &p.RespondedAt, &p.ResponderName, &p.ResponseNote,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Proposal{}, ErrNotFound
	}
	p.Status = Status(status)
	return p, err
}

func (r *repository) Create(ctx context.Context, p Proposal) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO proposals (quote_id, number, status, expires_at, pdf_path, sent_to, message, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.QuoteID, p.Number, string(p.Status), p.ExpiresAt, p.PDFPath, p.SentTo, p.Message, p.CreatedBy).Scan(&id)
	return id, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Proposal, error) {
	p, err := scanProposal(r.db.QueryRow(ctx, `SELECT `+proposalColumns+proposalFrom+` WHERE p.id = $1`, id))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListByQuote(ctx context.Context, quoteID int64) ([]Proposal, error) {
	rows, err := r.db.Query(ctx, `SELECT `+proposalColumns+proposalFrom+` WHERE p.quote_id = $1 ORDER BY p.created_at DESC, p.id DESC`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *repository) Supersede(ctx context.Context, quoteID, keepID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE proposals SET status = 'superseded', updated_at = NOW()
		WHERE quote_id = $1 AND id <> $2 AND status = 'sent'`, quoteID, keepID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) MarkSent(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE proposals SET sent_at = $2, updated_at = NOW() WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Respond(ctx context.Context, id int64, to Status, name, note string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE proposals
		SET status = $2, responder_name = $3, response_note = $4, responded_at = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'sent'`, id, string(to), name, note, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResponded
	}
	return nil
}

func (r *repository) SetQuoteStatus(ctx context.Context, quoteID int64, from, to quotes.Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE quotes SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		quoteID, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return quotes.ErrInvalidStatus
	}
	return nil
}

func (r *repository) CreateToken(ctx context.Context, t Token) error {
	_, err := r.db.Exec(ctx, `INSERT INTO proposal_tokens (id, proposal_id, expires_at) VALUES ($1, $2, $3)`,
		t.ID, t.ProposalID, t.ExpiresAt)
	return err
}

func (r *repository) GetToken(ctx context.Context, id uuid.UUID) (*Token, error) {
	var t Token
	err := r.db.QueryRow(ctx, `SELECT id, proposal_id, expires_at, used_at FROM proposal_tokens WHERE id = $1`, id).
		Scan(&t.ID, &t.ProposalID, &t.ExpiresAt, &t.UsedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *repository) UseToken(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE proposal_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyResponded
	}
	return nil
}

func (r *repository) ExpireDue(ctx context.Context, now time.Time) (Expired, error) {
	var out Expired
	err := r.db.QueryRow(ctx, `WITH due AS (
			UPDATE proposals SET status = 'expired', updated_at = NOW()
			WHERE status = 'sent' AND expires_at <= $1
			RETURNING quote_id
		), q AS (
			UPDATE quotes SET status = 'expired', updated_at = NOW()
			WHERE status = 'sent' AND id IN (SELECT quote_id FROM due)
			RETURNING id
		)
		SELECT (SELECT COUNT(*) FROM due), (SELECT COUNT(*) FROM q)`, now).Scan(&out.Proposals, &out.Quotes)
	return out, err
}
