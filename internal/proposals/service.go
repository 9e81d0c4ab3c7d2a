package proposals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/constructa/propostas/internal/format"
	"github.com/constructa/propostas/internal/mail"
	"github.com/constructa/propostas/internal/numbering"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/platform/mailer"
	"github.com/constructa/propostas/internal/platform/storage"
	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/shared"
)

// QuoteStore reads quotes without vendor scoping.
type QuoteStore interface {
	Get(ctx context.Context, id int64) (*quotes.Quote, error)
}

// Dispatcher hands email work to the background queue. When no dispatcher is
// configured the service sends inline.
type Dispatcher interface {
	EnqueueDelivery(ctx context.Context, d Delivery) error
	EnqueueResponseNotice(ctx context.Context, proposalID int64) error
}

type Config struct {
	CompanyName   string
	PublicBaseURL string
	ValidityDays  int
}

type Service struct {
	repo       Repository
	quotes     QuoteStore
	renderer   Renderer
	store      storage.Store
	signer     *Signer
	composer   *mail.Composer
	sender     mailer.Sender
	dispatcher Dispatcher
	notifier   quotes.ChangeNotifier
	audit      shared.Auditor
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
}

type Deps struct {
	Repo     Repository
	Quotes   QuoteStore
	Renderer Renderer
	Store    storage.Store
	Signer   *Signer
	Composer *mail.Composer
	Sender   mailer.Sender
	// Dispatcher is optional.
	Dispatcher Dispatcher
	Notifier   quotes.ChangeNotifier
	Audit      shared.Auditor
	Logger     *slog.Logger
}

func NewService(d Deps, cfg Config) *Service {
	if cfg.ValidityDays <= 0 {
		cfg.ValidityDays = 15
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:       d.Repo,
		quotes:     d.Quotes,
		renderer:   d.Renderer,
		store:      d.Store,
		signer:     d.Signer,
		composer:   d.Composer,
		sender:     d.Sender,
		dispatcher: d.Dispatcher,
		notifier:   d.Notifier,
		audit:      d.Audit,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// StorageKey is where the PDF of a proposal number is stored.
func StorageKey(number string) string {
	return "proposals/" + numbering.Filename(number) + ".pdf"
}

func (s *Service) acceptURL(token string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/aceite/" + token
}

func (s *Service) scopedQuote(ctx context.Context, actor shared.Principal, quoteID int64) (*quotes.Quote, error) {
	q, err := s.quotes.Get(ctx, quoteID)
	if err != nil {
		return nil, err
	}
	if actor.IsVendor() && q.VendorID != actor.UserID {
		return nil, quotes.ErrNotFound
	}
	return q, nil
}

// Create issues a new proposal for a draft or sent quote. Numbering, PDF
// storage, token and quote status share one transaction.
func (s *Service) Create(ctx context.Context, actor shared.Principal, quoteID int64, req CreateRequest) (*Proposal, error) {
	req.Recipient = strings.ToLower(strings.TrimSpace(req.Recipient))
	req.Message = strings.TrimSpace(req.Message)
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	q, err := s.scopedQuote(ctx, actor, quoteID)
	if err != nil {
		return nil, err
	}
	if q.Status != quotes.StatusDraft && q.Status != quotes.StatusSent {
		return nil, fmt.Errorf("%w: quote is %s", ErrQuoteStatus, q.Status)
	}
	if len(q.Items) == 0 {
		return nil, quotes.ErrNoItems
	}
	recipient := req.Recipient
	if recipient == "" {
		recipient = q.ClientEmail
	}
	if recipient == "" {
		return nil, ErrNoRecipient
	}
	days := req.ExpiresInDays
	if days == 0 {
		days = s.cfg.ValidityDays
	}
	if days > MaxValidityDays {
		days = MaxValidityDays
	}

	now := s.now()
	expires := now.AddDate(0, 0, days)
	var (
		created Proposal
		token   string
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		number, err := repo.NextNumber(ctx, q.VendorCode, format.Local(now).Year())
		if err != nil {
			return err
		}
		created = Proposal{
			QuoteID:     q.ID,
			QuoteNumber: q.Number,
			VendorID:    q.VendorID,
			Number:      number,
			Status:      StatusSent,
			ExpiresAt:   expires,
			PDFPath:     StorageKey(number),
			SentTo:      recipient,
			Message:     req.Message,
			CreatedBy:   actor.UserID,
		}
		if created.ID, err = repo.Create(ctx, created); err != nil {
			return err
		}
		if _, err := repo.Supersede(ctx, q.ID, created.ID); err != nil {
			return err
		}
		tok := Token{ID: uuid.New(), ProposalID: created.ID, ExpiresAt: expires}
		if err := repo.CreateToken(ctx, tok); err != nil {
			return err
		}
		if token, err = s.signer.Issue(tok); err != nil {
			return err
		}
		created.AcceptURL = s.acceptURL(token)

		pdf, err := s.renderer.Render(ctx, Document{
			CompanyName: s.cfg.CompanyName,
			Number:      number,
			IssuedAt:    now,
			ExpiresAt:   expires,
			Message:     req.Message,
			AcceptURL:   created.AcceptURL,
			Quote:       q,
		})
		if err != nil {
			return fmt.Errorf("render proposal: %w", err)
		}
		if err := s.store.Put(ctx, created.PDFPath, "application/pdf", pdf); err != nil {
			return fmt.Errorf("store proposal: %w", err)
		}
		if q.Status == quotes.StatusDraft {
			return repo.SetQuoteStatus(ctx, q.ID, quotes.StatusDraft, quotes.StatusSent)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create proposal: %w", err)
	}

	s.changed(ctx, actor.UserID, "proposal.create", created.ID, map[string]any{"number": created.Number, "quote": q.Number, "to": recipient})
	s.deliver(ctx, Delivery{ProposalID: created.ID, AcceptURL: created.AcceptURL})

	out, err := s.repo.Get(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	out.AcceptURL = created.AcceptURL
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (*Proposal, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsVendor() && p.VendorID != actor.UserID {
		return nil, ErrNotFound
	}
	return p, nil
}

func (s *Service) ListByQuote(ctx context.Context, actor shared.Principal, quoteID int64) ([]Proposal, error) {
	if _, err := s.scopedQuote(ctx, actor, quoteID); err != nil {
		return nil, err
	}
	return s.repo.ListByQuote(ctx, quoteID)
}

// PDF returns the stored document and its download name.
func (s *Service) PDF(ctx context.Context, actor shared.Principal, id int64) ([]byte, string, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	return s.load(ctx, p)
}

func (s *Service) load(ctx context.Context, p *Proposal) ([]byte, string, error) {
	data, err := s.store.Get(ctx, p.PDFPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", ErrPDFMissing
	}
	if err != nil {
		return nil, "", err
	}
	return data, "proposta-" + numbering.Filename(p.Number) + ".pdf", nil
}

// Resend emails an open proposal again with a fresh acceptance link.
func (s *Service) Resend(ctx context.Context, actor shared.Principal, id int64) (*Proposal, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusSent || p.Expired(s.now()) {
		return nil, ErrNotOpen
	}
	tok := Token{ID: uuid.New(), ProposalID: p.ID, ExpiresAt: p.ExpiresAt}
	if err := s.repo.CreateToken(ctx, tok); err != nil {
		return nil, err
	}
	token, err := s.signer.Issue(tok)
	if err != nil {
		return nil, err
	}
	p.AcceptURL = s.acceptURL(token)
	s.changed(ctx, actor.UserID, "proposal.resend", p.ID, map[string]any{"to": p.SentTo})
	s.deliver(ctx, Delivery{ProposalID: p.ID, AcceptURL: p.AcceptURL})
	return p, nil
}

func (s *Service) deliver(ctx context.Context, d Delivery) {
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueDelivery(ctx, d); err != nil {
			s.logger.Error("enqueue proposal email", slog.Int64("proposal_id", d.ProposalID), slog.Any("error", err))
		}
		return
	}
	if err := s.Deliver(ctx, d); err != nil {
		s.logger.Error("send proposal email", slog.Int64("proposal_id", d.ProposalID), slog.Any("error", err))
	}
}

// Deliver emails the proposal PDF to its recipient and stamps sent_at.
func (s *Service) Deliver(ctx context.Context, d Delivery) error {
	p, err := s.repo.Get(ctx, d.ProposalID)
	if err != nil {
		return err
	}
	if p.Status != StatusSent {
		s.logger.Info("skip delivery of closed proposal", slog.Int64("proposal_id", p.ID), slog.String("status", string(p.Status)))
		return nil
	}
	q, err := s.quotes.Get(ctx, p.QuoteID)
	if err != nil {
		return err
	}
	pdf, filename, err := s.load(ctx, p)
	if err != nil {
		return err
	}
	items := make([]mail.Item, 0, len(q.Items))
	for _, it := range q.Items {
		items = append(items, mail.Item{Description: it.Description, Quantity: it.Quantity, Unit: it.Unit, UnitPrice: it.UnitPrice, Total: it.LineTotal})
	}
	msg, err := s.composer.Proposal(mail.ProposalEmail{
		To:             p.SentTo,
		ClientName:     q.ClientName,
		ProposalNumber: p.Number,
		Total:          q.TotalAmount,
		ValidUntil:     mail.Date{Time: format.Local(p.ExpiresAt)},
		VendorName:     q.VendorName,
		VendorEmail:    q.VendorEmail,
		Message:        p.Message,
		Items:          items,
		AcceptURL:      d.AcceptURL,
	})
	if err != nil {
		return err
	}
	mail.AttachPDF(&msg, filename, pdf)
	if err := s.sender.Send(ctx, msg); err != nil {
		return err
	}
	return s.repo.MarkSent(ctx, p.ID, s.now())
}

// Summary resolves an acceptance link for the public page. Answered
// proposals are still shown so the client can see the outcome.
func (s *Service) Summary(ctx context.Context, raw string) (*Summary, error) {
	p, q, _, err := s.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	sum := &Summary{
		Number:        p.Number,
		QuoteNumber:   q.Number,
		CompanyName:   s.cfg.CompanyName,
		Status:        p.Status,
		ExpiresAt:     p.ExpiresAt,
		ClientName:    q.ClientName,
		VendorName:    q.VendorName,
		VendorEmail:   q.VendorEmail,
		PaymentTerms:  q.PaymentTerms,
		Notes:         q.Notes,
		Message:       p.Message,
		Items:         q.Items,
		Totals:        q.Totals,
		RespondedAt:   p.RespondedAt,
		ResponderName: p.ResponderName,
	}
	if q.Freight != nil {
		fr := q.Freight.Result
		sum.Freight = &fr
	}
	return sum, nil
}

// PublicPDF serves the proposal document behind a valid link.
func (s *Service) PublicPDF(ctx context.Context, raw string) ([]byte, string, error) {
	p, _, _, err := s.resolve(ctx, raw)
	if err != nil {
		return nil, "", err
	}
	return s.load(ctx, p)
}

func (s *Service) resolve(ctx context.Context, raw string) (*Proposal, *quotes.Quote, *Token, error) {
	tokenID, proposalID, err := s.signer.Verify(raw)
	linkExpired := errors.Is(err, ErrTokenExpired)
	if err != nil && !linkExpired {
		return nil, nil, nil, err
	}
	tok, err := s.repo.GetToken(ctx, tokenID)
	if err != nil {
		return nil, nil, nil, err
	}
	if tok.ProposalID != proposalID {
		return nil, nil, nil, ErrTokenInvalid
	}
	p, err := s.repo.Get(ctx, proposalID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if p.Status == StatusSuperseded {
		return nil, nil, nil, ErrTokenInvalid
	}
	// Answered proposals stay readable after the deadline; only an open or
	// expired one reports the link as gone.
	if (p.Status == StatusSent || p.Status == StatusExpired) && (linkExpired || p.Status == StatusExpired || p.Expired(s.now())) {
		return nil, nil, nil, ErrTokenExpired
	}
	q, err := s.quotes.Get(ctx, p.QuoteID)
	if err != nil {
		return nil, nil, nil, err
	}
	return p, q, tok, nil
}

func (s *Service) Accept(ctx context.Context, raw string, req AcceptRequest) (*Summary, error) {
	req.Name, req.Note = strings.TrimSpace(req.Name), strings.TrimSpace(req.Note)
	return s.respond(ctx, raw, true, req.Name, req.Note, req)
}

func (s *Service) Reject(ctx context.Context, raw string, req RejectRequest) (*Summary, error) {
	req.Name, req.Reason = strings.TrimSpace(req.Name), strings.TrimSpace(req.Reason)
	return s.respond(ctx, raw, false, req.Name, req.Reason, req)
}

func (s *Service) respond(ctx context.Context, raw string, accepted bool, name, note string, req any) (*Summary, error) {
	if err := httpx.Validate(req); err != nil {
		return nil, err
	}
	p, _, tok, err := s.resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	if tok.UsedAt != nil || p.Status != StatusSent {
		return nil, ErrAlreadyResponded
	}
	to, quoteTo := StatusRejected, quotes.StatusRejected
	if accepted {
		to, quoteTo = StatusAccepted, quotes.StatusAccepted
	}
	now := s.now()
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.UseToken(ctx, tok.ID, now); err != nil {
			return err
		}
		if err := repo.Respond(ctx, p.ID, to, name, note, now); err != nil {
			return err
		}
		return repo.SetQuoteStatus(ctx, p.QuoteID, quotes.StatusSent, quoteTo)
	})
	if err != nil {
		return nil, err
	}

	s.changed(ctx, 0, "proposal."+string(to), p.ID, map[string]any{"number": p.Number, "name": name})
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueResponseNotice(ctx, p.ID); err != nil {
			s.logger.Error("enqueue response notice", slog.Int64("proposal_id", p.ID), slog.Any("error", err))
		}
	} else if err := s.NotifyResponse(ctx, p.ID); err != nil {
		s.logger.Error("send response notice", slog.Int64("proposal_id", p.ID), slog.Any("error", err))
	}
	return s.Summary(ctx, raw)
}

// NotifyResponse emails the vendor that the client answered a proposal.
func (s *Service) NotifyResponse(ctx context.Context, proposalID int64) error {
	p, err := s.repo.Get(ctx, proposalID)
	if err != nil {
		return err
	}
	if p.Status != StatusAccepted && p.Status != StatusRejected {
		return nil
	}
	q, err := s.quotes.Get(ctx, p.QuoteID)
	if err != nil {
		return err
	}
	if q.VendorEmail == "" {
		return nil
	}
	notice := mail.ResponseNotice{
		To:             q.VendorEmail,
		VendorName:     q.VendorName,
		ProposalNumber: p.Number,
		QuoteNumber:    q.Number,
		ClientName:     q.ClientName,
		Accepted:       p.Status == StatusAccepted,
		ResponderName:  p.ResponderName,
		Note:           p.ResponseNote,
		Total:          q.TotalAmount,
	}
	if p.RespondedAt != nil {
		notice.RespondedAt = *p.RespondedAt
	}
	msg, err := s.composer.Response(notice)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, msg)
}

// ExpireDue marks overdue sent proposals and their quotes as expired.
func (s *Service) ExpireDue(ctx context.Context) (Expired, error) {
	res, err := s.repo.ExpireDue(ctx, s.now())
	if err != nil {
		return res, fmt.Errorf("expire proposals: %w", err)
	}
	if res.Proposals > 0 && s.notifier != nil {
		s.notifier.QuotesChanged(ctx)
	}
	return res, nil
}

func (s *Service) changed(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.notifier != nil {
		s.notifier.QuotesChanged(ctx)
	}
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "proposal", EntityID: fmt.Sprint(id), Meta: meta}); err != nil {
		s.logger.Warn("audit proposal", slog.String("action", action), slog.Any("error", err))
	}
}
