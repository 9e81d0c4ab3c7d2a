package proposals

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constructa/propostas/internal/freight"
	"github.com/constructa/propostas/internal/mail"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/platform/mailer"
	"github.com/constructa/propostas/internal/platform/storage"
	"github.com/constructa/propostas/internal/quotes"
	"github.com/constructa/propostas/internal/shared"
	"github.com/constructa/propostas/internal/view"
)

type memRepo struct {
	proposals map[int64]*Proposal
	tokens    map[uuid.UUID]*Token
	quotes    map[int64]*quotes.Quote
	counters  map[string]int
	nextID    int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		proposals: map[int64]*Proposal{},
		tokens:    map[uuid.UUID]*Token{},
		quotes:    map[int64]*quotes.Quote{},
		counters:  map[string]int{},
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	props := map[int64]Proposal{}
	for id, p := range m.proposals {
		props[id] = *p
	}
	toks := map[uuid.UUID]Token{}
	for id, t := range m.tokens {
		toks[id] = *t
	}
	statuses := map[int64]quotes.Status{}
	for id, q := range m.quotes {
		statuses[id] = q.Status
	}
	if err := fn(ctx, m); err != nil {
		m.proposals = map[int64]*Proposal{}
		for id, p := range props {
			p := p
			m.proposals[id] = &p
		}
		m.tokens = map[uuid.UUID]*Token{}
		for id, t := range toks {
			t := t
			m.tokens[id] = &t
		}
		for id, st := range statuses {
			m.quotes[id].Status = st
		}
		return err
	}
	return nil
}

func (m *memRepo) NextNumber(_ context.Context, code string, year int) (string, error) {
	key := fmt.Sprintf("%s/%d", code, year)
	m.counters[key]++
	return fmt.Sprintf("%s-%04d/%d", code, m.counters[key], year), nil
}

func (m *memRepo) Create(_ context.Context, p Proposal) (int64, error) {
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	m.proposals[p.ID] = &p
	return p.ID, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (*Proposal, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *p
	out.AcceptURL = ""
	return &out, nil
}

func (m *memRepo) ListByQuote(_ context.Context, quoteID int64) ([]Proposal, error) {
	var out []Proposal
	for _, p := range m.proposals {
		if p.QuoteID == quoteID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) Supersede(_ context.Context, quoteID, keepID int64) (int64, error) {
	var n int64
	for _, p := range m.proposals {
		if p.QuoteID == quoteID && p.ID != keepID && p.Status == StatusSent {
			p.Status = StatusSuperseded
			n++
		}
	}
	return n, nil
}

func (m *memRepo) MarkSent(_ context.Context, id int64, at time.Time) error {
	p, ok := m.proposals[id]
	if !ok {
		return ErrNotFound
	}
	p.SentAt = &at
	return nil
}

func (m *memRepo) Respond(_ context.Context, id int64, to Status, name, note string, at time.Time) error {
	p, ok := m.proposals[id]
	if !ok || p.Status != StatusSent {
		return ErrAlreadyResponded
	}
	p.Status, p.ResponderName, p.ResponseNote, p.RespondedAt = to, name, note, &at
	return nil
}

func (m *memRepo) SetQuoteStatus(_ context.Context, quoteID int64, from, to quotes.Status) error {
	q, ok := m.quotes[quoteID]
	if !ok || q.Status != from {
		return quotes.ErrInvalidStatus
	}
	q.Status = to
	return nil
}

func (m *memRepo) CreateToken(_ context.Context, t Token) error {
	m.tokens[t.ID] = &t
	return nil
}

func (m *memRepo) GetToken(_ context.Context, id uuid.UUID) (*Token, error) {
	t, ok := m.tokens[id]
	if !ok {
		return nil, ErrTokenInvalid
	}
	out := *t
	return &out, nil
}

func (m *memRepo) UseToken(_ context.Context, id uuid.UUID, at time.Time) error {
	t, ok := m.tokens[id]
	if !ok || t.UsedAt != nil {
		return ErrAlreadyResponded
	}
	t.UsedAt = &at
	return nil
}

func (m *memRepo) ExpireDue(_ context.Context, now time.Time) (Expired, error) {
	var out Expired
	for _, p := range m.proposals {
		if p.Status == StatusSent && !p.ExpiresAt.After(now) {
			p.Status = StatusExpired
			out.Proposals++
			if q := m.quotes[p.QuoteID]; q != nil && q.Status == quotes.StatusSent {
				q.Status = quotes.StatusExpired
				out.Quotes++
			}
		}
	}
	return out, nil
}

type quoteStore struct{ m *memRepo }

func (s quoteStore) Get(_ context.Context, id int64) (*quotes.Quote, error) {
	q, ok := s.m.quotes[id]
	if !ok {
		return nil, quotes.ErrNotFound
	}
	out := *q
	return &out, nil
}

type memStore struct{ objects map[string][]byte }

func (s *memStore) Put(_ context.Context, key, _ string, data []byte) error {
	s.objects[key] = data
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

type fakeRenderer struct {
	err  error
	docs []Document
}

func (r *fakeRenderer) Render(_ context.Context, doc Document) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.docs = append(r.docs, doc)
	return []byte("%PDF-" + doc.Number), nil
}

type countingNotifier struct{ calls int }

func (n *countingNotifier) QuotesChanged(context.Context) { n.calls++ }

type fixture struct {
	svc      *Service
	repo     *memRepo
	store    *memStore
	renderer *fakeRenderer
	sender   *mailer.Memory
	audit    *shared.AuditRecorder
	notifier *countingNotifier
	now      time.Time
}

var (
	vendor  = shared.Principal{UserID: 1, Role: shared.RoleVendor, SalespersonCode: "JS"}
	other   = shared.Principal{UserID: 2, Role: shared.RoleVendor, SalespersonCode: "MA"}
	manager = shared.Principal{UserID: 9, Role: shared.RoleManager}
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	engine, err := view.NewEngine()
	require.NoError(t, err)

	f := &fixture{
		repo:     newMemRepo(),
		store:    &memStore{objects: map[string][]byte{}},
		renderer: &fakeRenderer{},
		sender:   &mailer.Memory{},
		audit:    &shared.AuditRecorder{},
		notifier: &countingNotifier{},
		now:      time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	signer := NewSigner("token-secret")
	signer.now = func() time.Time { return f.now }
	f.svc = NewService(Deps{
		Repo:     f.repo,
		Quotes:   quoteStore{f.repo},
		Renderer: f.renderer,
		Store:    f.store,
		Signer:   signer,
		Composer: mail.NewComposer(engine, "Constructa"),
		Sender:   f.sender,
		Notifier: f.notifier,
		Audit:    f.audit,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, Config{CompanyName: "Constructa", PublicBaseURL: "https://app.constructa.com.br/", ValidityDays: 7})
	f.svc.now = func() time.Time { return f.now }

	f.repo.quotes[10] = &quotes.Quote{
		ID: 10, Number: "ORC-0001/2026", VendorID: 1, VendorName: "João Silva", VendorEmail: "joao@constructa.com.br",
		VendorCode: "JS", ClientName: "Obra Azul", ClientEmail: "compras@obraazul.com.br", Status: quotes.StatusDraft,
		Totals:  quotes.Totals{Subtotal: 1000, FreightAmount: 250, TotalAmount: 1250},
		Items:   []quotes.Item{{ID: 1, ProductID: 5, ProductCode: "CIM50", Description: "Cimento 50kg", Unit: "SC", Quantity: 25, UnitPrice: 40, LineTotal: 1000, Position: 1}},
		Freight: &quotes.Freight{QuoteID: 10, Result: freight.Result{Modality: freight.ModalityCIF, Trips: 1, PricePerTrip: 250, Total: 250}},
	}
	f.repo.quotes[11] = &quotes.Quote{ID: 11, Number: "ORC-0002/2026", VendorID: 1, VendorCode: "JS", ClientName: "Sem itens", ClientEmail: "x@y.com", Status: quotes.StatusDraft}
	f.repo.quotes[12] = &quotes.Quote{ID: 12, Number: "ORC-0003/2026", VendorID: 1, VendorCode: "JS", ClientName: "Cancelado", Status: quotes.StatusCancelled,
		Items: []quotes.Item{{ProductID: 5, Quantity: 1}}}
	return f
}

func tokenFrom(t *testing.T, p *Proposal) string {
	t.Helper()
	i := strings.LastIndex(p.AcceptURL, "/aceite/")
	require.True(t, i > 0, p.AcceptURL)
	return p.AcceptURL[i+len("/aceite/"):]
}

func TestCreateProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, vendor, 10, CreateRequest{Message: "Conforme conversamos"})
	require.NoError(t, err)

	assert.Equal(t, "JS-0001/2026", p.Number)
	assert.Equal(t, StatusSent, p.Status)
	assert.Equal(t, "compras@obraazul.com.br", p.SentTo)
	assert.Equal(t, f.now.AddDate(0, 0, 7), p.ExpiresAt)
	assert.True(t, strings.HasPrefix(p.AcceptURL, "https://app.constructa.com.br/aceite/"))
	assert.NotNil(t, p.SentAt)
	assert.Equal(t, quotes.StatusSent, f.repo.quotes[10].Status)

	assert.Equal(t, []byte("%PDF-JS-0001/2026"), f.store.objects["proposals/JS-0001-2026.pdf"])
	require.Len(t, f.renderer.docs, 1)
	assert.Equal(t, "Conforme conversamos", f.renderer.docs[0].Message)
	assert.Equal(t, p.AcceptURL, f.renderer.docs[0].AcceptURL)

	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"compras@obraazul.com.br"}, sent[0].To)
	assert.Contains(t, sent[0].HTML, p.AcceptURL)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "proposta-JS-0001-2026.pdf", sent[0].Attachments[0].Filename)

	require.NotEmpty(t, f.audit.Entries)
	assert.Equal(t, "proposal.create", f.audit.Entries[0].Action)
	assert.Positive(t, f.notifier.calls)
}

func TestCreateSupersedesOpenProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, vendor, 10, CreateRequest{})
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, manager, 10, CreateRequest{Recipient: "Diretoria@ObraAzul.com.br"})
	require.NoError(t, err)

	assert.Equal(t, "JS-0002/2026", second.Number)
	assert.Equal(t, "diretoria@obraazul.com.br", second.SentTo)
	assert.Equal(t, StatusSuperseded, f.repo.proposals[first.ID].Status)

	_, err = f.svc.Summary(ctx, tokenFrom(t, first))
	assert.ErrorIs(t, err, ErrTokenInvalid)

	list, err := f.svc.ListByQuote(ctx, vendor, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestCreateProposalRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, vendor, 12, CreateRequest{})
	assert.ErrorIs(t, err, ErrQuoteStatus)

	_, err = f.svc.Create(ctx, vendor, 11, CreateRequest{})
	assert.ErrorIs(t, err, quotes.ErrNoItems)

	_, err = f.svc.Create(ctx, other, 10, CreateRequest{})
	assert.ErrorIs(t, err, quotes.ErrNotFound)

	_, err = f.svc.Create(ctx, vendor, 10, CreateRequest{Recipient: "not-mail"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	f.repo.quotes[10].ClientEmail = ""
	_, err = f.svc.Create(ctx, vendor, 10, CreateRequest{})
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestCreateProposalRollsBackOnRenderFailure(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = errors.New("gotenberg down")

	_, err := f.svc.Create(context.Background(), vendor, 10, CreateRequest{})
	require.Error(t, err)
	assert.Empty(t, f.repo.proposals)
	assert.Empty(t, f.repo.tokens)
	assert.Equal(t, quotes.StatusDraft, f.repo.quotes[10].Status)
	assert.Empty(t, f.sender.Sent())
}

func TestAcceptProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, vendor, 10, CreateRequest{})
	require.NoError(t, err)
	token := tokenFrom(t, p)

	sum, err := f.svc.Summary(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Obra Azul", sum.ClientName)
	assert.Equal(t, 1250.0, sum.Totals.TotalAmount)
	require.NotNil(t, sum.Freight)
	assert.Equal(t, 250.0, sum.Freight.Total)

	f.now = f.now.Add(48 * time.Hour)
	sum, err = f.svc.Accept(ctx, token, AcceptRequest{Name: "  Maria Souza ", Note: "Entregar segunda"})
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, sum.Status)
	assert.Equal(t, "Maria Souza", sum.ResponderName)
	assert.Equal(t, quotes.StatusAccepted, f.repo.quotes[10].Status)

	sent := f.sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []string{"joao@constructa.com.br"}, sent[1].To)
	assert.Contains(t, sent[1].HTML, "ACEITA")
	assert.Contains(t, sent[1].HTML, "Entregar segunda")

	_, err = f.svc.Accept(ctx, token, AcceptRequest{Name: "Maria"})
	assert.ErrorIs(t, err, ErrAlreadyResponded)
	_, err = f.svc.Reject(ctx, token, RejectRequest{Name: "Maria"})
	assert.ErrorIs(t, err, ErrAlreadyResponded)

	sum, err = f.svc.Summary(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, sum.Status)
}

func TestRejectProposal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, vendor, 10, CreateRequest{})
	require.NoError(t, err)

	_, err = f.svc.Reject(ctx, tokenFrom(t, p), RejectRequest{Name: " "})
	require.Error(t, err)
	assert.Equal(t, StatusSent, f.repo.proposals[p.ID].Status)

	sum, err := f.svc.Reject(ctx, tokenFrom(t, p), RejectRequest{Name: "Carlos", Reason: "Preço acima do orçamento"})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, sum.Status)
	assert.Equal(t, quotes.StatusRejected, f.repo.quotes[10].Status)
	assert.Equal(t, "Preço acima do orçamento", f.repo.proposals[p.ID].ResponseNote)
}

func TestExpiredLinkAndSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, vendor, 10, CreateRequest{ExpiresInDays: 2})
	require.NoError(t, err)
	token := tokenFrom(t, p)

	f.now = f.now.Add(72 * time.Hour)
	_, err = f.svc.Summary(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	_, err = f.svc.Accept(ctx, token, AcceptRequest{Name: "Maria"})
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = f.svc.Resend(ctx, vendor, p.ID)
	assert.ErrorIs(t, err, ErrNotOpen)

	res, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, Expired{Proposals: 1, Quotes: 1}, res)
	assert.Equal(t, StatusExpired, f.repo.proposals[p.ID].Status)
	assert.Equal(t, quotes.StatusExpired, f.repo.quotes[10].Status)

	res, err = f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Proposals)
}

func TestResendIssuesFreshLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, vendor, 10, CreateRequest{})
	require.NoError(t, err)

	again, err := f.svc.Resend(ctx, vendor, p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, p.AcceptURL, again.AcceptURL)
	assert.Len(t, f.repo.tokens, 2)
	assert.Len(t, f.sender.Sent(), 2)

	_, err = f.svc.Resend(ctx, other, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPDFAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, vendor, 10, CreateRequest{})
	require.NoError(t, err)

	data, name, err := f.svc.PDF(ctx, vendor, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "proposta-JS-0001-2026.pdf", name)
	assert.Equal(t, []byte("%PDF-JS-0001/2026"), data)

	_, _, err = f.svc.PDF(ctx, other, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	data, _, err = f.svc.PublicPDF(ctx, tokenFrom(t, p))
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	delete(f.store.objects, p.PDFPath)
	_, _, err = f.svc.PDF(ctx, manager, p.ID)
	assert.ErrorIs(t, err, ErrPDFMissing)
}

type recordingDispatcher struct {
	deliveries []Delivery
	notices    []int64
}

func (d *recordingDispatcher) EnqueueDelivery(_ context.Context, del Delivery) error {
	d.deliveries = append(d.deliveries, del)
	return nil
}

func (d *recordingDispatcher) EnqueueResponseNotice(_ context.Context, id int64) error {
	d.notices = append(d.notices, id)
	return nil
}

func TestDispatcherDefersEmail(t *testing.T) {
	f := newFixture(t)
	d := &recordingDispatcher{}
	f.svc.dispatcher = d
	ctx := context.Background()

	p, err := f.svc.Create(ctx, vendor, 10, CreateRequest{})
	require.NoError(t, err)
	assert.Empty(t, f.sender.Sent())
	require.Len(t, d.deliveries, 1)
	assert.Equal(t, p.AcceptURL, d.deliveries[0].AcceptURL)

	require.NoError(t, f.svc.Deliver(ctx, d.deliveries[0]))
	assert.Len(t, f.sender.Sent(), 1)
	assert.NotNil(t, f.repo.proposals[p.ID].SentAt)

	_, err = f.svc.Accept(ctx, tokenFrom(t, p), AcceptRequest{Name: "Maria"})
	require.NoError(t, err)
	assert.Equal(t, []int64{p.ID}, d.notices)
	require.NoError(t, f.svc.NotifyResponse(ctx, p.ID))
	assert.Len(t, f.sender.Sent(), 2)
}

func TestAnsweredLinkAfterDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, vendor, 10, CreateRequest{})
	require.NoError(t, err)
	token := tokenFrom(t, p)

	_, err = f.svc.Accept(ctx, token, AcceptRequest{Name: "Maria Souza"})
	require.NoError(t, err)

	f.now = f.now.AddDate(0, 0, 8)

	_, err = f.svc.Accept(ctx, token, AcceptRequest{Name: "Maria Souza"})
	assert.ErrorIs(t, err, ErrAlreadyResponded)
	_, err = f.svc.Reject(ctx, token, RejectRequest{Name: "Maria Souza"})
	assert.ErrorIs(t, err, ErrAlreadyResponded)
	assert.ErrorIs(t, err, httpx.ErrConflict)

	sum, err := f.svc.Summary(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, sum.Status)
}

func TestCancelledQuoteLinkIsGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, vendor, 10, CreateRequest{})
	require.NoError(t, err)
	token := tokenFrom(t, p)

	// what quotes.Service.Cancel does to a sent quote
	_, err = f.repo.Supersede(ctx, 10, 0)
	require.NoError(t, err)
	f.repo.quotes[10].Status = quotes.StatusCancelled

	_, err = f.svc.Summary(ctx, token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.ErrorIs(t, err, httpx.ErrNotFound)
	_, err = f.svc.Accept(ctx, token, AcceptRequest{Name: "Maria Souza"})
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Equal(t, quotes.StatusCancelled, f.repo.quotes[10].Status)
}
