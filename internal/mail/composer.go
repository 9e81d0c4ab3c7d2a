package mail

import (
	"fmt"
	"strings"
	"time"

	"github.com/constructa/propostas/internal/format"
	"github.com/constructa/propostas/internal/numbering"
	"github.com/constructa/propostas/internal/platform/httpx"
	"github.com/constructa/propostas/internal/platform/mailer"
	"github.com/constructa/propostas/internal/view"
)

// Composer turns payloads into mailer messages using the embedded templates.
type Composer struct {
	engine  *view.Engine
	company string
	now     func() time.Time
}

func NewComposer(engine *view.Engine, company string) *Composer {
	return &Composer{engine: engine, company: company, now: time.Now}
}

type page[T any] struct {
	Company string
	SentAt  time.Time
	Email   T
}

func (c *Composer) Proposal(p ProposalEmail) (mailer.Message, error) {
	if err := httpx.Validate(p); err != nil {
		return mailer.Message{}, err
	}
	html, err := c.engine.Render("proposal_email.html", page[ProposalEmail]{Company: c.company, SentAt: c.now(), Email: p})
	if err != nil {
		return mailer.Message{}, err
	}
	msg := mailer.Message{
		To:      []string{p.To},
		ReplyTo: p.VendorEmail,
		Subject: fmt.Sprintf("Proposta comercial %s - %s", p.ProposalNumber, c.company),
		HTML:    html,
		Text:    proposalText(p),
	}
	if err := attach(&msg, p.Attachment, "proposta-"+numbering.Filename(p.ProposalNumber)+".pdf"); err != nil {
		return mailer.Message{}, err
	}
	return msg, nil
}

func (c *Composer) Quote(q QuoteEmail) (mailer.Message, error) {
	if err := httpx.Validate(q); err != nil {
		return mailer.Message{}, err
	}
	html, err := c.engine.Render("quote_email.html", page[QuoteEmail]{Company: c.company, SentAt: c.now(), Email: q})
	if err != nil {
		return mailer.Message{}, err
	}
	msg := mailer.Message{
		To:      []string{q.To},
		ReplyTo: q.VendorEmail,
		Subject: fmt.Sprintf("Orçamento %s - %s", q.QuoteNumber, c.company),
		HTML:    html,
		Text:    fmt.Sprintf("Olá, %s!\n\nSegue o orçamento %s no valor de %s.\n", q.ClientName, q.QuoteNumber, format.BRL(q.Total)),
	}
	if err := attach(&msg, q.Attachment, "orcamento-"+numbering.Filename(q.QuoteNumber)+".pdf"); err != nil {
		return mailer.Message{}, err
	}
	return msg, nil
}

func (c *Composer) Response(n ResponseNotice) (mailer.Message, error) {
	html, err := c.engine.Render("proposal_response.html", page[ResponseNotice]{Company: c.company, SentAt: c.now(), Email: n})
	if err != nil {
		return mailer.Message{}, err
	}
	verb := "recusada"
	if n.Accepted {
		verb = "aceita"
	}
	return mailer.Message{
		To:      []string{n.To},
		Subject: fmt.Sprintf("Proposta %s %s por %s", n.ProposalNumber, verb, n.ClientName),
		HTML:    html,
		Text: fmt.Sprintf("A proposta %s (orçamento %s) foi %s em %s.\n",
			n.ProposalNumber, n.QuoteNumber, verb, format.DateTime(n.RespondedAt)),
	}, nil
}

func attach(msg *mailer.Message, a Attachment, fallback string) error {
	if !a.HasAttachment() {
		return nil
	}
	data, err := a.decode()
	if err != nil {
		return err
	}
	name := strings.TrimSpace(a.PDFFilename)
	if name == "" {
		name = fallback
	}
	AttachPDF(msg, name, data)
	return nil
}

// AttachPDF adds a PDF attachment, forcing the .pdf extension.
func AttachPDF(msg *mailer.Message, name string, data []byte) {
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name += ".pdf"
	}
	msg.Attachments = append(msg.Attachments, mailer.Attachment{Filename: name, ContentType: "application/pdf", Data: data})
}

func proposalText(p ProposalEmail) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Olá, %s!\n\n", p.ClientName)
	fmt.Fprintf(&b, "Segue a proposta comercial %s no valor de %s", p.ProposalNumber, format.BRL(p.Total))
	if !p.ValidUntil.IsZero() {
		fmt.Fprintf(&b, ", válida até %s", format.LongDay(p.ValidUntil.Time))
	}
	b.WriteString(".\n")
	if p.AcceptURL != "" {
		fmt.Fprintf(&b, "\nPara aceitar ou recusar acesse: %s\n", p.AcceptURL)
	}
	return b.String()
}
