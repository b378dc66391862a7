package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/url"
	"strings"

	"atomovision-editorial/internal/domain"
	"atomovision-editorial/internal/mailer"
)

// Mailer sends one transactional email.
type Mailer interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Service renders and sends the post-purchase confirmation email. It holds no
// idempotency state: the ledger's first-completion flag decides whether a
// send happens, and the admin resend endpoint bypasses that on purpose.
type Service struct {
	mailer  Mailer
	baseURL string
	tmpl    *template.Template
	logger  *log.Logger
}

func New(m Mailer, baseURL string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{
		mailer:  m,
		baseURL: strings.TrimRight(baseURL, "/"),
		tmpl:    template.Must(template.New("confirmation").Parse(confirmationTemplate)),
		logger:  logger,
	}
}

type emailLine struct {
	Title    string
	Format   string
	Quantity int
	URL      string
}

type emailData struct {
	CustomerName string
	Lines        []emailLine
	Total        string
	Currency     string
	ExpiryDays   int
	MaxDownloads int
}

// SendPurchaseConfirmation sends one email with a download link per purchased
// item. If the primary template fails to execute, a minimal rendering with
// the same links and total is sent instead; the customer never receives a
// confirmation without their links.
func (s *Service) SendPurchaseConfirmation(ctx context.Context, p *domain.Purchase, books map[string]domain.Book) error {
	data := s.buildData(p, books)

	html, err := s.renderPrimary(data)
	if err != nil {
		s.logger.Printf("notify: primary template failed for purchase %s, using fallback: %v", p.ID, err)
		html = renderFallback(data)
	}

	msg := mailer.Message{
		To:          p.Email,
		ToName:      p.CustomerName,
		Subject:     "Tu compra en AtomoVision",
		HTMLContent: html,
		TextContent: renderText(data),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotification, err)
	}
	return nil
}

func (s *Service) buildData(p *domain.Purchase, books map[string]domain.Book) emailData {
	lines := make([]emailLine, 0, len(p.Items))
	for _, it := range p.Items {
		title := it.BookID
		if b, ok := books[it.BookID]; ok {
			title = b.Title
		}
		lines = append(lines, emailLine{
			Title:    title,
			Format:   string(it.Format),
			Quantity: it.Quantity,
			URL:      s.downloadURL(p.DownloadToken, it.BookID),
		})
	}
	return emailData{
		CustomerName: p.CustomerName,
		Lines:        lines,
		Total:        fmt.Sprintf("%d.%02d", p.TotalCents/100, p.TotalCents%100),
		Currency:     p.Currency,
		ExpiryDays:   int(domain.DownloadWindow.Hours() / 24),
		MaxDownloads: domain.MaxDownloads,
	}
}

func (s *Service) downloadURL(token, bookID string) string {
	return fmt.Sprintf("%s/api/download/%s?book=%s", s.baseURL, url.PathEscape(token), url.QueryEscape(bookID))
}

// renderPrimary executes into a buffer so a template failure is caught before
// anything is sent.
func (s *Service) renderPrimary(data emailData) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderFallback builds a minimal document by concatenation only, so it
// cannot fail the way a template can.
func renderFallback(data emailData) string {
	var b strings.Builder
	b.WriteString("<html><body><h1>Gracias por tu compra</h1><ul>")
	for _, line := range data.Lines {
		b.WriteString(`<li><a href="` + template.HTMLEscapeString(line.URL) + `">` +
			template.HTMLEscapeString(line.Title) + `</a></li>`)
	}
	b.WriteString("</ul><p>Total: " + template.HTMLEscapeString(data.Total+" "+data.Currency) + "</p></body></html>")
	return b.String()
}

func renderText(data emailData) string {
	var b strings.Builder
	b.WriteString("Gracias por tu compra.\n\n")
	for _, line := range data.Lines {
		fmt.Fprintf(&b, "%s (%s): %s\n", line.Title, line.Format, line.URL)
	}
	fmt.Fprintf(&b, "\nTotal: %s %s\n", data.Total, data.Currency)
	fmt.Fprintf(&b, "Los enlaces caducan en %d dias y admiten %d descargas en total.\n", data.ExpiryDays, data.MaxDownloads)
	return b.String()
}

const confirmationTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Tu compra</title></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background-color: #f8f9fa; padding: 30px; border-radius: 10px;">
		<h1 style="color: #333;">Gracias por tu compra{{if .CustomerName}}, {{.CustomerName}}{{end}}</h1>
		<p style="color: #666;">Tus libros están listos para descargar:</p>
		<ul style="list-style: none; padding: 0;">
		{{range .Lines}}
			<li style="margin: 12px 0;">
				<a href="{{.URL}}" style="background-color: #007bff; color: white; padding: 10px 16px; border-radius: 6px; text-decoration: none;">Descargar {{.Title}}</a>
				<span style="color: #999; font-size: 13px;">({{.Format}} x{{.Quantity}})</span>
			</li>
		{{end}}
		</ul>
		<p style="color: #333; font-weight: bold;">Total: {{.Total}} {{.Currency}}</p>
		<p style="color: #999; font-size: 13px;">Los enlaces caducan en {{.ExpiryDays}} días y admiten {{.MaxDownloads}} descargas en total. No los compartas.</p>
	</div>
</body>
</html>`
