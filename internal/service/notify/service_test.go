package notify

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"testing"
	"time"

	"atomovision-editorial/internal/domain"
	"atomovision-editorial/internal/mailer"
)

type stubMailer struct {
	sent []mailer.Message
	err  error
}

func (s *stubMailer) Send(_ context.Context, msg mailer.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func testPurchase() *domain.Purchase {
	return &domain.Purchase{
		ID:             "p1",
		Email:          "buyer@example.com",
		CustomerName:   "Buyer",
		DownloadToken:  "tok-123",
		TotalCents:     2298,
		Currency:       "EUR",
		Status:         domain.PurchaseCompleted,
		DownloadExpiry: time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC),
		Items: []domain.PurchaseItem{
			{BookID: "b1", Format: domain.FormatEbook, Quantity: 1, UnitPriceCents: 999},
			{BookID: "b2", Format: domain.FormatEbook, Quantity: 1, UnitPriceCents: 1299},
		},
	}
}

func testBooks() map[string]domain.Book {
	return map[string]domain.Book{
		"b1": {ID: "b1", Title: "Crónicas del Átomo"},
		"b2": {ID: "b2", Title: "El Jardín Invertido"},
	}
}

func TestSendConfirmationIncludesLinkPerItem(t *testing.T) {
	m := &stubMailer{}
	svc := New(m, "https://atomovision.test/", nil)

	if err := svc.SendPurchaseConfirmation(context.Background(), testPurchase(), testBooks()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(m.sent))
	}
	msg := m.sent[0]
	if msg.To != "buyer@example.com" {
		t.Fatalf("unexpected recipient %q", msg.To)
	}
	for _, want := range []string{
		"https://atomovision.test/api/download/tok-123?book=b1",
		"https://atomovision.test/api/download/tok-123?book=b2",
		"Crónicas del Átomo",
		"El Jardín Invertido",
		"22.98 EUR",
	} {
		if !strings.Contains(msg.HTMLContent, want) {
			t.Fatalf("html body missing %q", want)
		}
	}
	if !strings.Contains(msg.TextContent, "https://atomovision.test/api/download/tok-123?book=b1") {
		t.Fatalf("text body missing download link")
	}
}

func TestSendConfirmationUnknownBookFallsBackToID(t *testing.T) {
	m := &stubMailer{}
	svc := New(m, "https://atomovision.test", nil)

	if err := svc.SendPurchaseConfirmation(context.Background(), testPurchase(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(m.sent[0].HTMLContent, "b1") {
		t.Fatalf("expected book id as title fallback")
	}
}

func TestSendConfirmationFallbackKeepsLinks(t *testing.T) {
	m := &stubMailer{}
	svc := New(m, "https://atomovision.test", nil)
	// Force the primary template to fail at execute time.
	svc.tmpl = template.Must(template.New("broken").Parse(`{{.NoSuchField}}`))

	if err := svc.SendPurchaseConfirmation(context.Background(), testPurchase(), testBooks()); err != nil {
		t.Fatalf("fallback path must still send: %v", err)
	}
	msg := m.sent[0]
	for _, want := range []string{
		"https://atomovision.test/api/download/tok-123?book=b1",
		"https://atomovision.test/api/download/tok-123?book=b2",
	} {
		if !strings.Contains(msg.HTMLContent, want) {
			t.Fatalf("fallback body missing %q", want)
		}
	}
}

func TestSendConfirmationMailerFailure(t *testing.T) {
	m := &stubMailer{err: errors.New("brevo 500")}
	svc := New(m, "https://atomovision.test", nil)

	err := svc.SendPurchaseConfirmation(context.Background(), testPurchase(), testBooks())
	if !errors.Is(err, domain.ErrNotification) {
		t.Fatalf("expected notification error, got %v", err)
	}
}

func TestDownloadURLEscapesToken(t *testing.T) {
	svc := New(&stubMailer{}, "https://atomovision.test", nil)
	got := svc.downloadURL("a b/c", "b 1")
	if got != "https://atomovision.test/api/download/a%20b%2Fc?book=b+1" {
		t.Fatalf("unexpected url %q", got)
	}
}
