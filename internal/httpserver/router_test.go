package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"atomovision-editorial/internal/domain"
	"atomovision-editorial/internal/payment"
	downloadsvc "atomovision-editorial/internal/service/download"
	purchasesvc "atomovision-editorial/internal/service/purchase"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCatalog struct {
	books    []domain.Book
	book     *domain.Book
	byIDs    map[string]domain.Book
	byIDsErr error
	genres   []domain.Genre
	bookErr  error
	created  *domain.Book
}

func (s *stubCatalog) ListBooks(_ context.Context, _ string) ([]domain.Book, error) {
	return s.books, nil
}

func (s *stubCatalog) GetBook(_ context.Context, _ string) (*domain.Book, error) {
	return s.book, s.bookErr
}

func (s *stubCatalog) BooksByIDs(_ context.Context, _ []string) (map[string]domain.Book, error) {
	return s.byIDs, s.byIDsErr
}

func (s *stubCatalog) ListGenres(_ context.Context) ([]domain.Genre, error) {
	return s.genres, nil
}

func (s *stubCatalog) CreateGenre(_ context.Context, code, name string) (*domain.Genre, error) {
	return &domain.Genre{ID: "g1", Code: code, Name: name}, nil
}

func (s *stubCatalog) CreateBook(_ context.Context, book domain.Book) (*domain.Book, error) {
	if s.bookErr != nil {
		return nil, s.bookErr
	}
	s.created = &book
	return &book, nil
}

func (s *stubCatalog) UpdateBook(_ context.Context, book domain.Book) (*domain.Book, error) {
	return &book, nil
}

func (s *stubCatalog) DeleteBook(_ context.Context, _ string) error {
	return nil
}

type stubPurchases struct {
	pending        *domain.Purchase
	pendingErr     error
	attachErr      error
	attachedSess   string
	completed      *domain.Purchase
	completedFirst bool
	completedErr   error
	failedIDs      []string
	refundIntents  []string
	refundErr      error
	purchase       *domain.Purchase
	getErr         error
	list           []domain.Purchase
}

func (s *stubPurchases) CreatePending(_ context.Context, _, _ string, _ []purchasesvc.ItemInput) (*domain.Purchase, error) {
	return s.pending, s.pendingErr
}

func (s *stubPurchases) AttachSession(_ context.Context, _, sessionID string) error {
	s.attachedSess = sessionID
	return s.attachErr
}

func (s *stubPurchases) MarkCompleted(_ context.Context, _, _, _ string) (*domain.Purchase, bool, error) {
	return s.completed, s.completedFirst, s.completedErr
}

func (s *stubPurchases) MarkFailed(_ context.Context, id, _ string) error {
	s.failedIDs = append(s.failedIDs, id)
	return nil
}

func (s *stubPurchases) MarkRefundedByIntent(_ context.Context, intentID string) error {
	s.refundIntents = append(s.refundIntents, intentID)
	return s.refundErr
}

func (s *stubPurchases) Get(_ context.Context, _ string) (*domain.Purchase, error) {
	return s.purchase, s.getErr
}

func (s *stubPurchases) List(_ context.Context, _ domain.PurchaseStatus) ([]domain.Purchase, error) {
	return s.list, nil
}

type stubDownloads struct {
	url string
	err error
	req downloadsvc.Request
}

func (s *stubDownloads) Authorize(_ context.Context, req downloadsvc.Request) (string, error) {
	s.req = req
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

type stubNotifier struct {
	sent []string
	err  error
}

func (s *stubNotifier) SendPurchaseConfirmation(_ context.Context, p *domain.Purchase, _ map[string]domain.Book) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, p.ID)
	return nil
}

type stubGateway struct {
	session    *payment.Session
	sessionErr error
	event      *payment.Event
	eventErr   error
}

func (s *stubGateway) CreateCheckoutSession(_ context.Context, _ *domain.Purchase, _ map[string]string) (*payment.Session, error) {
	return s.session, s.sessionErr
}

func (s *stubGateway) VerifyEvent(_ []byte, _ string) (*payment.Event, error) {
	return s.event, s.eventErr
}

type stubLimiter struct {
	allow bool
	err   error
}

func (s *stubLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return s.allow, s.err
}

func testRouter(deps Deps) *gin.Engine {
	logger := log.New(io.Discard, "", 0)
	return buildRouter(logger, nil, deps)
}

func doJSON(router *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func completedPurchase() *domain.Purchase {
	return &domain.Purchase{
		ID:     "p1",
		Email:  "buyer@example.com",
		Status: domain.PurchaseCompleted,
		Items:  []domain.PurchaseItem{{BookID: "b1", Format: domain.FormatEbook, Quantity: 1}},
	}
}

func TestCheckoutCreatesSession(t *testing.T) {
	purchases := &stubPurchases{pending: &domain.Purchase{
		ID:    "p1",
		Items: []domain.PurchaseItem{{BookID: "b1", Format: domain.FormatEbook, Quantity: 1}},
	}}
	gateway := &stubGateway{session: &payment.Session{ID: "cs_1", URL: "https://pay.test/cs_1"}}
	router := testRouter(Deps{
		Catalog:   &stubCatalog{byIDs: map[string]domain.Book{"b1": {ID: "b1", Title: "Book"}}},
		Purchases: purchases,
		Gateway:   gateway,
	})

	w := doJSON(router, http.MethodPost, "/api/checkout",
		`{"email":"buyer@example.com","items":[{"bookId":"b1","format":"ebook","quantity":1}]}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool             `json:"success"`
		Data    checkoutResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.SessionID != "cs_1" || resp.Data.URL != "https://pay.test/cs_1" {
		t.Fatalf("unexpected session payload %+v", resp.Data)
	}
	if purchases.attachedSess != "cs_1" {
		t.Fatalf("expected session attached, got %q", purchases.attachedSess)
	}
}

func TestCheckoutInvalidBody(t *testing.T) {
	router := testRouter(Deps{Purchases: &stubPurchases{}, Catalog: &stubCatalog{}, Gateway: &stubGateway{}})

	w := doJSON(router, http.MethodPost, "/api/checkout", `{"email":`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCheckoutValidationError(t *testing.T) {
	purchases := &stubPurchases{pendingErr: domain.ErrValidation}
	router := testRouter(Deps{Purchases: purchases, Catalog: &stubCatalog{}, Gateway: &stubGateway{}})

	w := doJSON(router, http.MethodPost, "/api/checkout", `{"email":"","items":[]}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCheckoutGatewayDown(t *testing.T) {
	purchases := &stubPurchases{pending: completedPurchase()}
	gateway := &stubGateway{sessionErr: domain.ErrGateway}
	router := testRouter(Deps{Purchases: purchases, Catalog: &stubCatalog{}, Gateway: gateway})

	w := doJSON(router, http.MethodPost, "/api/checkout",
		`{"email":"a@b.c","items":[{"bookId":"b1","format":"ebook","quantity":1}]}`, nil)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestDownloadRedirects(t *testing.T) {
	downloads := &stubDownloads{url: "https://files.test/b1.epub"}
	router := testRouter(Deps{Downloads: downloads})

	w := doJSON(router, http.MethodGet, "/api/download/tok-1?book=b1", "", nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	if got := w.Header().Get("Location"); got != "https://files.test/b1.epub" {
		t.Fatalf("unexpected location %q", got)
	}
	if downloads.req.Token != "tok-1" || downloads.req.BookID != "b1" {
		t.Fatalf("request fields not carried through: %+v", downloads.req)
	}
}

func TestDownloadErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown token", domain.ErrNotFound, http.StatusNotFound},
		{"not completed", domain.ErrForbidden, http.StatusForbidden},
		{"expired", domain.ErrExpired, http.StatusGone},
		{"limit", domain.ErrLimitExceeded, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := testRouter(Deps{Downloads: &stubDownloads{err: tc.err}})
			w := doJSON(router, http.MethodGet, "/api/download/tok?book=b1", "", nil)
			if w.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, w.Code)
			}
		})
	}
}

func TestWebhookInvalidSignature(t *testing.T) {
	router := testRouter(Deps{Gateway: &stubGateway{eventErr: errors.New("bad sig")}})

	w := doJSON(router, http.MethodPost, "/api/stripe/webhook", `{}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWebhookCompletedSendsOneEmail(t *testing.T) {
	purchases := &stubPurchases{completed: completedPurchase(), completedFirst: true}
	notifier := &stubNotifier{}
	router := testRouter(Deps{
		Gateway: &stubGateway{event: &payment.Event{
			Kind: payment.EventCompleted, PurchaseID: "p1", PaymentIntentID: "pi_1",
		}},
		Purchases: purchases,
		Catalog:   &stubCatalog{byIDs: map[string]domain.Book{"b1": {ID: "b1", Title: "Book"}}},
		Notifier:  notifier,
	})

	w := doJSON(router, http.MethodPost, "/api/stripe/webhook", `{}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(notifier.sent) != 1 || notifier.sent[0] != "p1" {
		t.Fatalf("expected one confirmation for p1, got %v", notifier.sent)
	}
}

func TestWebhookRepeatCompletedSkipsEmail(t *testing.T) {
	purchases := &stubPurchases{completed: completedPurchase(), completedFirst: false}
	notifier := &stubNotifier{}
	router := testRouter(Deps{
		Gateway:   &stubGateway{event: &payment.Event{Kind: payment.EventCompleted, PurchaseID: "p1"}},
		Purchases: purchases,
		Catalog:   &stubCatalog{},
		Notifier:  notifier,
	})

	w := doJSON(router, http.MethodPost, "/api/stripe/webhook", `{}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("repeat completion must not resend, got %v", notifier.sent)
	}
}

func TestWebhookEmailFailureStillAcks(t *testing.T) {
	purchases := &stubPurchases{completed: completedPurchase(), completedFirst: true}
	notifier := &stubNotifier{err: domain.ErrNotification}
	router := testRouter(Deps{
		Gateway:   &stubGateway{event: &payment.Event{Kind: payment.EventCompleted, PurchaseID: "p1"}},
		Purchases: purchases,
		Catalog:   &stubCatalog{},
		Notifier:  notifier,
	})

	w := doJSON(router, http.MethodPost, "/api/stripe/webhook", `{}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("notify failure must not fail the webhook, got %d", w.Code)
	}
}

func TestWebhookRefunded(t *testing.T) {
	purchases := &stubPurchases{}
	router := testRouter(Deps{
		Gateway:   &stubGateway{event: &payment.Event{Kind: payment.EventRefunded, PaymentIntentID: "pi_9"}},
		Purchases: purchases,
	})

	w := doJSON(router, http.MethodPost, "/api/stripe/webhook", `{}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(purchases.refundIntents) != 1 || purchases.refundIntents[0] != "pi_9" {
		t.Fatalf("expected refund by pi_9, got %v", purchases.refundIntents)
	}
}

func TestWebhookIgnoredEventAcks(t *testing.T) {
	router := testRouter(Deps{Gateway: &stubGateway{event: &payment.Event{Kind: payment.EventIgnored}}})

	w := doJSON(router, http.MethodPost, "/api/stripe/webhook", `{}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAdminAuth(t *testing.T) {
	router := testRouter(Deps{Purchases: &stubPurchases{}, AdminToken: "secret"})

	w := doJSON(router, http.MethodGet, "/api/admin/purchases", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = doJSON(router, http.MethodGet, "/api/admin/purchases", "", map[string]string{"X-Admin-Token": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}

	w = doJSON(router, http.MethodGet, "/api/admin/purchases", "", map[string]string{"X-Admin-Token": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	router := testRouter(Deps{Purchases: &stubPurchases{}})

	w := doJSON(router, http.MethodGet, "/api/admin/purchases", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAdminPurchaseListHidesToken(t *testing.T) {
	p := *completedPurchase()
	p.DownloadToken = "tok-secret"
	p.DownloadExpiry = time.Now().Add(time.Hour)
	router := testRouter(Deps{Purchases: &stubPurchases{list: []domain.Purchase{p}}, AdminToken: "secret"})

	w := doJSON(router, http.MethodGet, "/api/admin/purchases", "", map[string]string{"X-Admin-Token": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("tok-secret")) {
		t.Fatalf("download token must never serialize: %s", w.Body.String())
	}
}

func TestAdminResendEmail(t *testing.T) {
	notifier := &stubNotifier{}
	router := testRouter(Deps{
		Purchases:  &stubPurchases{purchase: completedPurchase()},
		Catalog:    &stubCatalog{},
		Notifier:   notifier,
		AdminToken: "secret",
	})

	w := doJSON(router, http.MethodPost, "/api/admin/purchases/p1/resend-email", "", map[string]string{"X-Admin-Token": "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected one resend, got %d", len(notifier.sent))
	}
}

func TestAdminResendRequiresCompleted(t *testing.T) {
	p := completedPurchase()
	p.Status = domain.PurchasePending
	router := testRouter(Deps{
		Purchases:  &stubPurchases{purchase: p},
		Catalog:    &stubCatalog{},
		Notifier:   &stubNotifier{},
		AdminToken: "secret",
	})

	w := doJSON(router, http.MethodPost, "/api/admin/purchases/p1/resend-email", "", map[string]string{"X-Admin-Token": "secret"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestRateLimitBlocks(t *testing.T) {
	router := testRouter(Deps{Downloads: &stubDownloads{url: "https://x"}, Limiter: &stubLimiter{allow: false}})

	w := doJSON(router, http.MethodGet, "/api/download/tok?book=b1", "", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	router := testRouter(Deps{
		Downloads: &stubDownloads{url: "https://files.test/b.epub"},
		Limiter:   &stubLimiter{err: errors.New("redis down")},
	})

	w := doJSON(router, http.MethodGet, "/api/download/tok?book=b1", "", nil)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("limiter outage must fail open, got %d", w.Code)
	}
}

func TestListBooksEndpoint(t *testing.T) {
	router := testRouter(Deps{Catalog: &stubCatalog{books: []domain.Book{{ID: "b1", Title: "Book"}}}})

	w := doJSON(router, http.MethodGet, "/api/books", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte(`"Book"`)) {
		t.Fatalf("expected book in response: %s", w.Body.String())
	}
}

func TestGetBookNotFound(t *testing.T) {
	router := testRouter(Deps{Catalog: &stubCatalog{bookErr: domain.ErrNotFound}})

	w := doJSON(router, http.MethodGet, "/api/books/nope", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := testRouter(Deps{})

	w := doJSON(router, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
