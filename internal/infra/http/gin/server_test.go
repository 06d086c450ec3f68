package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentspace/internal/app/commands"
	"rentspace/internal/app/dto"
	bookingapp "rentspace/internal/app/handlers/booking"
	refundsapp "rentspace/internal/app/handlers/refunds"
	handlersupport "rentspace/internal/app/handlers/support"
	walletapp "rentspace/internal/app/handlers/wallet"
	"rentspace/internal/app/middleware"
	"rentspace/internal/app/policies"
	"rentspace/internal/app/queries"
	domainbooking "rentspace/internal/domain/booking"
	"rentspace/internal/domain/cancellation"
	"rentspace/internal/domain/fees"
	domainlistings "rentspace/internal/domain/listings"
	"rentspace/internal/domain/shared/money"
	"rentspace/internal/infra/config"
	"rentspace/internal/infra/obs"
	"rentspace/internal/infra/payments"
	"rentspace/internal/infra/storage/memory"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testApp struct {
	router   *gin.Engine
	payments *payments.Sandbox
	outbox   *memory.Outbox
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	listingsRepo := memory.NewListingRepository()
	outboxStore := memory.NewOutbox()
	factory := memory.Factory{
		ListingsRepo: listingsRepo,
		BookingRepo:  memory.NewBookingRepository(),
		WalletRepo:   memory.NewWalletRepository(),
		OutboxStore:  outboxStore,
	}
	seedListing(t, listingsRepo, "lst-qc", "QC")
	seedListing(t, listingsRepo, "lst-noprov", "")

	sandbox := payments.NewSandbox(false)
	clock := func() time.Time { return testNow }
	engine := fees.Default()

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.RequestBookingCommand, *bookingapp.RequestBookingResult](commandBus, bookingapp.RequestBookingCommand{}.Key(),
		&bookingapp.RequestBookingHandler{UoWFactory: factory, Now: clock})
	commands.RegisterHandler[bookingapp.CreatePaymentIntentCommand, *bookingapp.PaymentIntentResult](commandBus, bookingapp.CreatePaymentIntentCommand{}.Key(),
		&bookingapp.CreatePaymentIntentHandler{UoWFactory: factory, Fees: engine, Payments: sandbox, Now: clock})
	commands.RegisterHandler[bookingapp.ConfirmPaymentCommand, *bookingapp.ConfirmPaymentResult](commandBus, bookingapp.ConfirmPaymentCommand{}.Key(),
		&bookingapp.ConfirmPaymentHandler{UoWFactory: factory, Payments: sandbox, Now: clock})
	commands.RegisterHandler[refundsapp.RequestRefundCommand, *refundsapp.RefundOutcome](commandBus, refundsapp.RequestRefundCommand{}.Key(),
		&refundsapp.RequestRefundHandler{
			UoWFactory: factory,
			Policy:     cancellation.Default(),
			Payments:   sandbox,
			Retry:      refundsapp.RetryPolicy{MaxAttempts: 2},
			Now:        clock,
		})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[bookingapp.QuoteFeesQuery, *bookingapp.QuoteResult](queryBus, bookingapp.QuoteFeesQuery{}.Key(),
		&bookingapp.QuoteFeesHandler{UoWFactory: factory, Fees: engine})
	queries.RegisterHandler[bookingapp.GetBookingQuery, dto.BookingDTO](queryBus, bookingapp.GetBookingQuery{}.Key(),
		&bookingapp.GetBookingHandler{UoWFactory: factory})
	queries.RegisterHandler[bookingapp.ListBookingsQuery, bookingapp.BookingCollection](queryBus, bookingapp.ListBookingsQuery{}.Key(),
		&bookingapp.ListBookingsHandler{UoWFactory: factory})
	queries.RegisterHandler[walletapp.HostWalletQuery, dto.WalletDTO](queryBus, walletapp.HostWalletQuery{}.Key(),
		&walletapp.HostWalletHandler{UoWFactory: factory})

	cmds := middleware.ChainCommands(commandBus,
		middleware.Validation(middleware.SelfValidator{}),
		middleware.Idempotency(memory.NewIdempotencyStore(), middleware.IdempotencyOptions{}),
		middleware.OutboxFlush(outboxStore, nil),
		middleware.Transaction(factory, nil),
	)
	qs := middleware.ChainQueries(queryBus, middleware.QueryValidation(middleware.SelfValidator{}))

	router := NewRouter(config.Config{}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Booking: BookingHandler{Commands: cmds, Queries: qs},
		Refund:  RefundHandler{Commands: cmds},
		Wallet:  WalletHandler{Queries: qs},
		Sandbox: SandboxHandler{Payments: sandbox},
	})
	return testApp{router: router, payments: sandbox, outbox: outboxStore}
}

func seedListing(t *testing.T, repo *memory.ListingRepository, id, province string) {
	t.Helper()
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:             domainlistings.ListingID(id),
		Host:           "host-1",
		Title:          "Loft " + id,
		Address:        domainlistings.Address{Line1: "1 rue Sainte-Catherine", City: "Montreal", Province: province, Country: "CA"},
		Currency:       money.CAD,
		DailyRateCents: 10000,
		Now:            testNow,
	})
	require.NoError(t, err)
	require.NoError(t, listing.Activate(testNow))
	require.NoError(t, repo.Save(context.Background(), listing))
}

func (a testApp) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func stayWindow() (time.Time, time.Time) {
	start := testNow.Add(10 * 24 * time.Hour)
	return start, start.Add(48 * time.Hour)
}

func TestBookingRefundFlow(t *testing.T) {
	app := newTestApp(t)
	start, end := stayWindow()

	quotePath := fmt.Sprintf("/api/v1/listings/lst-qc/quote?start=%s&end=%s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	rec := app.do(t, http.MethodGet, quotePath, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decode[bookingapp.QuoteResult](t, rec)
	assert.Equal(t, "QC", quote.Region)
	assert.Equal(t, "long_stay", quote.Track)
	assert.Equal(t, int64(20000), quote.Fees.BasePriceCents)
	assert.Equal(t, int64(250), quote.Fees.GuestFeeCents)
	assert.Equal(t, int64(37), quote.Fees.TaxOnGuestFeeCents)
	assert.Equal(t, int64(20287), quote.Fees.ChargeCents)
	assert.Equal(t, int64(18000), quote.Fees.HostPayoutCents)

	rec = app.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"listing_id": "lst-qc",
		"guest_id":   "guest-1",
		"start":      start,
		"end":        end,
	}, map[string]string{idempotencyHeader: "req-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[bookingapp.RequestBookingResult](t, rec)
	assert.Equal(t, "PENDING", created.Status)

	rec = app.do(t, http.MethodPost, "/api/v1/bookings/"+created.BookingID+"/payment-intent", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	intent := decode[bookingapp.PaymentIntentResult](t, rec)
	assert.Equal(t, int64(20287), intent.Fees.ChargeCents)

	rec = app.do(t, http.MethodPost, "/api/v1/bookings/"+created.BookingID+"/payment-intent", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, intent.PaymentIntentID, decode[bookingapp.PaymentIntentResult](t, rec).PaymentIntentID)

	rec = app.do(t, http.MethodPost, "/api/v1/bookings/"+created.BookingID+"/confirm", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/sandbox/payments/"+intent.PaymentIntentID+"/capture", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.do(t, http.MethodPost, "/api/v1/bookings/"+created.BookingID+"/confirm", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decode[bookingapp.ConfirmPaymentResult](t, rec)
	assert.Equal(t, "CONFIRMED", confirmed.Status)
	assert.Equal(t, int64(18000), confirmed.HostCreditCents)

	rec = app.do(t, http.MethodPost, "/api/v1/bookings/"+created.BookingID+"/refund",
		map[string]string{"role": "guest", "actor_id": "guest-1"},
		map[string]string{"Accept-Language": "fr-CA,fr;q=0.9"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	outcome := decode[refundsapp.RefundOutcome](t, rec)
	assert.True(t, outcome.Allowed)
	assert.Equal(t, cancellation.ReasonFullRefundEarly, outcome.ReasonCode)
	assert.Equal(t, int64(20000), outcome.RefundAmountCents)
	assert.Equal(t, int64(18000), outcome.HostDebitCents)
	assert.InDelta(t, 1.0, outcome.RefundRatio, 1e-9)
	assert.Equal(t, "CANCELLED", outcome.BookingStatus)
	assert.Equal(t, cancellation.DefaultMessages().Render("fr", cancellation.ReasonFullRefundEarly), outcome.Message)

	rec = app.do(t, http.MethodPost, "/api/v1/bookings/"+created.BookingID+"/refund", map[string]string{"role": "guest"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[refundsapp.RefundOutcome](t, rec)
	assert.False(t, again.Allowed)
	assert.Equal(t, refundsapp.StatusDenied, again.Status)

	rec = app.do(t, http.MethodGet, "/api/v1/hosts/host-1/wallet?currency=CAD", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	wallet := decode[dto.WalletDTO](t, rec)
	assert.Zero(t, wallet.BalanceCents)
	assert.Len(t, wallet.Entries, 2)

	rec = app.do(t, http.MethodGet, "/api/v1/bookings/"+created.BookingID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	booking := decode[dto.BookingDTO](t, rec)
	assert.Equal(t, int64(20000), booking.RefundedCents)
	assert.Equal(t, int64(20287), booking.CapturedCents)

	rec = app.do(t, http.MethodGet, "/api/v1/bookings?guest_id=guest-1&status=cancelled", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[bookingapp.BookingCollection](t, rec).Items, 1)

	assert.NotEmpty(t, app.outbox.Pending())
}

func TestCreateBookingReplaysIdempotencyKey(t *testing.T) {
	app := newTestApp(t)
	start, end := stayWindow()
	body := map[string]any{"listing_id": "lst-qc", "guest_id": "guest-1", "start": start, "end": end}
	headers := map[string]string{idempotencyHeader: "same-key"}

	first := app.do(t, http.MethodPost, "/api/v1/bookings", body, headers)
	second := app.do(t, http.MethodPost, "/api/v1/bookings", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t,
		decode[bookingapp.RequestBookingResult](t, first).BookingID,
		decode[bookingapp.RequestBookingResult](t, second).BookingID)
}

func TestRequestErrors(t *testing.T) {
	app := newTestApp(t)
	start, end := stayWindow()
	window := fmt.Sprintf("start=%s&end=%s", start.Format(time.RFC3339), end.Format(time.RFC3339))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
		code   string
	}{
		{name: "province required", method: http.MethodGet, path: "/api/v1/listings/lst-noprov/quote?" + window, want: http.StatusBadRequest, code: "validation_failed"},
		{name: "missing start", method: http.MethodGet, path: "/api/v1/listings/lst-qc/quote?end=" + end.Format(time.RFC3339), want: http.StatusBadRequest, code: "validation_failed"},
		{name: "unknown listing", method: http.MethodGet, path: "/api/v1/listings/missing/quote?" + window, want: http.StatusNotFound, code: "not_found"},
		{name: "unknown booking", method: http.MethodGet, path: "/api/v1/bookings/missing", want: http.StatusNotFound, code: "not_found"},
		{name: "start in past", method: http.MethodPost, path: "/api/v1/bookings", body: map[string]any{
			"listing_id": "lst-qc", "guest_id": "g", "start": testNow.Add(-time.Hour), "end": testNow.Add(time.Hour),
		}, want: http.StatusBadRequest, code: "validation_failed"},
		{name: "bad role", method: http.MethodPost, path: "/api/v1/bookings/any/refund", body: map[string]string{"role": "admin"}, want: http.StatusBadRequest, code: "validation_failed"},
		{name: "list needs one owner", method: http.MethodGet, path: "/api/v1/bookings", want: http.StatusBadRequest, code: "validation_failed"},
		{name: "wallet currency", method: http.MethodGet, path: "/api/v1/hosts/host-1/wallet?currency=JPY", want: http.StatusBadRequest, code: "validation_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, tt.method, tt.path, tt.body, nil)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[errorResponse](t, rec).Code)
		})
	}
}

func TestRefundByOutsiderIsForbidden(t *testing.T) {
	app := newTestApp(t)
	start, end := stayWindow()
	rec := app.do(t, http.MethodPost, "/api/v1/bookings", map[string]any{
		"listing_id": "lst-qc", "guest_id": "guest-1", "start": start, "end": end,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[bookingapp.RequestBookingResult](t, rec).BookingID

	rec = app.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/refund", map[string]string{"role": "guest", "actor_id": "someone-else"}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/refund", map[string]string{"role": "host", "actor_id": "host-1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	outcome := decode[refundsapp.RefundOutcome](t, rec)
	assert.False(t, outcome.Allowed)
	assert.Equal(t, cancellation.ReasonNoCapturedPayment, outcome.ReasonCode)
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/livez", nil, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/readyz", nil, nil).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: &handlersupport.ArgumentError{Field: "x", Reason: "bad"}, want: http.StatusBadRequest},
		{err: fees.ErrProvinceRequired, want: http.StatusBadRequest},
		{err: fmt.Errorf("wrap: %w", cancellation.ErrValidation), want: http.StatusBadRequest},
		{err: refundsapp.ErrNotParticipant, want: http.StatusForbidden},
		{err: domainbooking.ErrBookingNotFound, want: http.StatusNotFound},
		{err: domainbooking.ErrConcurrentUpdate, want: http.StatusConflict},
		{err: domainbooking.ErrQuoteLocked, want: http.StatusConflict},
		{err: &fees.ConfigurationError{Currency: money.CAD, Region: fees.RegionQuebec}, want: http.StatusInternalServerError},
		{err: &policies.ProviderError{Provider: "sandbox", Code: "rate_limit", Retryable: true}, want: http.StatusBadGateway},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(tt.err)
		assert.Equal(t, tt.want, got, tt.err.Error())
	}
}

func TestPrimaryLanguage(t *testing.T) {
	assert.Equal(t, "fr", primaryLanguage("fr-CA,fr;q=0.9,en;q=0.8"))
	assert.Equal(t, "en", primaryLanguage("en"))
	assert.Equal(t, "", primaryLanguage(""))
}
