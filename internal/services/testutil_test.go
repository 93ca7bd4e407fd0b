package services

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/eventsphere/backend/internal/config"
	"github.com/eventsphere/backend/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") +
		"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Serialize writes; sqlite has no row-level locking
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                        "test",
		FrontendURL:                "http://localhost:3000",
		StripeCurrency:             "usd",
		StripeSuccessURL:           "http://localhost:3000/payment/success",
		StripeCancelURL:            "http://localhost:3000/payment/cancel",
		PendingBookingTTL:          30 * time.Minute,
		PendingPaymentPollInterval: 30 * time.Second,
		BcryptCost:                 4,
	}
}

// stubGateway is an in-memory PaymentProvider. Sessions start unpaid and are
// flipped with markPaid, mirroring how a checkout completes out of band.
type stubGateway struct {
	mu         sync.Mutex
	paid       map[string]bool
	sessions   int
	failCreate bool
}

func newStubGateway() *stubGateway {
	return &stubGateway{paid: make(map[string]bool)}
}

func (g *stubGateway) CreateCheckout(booking *models.Booking, event *models.Event, user *models.User) (*CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failCreate {
		return nil, fmt.Errorf("gateway unavailable")
	}
	g.sessions++
	id := fmt.Sprintf("cs_test_%d", g.sessions)
	return &CheckoutSession{ID: id, URL: "https://checkout.example.com/" + id}, nil
}

func (g *stubGateway) RetrieveSession(sessionID string) (*SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.paid[sessionID] {
		return &SessionStatus{Paid: true, PaymentIntentID: "pi_" + sessionID}, nil
	}
	return &SessionStatus{}, nil
}

func (g *stubGateway) GetProviderName() string { return "stub" }

func (g *stubGateway) markPaid(sessionID string) {
	g.mu.Lock()
	g.paid[sessionID] = true
	g.mu.Unlock()
}

// stubMailer counts ticket emails instead of sending them
type stubMailer struct {
	mu   sync.Mutex
	sent int
	fail bool
}

func (m *stubMailer) SendTicketEmail(to string, data map[string]interface{}, pdf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("smtp unavailable")
	}
	m.sent++
	return nil
}

func (m *stubMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type testStack struct {
	db       *gorm.DB
	cfg      *config.Config
	gateway  *stubGateway
	mailer   *stubMailer
	events   *EventService
	coupons  *CouponService
	tickets  *TicketService
	bookings *BookingService
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	db := newTestDB(t)
	cfg := testConfig()
	gateway := newStubGateway()
	mailer := &stubMailer{}

	events := NewEventService(db)
	coupons := NewCouponService(db)
	tickets := NewTicketService(db, NewPassService(cfg))
	tickets.AttachMailer(mailer)
	bookings := NewBookingService(db, cfg, events, coupons, tickets, gateway)

	return &testStack{
		db:       db,
		cfg:      cfg,
		gateway:  gateway,
		mailer:   mailer,
		events:   events,
		coupons:  coupons,
		tickets:  tickets,
		bookings: bookings,
	}
}

func createTestUser(t *testing.T, db *gorm.DB, isHost bool) *models.User {
	t.Helper()
	user := &models.User{
		Username: fmt.Sprintf("user_%s", uuid.New().String()[:8]),
		Email:    fmt.Sprintf("%s@example.com", uuid.New().String()[:8]),
		Password: "not-a-real-hash",
		Name:     "Test User",
		IsHost:   isHost,
		IsActive: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createTestEvent(t *testing.T, stack *testStack, hostID uuid.UUID, price float64, capacity int, startsIn time.Duration) *models.Event {
	t.Helper()
	event := &models.Event{
		HostID:   hostID,
		Title:    "Test Event",
		Category: "music",
		Location: "Test Hall",
		Price:    price,
		Capacity: capacity,
		StartsAt: time.Now().Add(startsIn),
		EndsAt:   time.Now().Add(startsIn + 3*time.Hour),
	}
	require.NoError(t, stack.events.CreateEvent(event))
	return event
}

func createTestCoupon(t *testing.T, stack *testStack, eventID, hostID uuid.UUID, mutate func(*models.Coupon)) *models.Coupon {
	t.Helper()
	coupon := &models.Coupon{
		EventID:       eventID,
		HostID:        hostID,
		Code:          "SAVE20",
		DiscountType:  models.DiscountTypePercentage,
		DiscountValue: 20,
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(24 * time.Hour),
		IsActive:      true,
	}
	if mutate != nil {
		mutate(coupon)
	}
	require.NoError(t, stack.coupons.CreateCoupon(coupon))
	return coupon
}
