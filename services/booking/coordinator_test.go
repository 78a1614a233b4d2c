package booking

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	appointmentRepo "horizon/database/repository/appointment"
	"horizon/models"
	"horizon/services/notification"

	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

const testWebhookSecret = "whsec_test_secret"

// --- fakes ---

type fakeRepo struct {
	mu      sync.Mutex
	appts   map[string]*models.Appointment
	bookErr error
	linkErr error
}

func newFakeRepo(appts ...*models.Appointment) *fakeRepo {
	m := make(map[string]*models.Appointment, len(appts))
	for _, a := range appts {
		m[a.ID] = a
	}
	return &fakeRepo{appts: m}
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	appt, ok := f.appts[id]
	if !ok {
		return nil, appointmentRepo.ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (f *fakeRepo) AvailableDates(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeRepo) AvailableSlots(ctx context.Context, date string) ([]models.Appointment, error) {
	return nil, nil
}

func (f *fakeRepo) Book(ctx context.Context, id, name, email string, duration time.Duration) (*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	appt, ok := f.appts[id]
	if !ok || appt.IsBooked {
		return nil, appointmentRepo.ErrNotEligible
	}
	appt.Name = name
	appt.Email = email
	appt.IsBooked = true
	appt.EndTime = appt.StartTime.Add(duration)
	appt.UpdatedAt = time.Now()
	cp := *appt
	return &cp, nil
}

func (f *fakeRepo) SetMeetingLink(ctx context.Context, id, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.linkErr != nil {
		return f.linkErr
	}
	appt, ok := f.appts[id]
	if !ok {
		return appointmentRepo.ErrNotFound
	}
	appt.MeetLink = link
	return nil
}

func (f *fakeRepo) get(id string) models.Appointment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.appts[id]
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*stripe.CheckoutSession
	byIntent map[string]*stripe.CheckoutSession
	getErr   error
	created  []*stripe.CheckoutSessionParams
}

func (f *fakeSessions) CreateSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, params)
	return &stripe.CheckoutSession{
		ID:          "cs_new",
		URL:         "https://checkout.stripe.test/cs_new",
		AmountTotal: 5000,
		Currency:    stripe.CurrencyUSD,
	}, nil
}

func (f *fakeSessions) GetSession(id string) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	cs, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such session: %s", id)
	}
	return cs, nil
}

func (f *fakeSessions) SessionForPaymentIntent(paymentIntentID string) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.byIntent[paymentIntentID], nil
}

type fakeCalendar struct {
	mu    sync.Mutex
	calls int
	err   error
	link  string
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, summary, description string, start, end time.Time) (*notification.EventResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &notification.EventResult{Link: f.link}, nil
}

func (f *fakeCalendar) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendMail(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return f.err
}

func (f *fakeMailer) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// --- helpers ---

func newTestService(repo *fakeRepo, sessions *fakeSessions, cal *fakeCalendar, mail *fakeMailer) *DefaultBookingService {
	return &DefaultBookingService{
		Repo:           repo,
		Sessions:       sessions,
		Calendar:       cal,
		Mailer:         mail,
		Logger:         zap.NewNop(),
		WebhookSecret:  testWebhookSecret,
		OperatorEmail:  "operator@example.com",
		FrontendURL:    "https://booking.example.com",
		CheckoutAmount: 5000,
		SlotDuration:   3 * time.Hour,
	}
}

func signPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func signedEvent(eventID, eventType, objectJSON string) (payload []byte, sigHeader string) {
	// ConstructEvent refuses events whose api_version does not match the
	// client library's pinned version.
	payload = []byte(fmt.Sprintf(`{"id":%q,"type":%q,"api_version":%q,"data":{"object":%s}}`,
		eventID, eventType, stripe.APIVersion, objectJSON))
	return payload, signPayload(payload, testWebhookSecret, time.Now())
}

func paidSession(id, slotID, name, email string) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            id,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:      map[string]string{"slotId": slotID, "name": name, "email": email},
	}
}

func freeSlot(id string, start time.Time) *models.Appointment {
	return &models.Appointment{ID: id, StartTime: start, CreatedAt: time.Now()}
}

// --- tests ---

func TestHandleWebhookEventBooksSlot(t *testing.T) {
	repo := newFakeRepo(freeSlot("S1", time.Now().Add(48*time.Hour)))
	sessions := &fakeSessions{sessions: map[string]*stripe.CheckoutSession{
		"cs_1": paidSession("cs_1", "S1", "Ada", "ada@example.com"),
	}}
	cal := &fakeCalendar{link: "https://meet.example.com/abc"}
	mail := &fakeMailer{}
	svc := newTestService(repo, sessions, cal, mail)

	payload, sig := signedEvent("evt_1", "checkout.session.completed", `{"id":"cs_1"}`)
	outcome, err := svc.HandleWebhookEvent(context.Background(), payload, sig)
	if err != nil {
		t.Fatalf("HandleWebhookEvent() error = %v", err)
	}
	if outcome != OutcomeBooked {
		t.Fatalf("HandleWebhookEvent() outcome = %v, want %v", outcome, OutcomeBooked)
	}

	slot := repo.get("S1")
	if !slot.IsBooked {
		t.Error("slot is not booked after successful event")
	}
	if slot.Name != "Ada" || slot.Email != "ada@example.com" {
		t.Errorf("holder fields = %q/%q, want Ada/ada@example.com", slot.Name, slot.Email)
	}
	if want := slot.StartTime.Add(3 * time.Hour); !slot.EndTime.Equal(want) {
		t.Errorf("end time = %v, want %v", slot.EndTime, want)
	}
	if slot.MeetLink != "https://meet.example.com/abc" {
		t.Errorf("meet link = %q, want calendar link", slot.MeetLink)
	}
	if cal.callCount() != 1 {
		t.Errorf("calendar calls = %d, want 1", cal.callCount())
	}
	if mail.sentCount() != 2 {
		t.Fatalf("emails sent = %d, want 2", mail.sentCount())
	}
	if mail.sent[0].to != "ada@example.com" {
		t.Errorf("first email to %q, want holder", mail.sent[0].to)
	}
	if mail.sent[1].to != "operator@example.com" {
		t.Errorf("second email to %q, want operator", mail.sent[1].to)
	}
}

func TestHandleWebhookEventIdempotentReplay(t *testing.T) {
	repo := newFakeRepo(freeSlot("S1", time.Now().Add(48*time.Hour)))
	sessions := &fakeSessions{sessions: map[string]*stripe.CheckoutSession{
		"cs_1": paidSession("cs_1", "S1", "Ada", "ada@example.com"),
	}}
	cal := &fakeCalendar{}
	mail := &fakeMailer{}
	svc := newTestService(repo, sessions, cal, mail)

	payload, sig := signedEvent("evt_1", "checkout.session.completed", `{"id":"cs_1"}`)

	outcome, err := svc.HandleWebhookEvent(context.Background(), payload, sig)
	if err != nil || outcome != OutcomeBooked {
		t.Fatalf("first delivery: outcome = %v, err = %v", outcome, err)
	}

	outcome, err = svc.HandleWebhookEvent(context.Background(), payload, sig)
	if err != nil {
		t.Fatalf("replay: error = %v", err)
	}
	if outcome != OutcomeAlreadyBooked {
		t.Fatalf("replay: outcome = %v, want %v", outcome, OutcomeAlreadyBooked)
	}

	slot := repo.get("S1")
	if slot.Name != "Ada" || slot.Email != "ada@example.com" {
		t.Errorf("holder fields changed on replay: %q/%q", slot.Name, slot.Email)
	}
	if cal.callCount() != 1 {
		t.Errorf("calendar calls after replay = %d, want 1", cal.callCount())
	}
	if mail.sentCount() != 2 {
		t.Errorf("emails after replay = %d, want 2", mail.sentCount())
	}
}

func TestHandleWebhookEventTamperedPayload(t *testing.T) {
	repo := newFakeRepo(freeSlot("S1", time.Now().Add(48*time.Hour)))
	sessions := &fakeSessions{sessions: map[string]*stripe.CheckoutSession{
		"cs_1": paidSession("cs_1", "S1", "Ada", "ada@example.com"),
	}}
	svc := newTestService(repo, sessions, &fakeCalendar{}, &fakeMailer{})

	payload, sig := signedEvent("evt_1", "checkout.session.completed", `{"id":"cs_1"}`)
	tampered := []byte(strings.Replace(string(payload), "cs_1", "cs_2", 1))

	outcome, err := svc.HandleWebhookEvent(context.Background(), tampered, sig)
	if outcome != OutcomeRejected {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeRejected)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %T, want *ValidationError", err)
	}
	if repo.get("S1").IsBooked {
		t.Error("slot mutated after rejected event")
	}
}

func TestHandleWebhookEventExpiredSignature(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeSessions{}, &fakeCalendar{}, &fakeMailer{})

	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`)
	sig := signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour))

	outcome, _ := svc.HandleWebhookEvent(context.Background(), payload, sig)
	if outcome != OutcomeRejected {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeRejected)
	}
}

func TestHandleWebhookEventUnpaidSession(t *testing.T) {
	repo := newFakeRepo(freeSlot("S1", time.Now().Add(48*time.Hour)))
	unpaid := paidSession("cs_1", "S1", "Ada", "ada@example.com")
	unpaid.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
	sessions := &fakeSessions{sessions: map[string]*stripe.CheckoutSession{"cs_1": unpaid}}
	svc := newTestService(repo, sessions, &fakeCalendar{}, &fakeMailer{})

	payload, sig := signedEvent("evt_1", "checkout.session.completed", `{"id":"cs_1"}`)
	outcome, err := svc.HandleWebhookEvent(context.Background(), payload, sig)
	if err != nil {
		t.Fatalf("HandleWebhookEvent() error = %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeSkipped)
	}
	if repo.get("S1").IsBooked {
		t.Error("slot mutated for unpaid session")
	}
}

func TestHandleWebhookEventUnknownType(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeSessions{}, &fakeCalendar{}, &fakeMailer{})

	payload, sig := signedEvent("evt_1", "invoice.paid", `{"id":"in_1"}`)
	outcome, err := svc.HandleWebhookEvent(context.Background(), payload, sig)
	if err != nil {
		t.Fatalf("HandleWebhookEvent() error = %v", err)
	}
	if outcome != OutcomeSkipped {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeSkipped)
	}
}

func TestHandleWebhookEventMissingMetadata(t *testing.T) {
	repo := newFakeRepo(freeSlot("S1", time.Now().Add(48*time.Hour)))
	incomplete := &stripe.CheckoutSession{
		ID:            "cs_1",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:      map[string]string{"slotId": "S1"},
	}
	sessions := &fakeSessions{sessions: map[string]*stripe.CheckoutSession{"cs_1": incomplete}}
	svc := newTestService(repo, sessions, &fakeCalendar{}, &fakeMailer{})

	payload, sig := signedEvent("evt_1", "checkout.session.completed", `{"id":"cs_1"}`)
	outcome, err := svc.HandleWebhookEvent(context.Background(), payload, sig)
	if outcome != OutcomeRejected {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeRejected)
	}
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %T, want *ValidationError", err)
	}
	if repo.get("S1").IsBooked {
		t.Error("slot mutated despite missing metadata")
	}
}

func TestHandleWebhookEventPaymentIntentResolution(t *testing.T) {
	tests := []struct {
		name        string
		byIntent    map[string]*stripe.CheckoutSession
		wantOutcome Outcome
		wantBooked  bool
	}{
		{
			name: "session resolvable",
			byIntent: map[string]*stripe.CheckoutSession{
				"pi_1": paidSession("cs_1", "S1", "Ada", "ada@example.com"),
			},
			wantOutcome: OutcomeBooked,
			wantBooked:  true,
		},
		{
			name:        "no session for intent",
			byIntent:    map[string]*stripe.CheckoutSession{},
			wantOutcome: OutcomeSkipped,
			wantBooked:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(freeSlot("S1", time.Now().Add(48*time.Hour)))
			sessions := &fakeSessions{byIntent: tt.byIntent}
			svc := newTestService(repo, sessions, &fakeCalendar{}, &fakeMailer{})

			payload, sig := signedEvent("evt_1", "payment_intent.succeeded", `{"id":"pi_1"}`)
			outcome, err := svc.HandleWebhookEvent(context.Background(), payload, sig)
			if err != nil {
				t.Fatalf("HandleWebhookEvent() error = %v", err)
			}
			if outcome != tt.wantOutcome {
				t.Fatalf("outcome = %v, want %v", outcome, tt.wantOutcome)
			}
			if got := repo.get("S1").IsBooked; got != tt.wantBooked {
				t.Errorf("slot booked = %v, want %v", got, tt.wantBooked)
			}
		})
	}
}

func TestHandleWebhookEventStorageFailure(t *testing.T) {
	repo := newFakeRepo(freeSlot("S1", time.Now().Add(48*time.Hour)))
	repo.bookErr = errors.New("connection reset")
	sessions := &fakeSessions{sessions: map[string]*stripe.CheckoutSession{
		"cs_1": paidSession("cs_1", "S1", "Ada", "ada@example.com"),
	}}
	svc := newTestService(repo, sessions, &fakeCalendar{}, &fakeMailer{})

	payload, sig := signedEvent("evt_1", "checkout.session.completed", `{"id":"cs_1"}`)
	outcome, err := svc.HandleWebhookEvent(context.Background(), payload, sig)
	if outcome != OutcomeStorageFailure {
		t.Fatalf("outcome = %v, want %v", outcome, OutcomeStorageFailure)
	}
	var sErr *StorageError
	if !errors.As(err, &sErr) {
		t.Fatalf("error = %T, want *StorageError", err)
	}
}

func TestHandleWebhookEventCalendarFailureStillEmails(t *testing.T) {
	repo := newFakeRepo(freeSlot("S1", time.Now().Add(48*time.Hour)))
	sessions := &fakeSessions{sessions: map[string]*stripe.CheckoutSession{
		"cs_1": paidSession("cs_1", "S1", "Ada", "ada@example.com"),
	}}
	cal := &fakeCalendar{err: errors.New("calendar backend down")}
	mail := &fakeMailer{}
	svc := newTestService(repo, sessions, cal, mail)

	payload, sig := signedEvent("evt_1", "checkout.session.completed", `{"id":"cs_1"}`)
	outcome, err := svc.HandleWebhookEvent(context.Background(), payload, sig)
	if err != nil || outcome != OutcomeBooked {
		t.Fatalf("outcome = %v, err = %v, want booked with nil error", outcome, err)
	}

	if !repo.get("S1").IsBooked {
		t.Error("booking reverted after calendar failure")
	}
	if mail.sentCount() != 2 {
		t.Fatalf("emails sent = %d, want 2 despite calendar failure", mail.sentCount())
	}
	if !strings.Contains(mail.sent[0].body, "link not available") {
		t.Errorf("confirmation body missing link placeholder: %q", mail.sent[0].body)
	}
}

func TestHandleWebhookEventConcurrentSameSlot(t *testing.T) {
	repo := newFakeRepo(freeSlot("S1", time.Now().Add(48*time.Hour)))
	sessions := &fakeSessions{sessions: map[string]*stripe.CheckoutSession{
		"cs_1": paidSession("cs_1", "S1", "Ada", "ada@example.com"),
		"cs_2": paidSession("cs_2", "S1", "Grace", "grace@example.com"),
	}}
	cal := &fakeCalendar{}
	mail := &fakeMailer{}
	svc := newTestService(repo, sessions, cal, mail)

	const workers = 8
	outcomes := make([]Outcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		sessionID := "cs_1"
		if i%2 == 1 {
			sessionID = "cs_2"
		}
		payload, sig := signedEvent(fmt.Sprintf("evt_%d", i), "checkout.session.completed", fmt.Sprintf(`{"id":%q}`, sessionID))

		wg.Add(1)
		go func(i int, payload []byte, sig string) {
			defer wg.Done()
			outcome, _ := svc.HandleWebhookEvent(context.Background(), payload, sig)
			outcomes[i] = outcome
		}(i, payload, sig)
	}
	wg.Wait()

	booked := 0
	for _, o := range outcomes {
		switch o {
		case OutcomeBooked:
			booked++
		case OutcomeAlreadyBooked:
		default:
			t.Fatalf("unexpected outcome under contention: %v", o)
		}
	}
	if booked != 1 {
		t.Fatalf("booked outcomes = %d, want exactly 1", booked)
	}
	if cal.callCount() != 1 {
		t.Errorf("calendar calls = %d, want 1", cal.callCount())
	}
	if mail.sentCount() != 2 {
		t.Errorf("emails sent = %d, want 2", mail.sentCount())
	}
}
