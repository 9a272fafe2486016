package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/reginor/backend-reginor/internal/events"
	"github.com/reginor/backend-reginor/internal/obs"
	"github.com/reginor/backend-reginor/internal/order"
)

type fakeOrderStore struct {
	orders map[string]order.Order // by payment ref
	byID   map[uuid.UUID]*order.Order
}

func newFakeOrderStore(orders ...order.Order) *fakeOrderStore {
	f := &fakeOrderStore{orders: map[string]order.Order{}, byID: map[uuid.UUID]*order.Order{}}
	for _, o := range orders {
		stored := o
		f.byID[o.ID] = &stored
		if o.PaymentRef != "" {
			f.orders[o.PaymentRef] = o
		}
	}
	return f
}

func (f *fakeOrderStore) Get(_ context.Context, _ string, id uuid.UUID) (order.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	return *o, nil
}

func (f *fakeOrderStore) AttachPayment(_ context.Context, _ string, id uuid.UUID, provider, ref string) error {
	o := f.byID[id]
	o.PaymentProvider = provider
	o.PaymentRef = ref
	f.orders[ref] = *o
	return nil
}

func (f *fakeOrderStore) ByPaymentRef(_ context.Context, ref string) (order.Order, string, error) {
	o, ok := f.orders[ref]
	if !ok {
		return order.Order{}, "", order.ErrNotFound
	}
	return *f.byID[o.ID], "oslo-swing", nil
}

func (f *fakeOrderStore) MarkPaid(_ context.Context, _ string, id uuid.UUID) error {
	o := f.byID[id]
	if o.Status != order.StatusPendingPayment {
		return order.ErrInvalidTransition
	}
	o.Status = order.StatusPaid
	return nil
}

func (f *fakeOrderStore) MarkCanceled(_ context.Context, _ string, id uuid.UUID) error {
	o := f.byID[id]
	if o.Status != order.StatusPendingPayment {
		return order.ErrInvalidTransition
	}
	o.Status = order.StatusCanceled
	return nil
}

type stubProvider struct {
	intents int
	fail    bool
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) CreateIntent(_ context.Context, in IntentInput) (Intent, error) {
	if p.fail {
		return Intent{}, context.DeadlineExceeded
	}
	p.intents++
	return Intent{Provider: "stub", Ref: "pi_" + in.OrderID, ClientSecret: "secret"}, nil
}

type recordingEmitter struct {
	topics []string
}

func (e *recordingEmitter) Emit(_ context.Context, _ string, topic string, aggregateID uuid.UUID, _ any) (events.Event, error) {
	e.topics = append(e.topics, topic)
	return events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID}, nil
}

func newPaymentService(store *fakeOrderStore, provider *stubProvider) (*Service, *recordingEmitter) {
	obs.MustRegisterDomainMetrics("reginor", prometheus.NewRegistry())
	emitter := &recordingEmitter{}
	return &Service{Orders: store, Provider: provider, Events: emitter, Log: zerolog.Nop()}, emitter
}

func pendingOrder(userID uuid.UUID, ref string) order.Order {
	return order.Order{
		ID:         uuid.New(),
		UserID:     userID,
		Status:     order.StatusPendingPayment,
		Currency:   "NOK",
		TotalCents: 217000,
		PaymentRef: ref,
	}
}

func TestStartAttachesIntent(t *testing.T) {
	userID := uuid.New()
	o := pendingOrder(userID, "")
	store := newFakeOrderStore(o)
	provider := &stubProvider{}
	svc, _ := newPaymentService(store, provider)

	intent, err := svc.Start(context.Background(), "oslo-swing", o.ID, userID.String())
	require.NoError(t, err)
	require.Equal(t, "stub", intent.Provider)
	require.Equal(t, "pi_"+o.ID.String(), intent.Ref)
	require.Equal(t, intent.Ref, store.byID[o.ID].PaymentRef)
}

func TestStartRejectsForeignOrder(t *testing.T) {
	o := pendingOrder(uuid.New(), "")
	svc, _ := newPaymentService(newFakeOrderStore(o), &stubProvider{})

	_, err := svc.Start(context.Background(), "oslo-swing", o.ID, uuid.New().String())
	require.Error(t, err)
}

func TestStartRejectsPaidOrder(t *testing.T) {
	userID := uuid.New()
	o := pendingOrder(userID, "")
	o.Status = order.StatusPaid
	provider := &stubProvider{}
	svc, _ := newPaymentService(newFakeOrderStore(o), provider)

	_, err := svc.Start(context.Background(), "oslo-swing", o.ID, userID.String())
	require.Error(t, err)
	require.Zero(t, provider.intents)
}

func TestSucceededOutcomeMarksPaidOnce(t *testing.T) {
	o := pendingOrder(uuid.New(), "pi_123")
	store := newFakeOrderStore(o)
	svc, emitter := newPaymentService(store, &stubProvider{})

	require.NoError(t, svc.HandleIntentOutcome(context.Background(), "pi_123", OutcomeSucceeded))
	require.Equal(t, order.StatusPaid, store.byID[o.ID].Status)
	require.Equal(t, []string{events.TopicOrderPaid}, emitter.topics)

	// Replay acknowledges without a second event.
	require.NoError(t, svc.HandleIntentOutcome(context.Background(), "pi_123", OutcomeSucceeded))
	require.Equal(t, []string{events.TopicOrderPaid}, emitter.topics)
}

func TestFailedOutcomeKeepsOrderPending(t *testing.T) {
	o := pendingOrder(uuid.New(), "pi_123")
	store := newFakeOrderStore(o)
	svc, emitter := newPaymentService(store, &stubProvider{})

	require.NoError(t, svc.HandleIntentOutcome(context.Background(), "pi_123", OutcomeFailed))
	require.Equal(t, order.StatusPendingPayment, store.byID[o.ID].Status)
	require.Equal(t, []string{events.TopicPaymentFailed}, emitter.topics)
}

func TestUnknownRefIsAcknowledged(t *testing.T) {
	svc, emitter := newPaymentService(newFakeOrderStore(), &stubProvider{})

	require.NoError(t, svc.HandleIntentOutcome(context.Background(), "pi_missing", OutcomeSucceeded))
	require.Empty(t, emitter.topics)
}
