package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"finsync/internal/common"
	"finsync/internal/config"
	"finsync/internal/models"
	"finsync/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memoryStore mirrors the SQL semantics of the pgx repositories closely
// enough to exercise reconciliation end to end.
type memoryStore struct {
	mu            sync.Mutex
	payments      map[string]*models.Payment
	subscriptions map[uuid.UUID]*models.Subscription
	planChanges   map[uuid.UUID]*models.PlanChangeRequest
	clock         func() time.Time
	txCount       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		payments:      make(map[string]*models.Payment),
		subscriptions: make(map[uuid.UUID]*models.Subscription),
		planChanges:   make(map[uuid.UUID]*models.PlanChangeRequest),
		clock:         time.Now,
	}
}

func (m *memoryStore) Payments() repositories.PaymentRepository { return memoryPayments{m} }
func (m *memoryStore) Subscriptions() repositories.SubscriptionRepository { return memorySubscriptions{m} }
func (m *memoryStore) PlanChanges() repositories.PlanChangeRequestRepository { return memoryPlanChanges{m} }

func (m *memoryStore) WithinTx(ctx context.Context, fn func(repositories.Store) error) error {
	m.mu.Lock()
	m.txCount++
	m.mu.Unlock()
	return fn(m)
}

func (m *memoryStore) addSubscription(sub models.Subscription) *models.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.Processor == "" {
		sub.Processor = models.ProcessorAsaas
	}
	m.subscriptions[sub.ID] = &sub
	out := sub
	return &out
}

func (m *memoryStore) addPlanChange(req models.PlanChangeRequest) *models.PlanChangeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = m.clock()
	}
	m.planChanges[req.ID] = &req
	out := req
	return &out
}

func (m *memoryStore) subscription(id uuid.UUID) models.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.subscriptions[id]
}

func (m *memoryStore) planChange(id uuid.UUID) models.PlanChangeRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.planChanges[id]
}

func (m *memoryStore) payment(externalID string) *models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[externalID]
	if !ok {
		return nil
	}
	out := *p
	return &out
}

func (m *memoryStore) subscriptionsFor(userID uuid.UUID) []models.Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Subscription
	for _, s := range m.subscriptions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out
}

func (m *memoryStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}

func live(status models.SubscriptionStatus) bool {
	return status == models.SubscriptionPending || status == models.SubscriptionActive || status == models.SubscriptionPastDue
}

type memoryPayments struct{ m *memoryStore }

func (r memoryPayments) Upsert(ctx context.Context, payment *models.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	now := r.m.clock()
	existing, ok := r.m.payments[payment.ExternalPaymentID]
	if !ok {
		stored := *payment
		stored.ID = uuid.New()
		stored.CreatedAt, stored.UpdatedAt = now, now
		r.m.payments[payment.ExternalPaymentID] = &stored
		payment.ID, payment.CreatedAt, payment.UpdatedAt = stored.ID, now, now
		return nil
	}

	if existing.UserID == nil {
		existing.UserID = payment.UserID
	}
	existing.Amount = payment.Amount
	existing.Status = payment.Status
	existing.PaymentDate = payment.PaymentDate
	existing.ConfirmedDate = payment.ConfirmedDate
	existing.InvoiceURL = payment.InvoiceURL
	if payment.ExternalSubscriptionID != nil {
		existing.ExternalSubscriptionID = payment.ExternalSubscriptionID
	}
	if payment.ExternalReference != nil {
		existing.ExternalReference = payment.ExternalReference
	}
	existing.UpdatedAt = now

	payment.ID, payment.UserID, payment.AppliedAt = existing.ID, existing.UserID, existing.AppliedAt
	payment.CreatedAt, payment.UpdatedAt = existing.CreatedAt, existing.UpdatedAt
	return nil
}

func (r memoryPayments) GetByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	if p := r.m.payment(externalID); p != nil {
		return p, nil
	}
	return nil, common.ErrNotFound
}

func (r memoryPayments) MarkApplied(ctx context.Context, externalID string) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.payments[externalID]
	if !ok || p.AppliedAt != nil {
		return false, nil
	}
	now := r.m.clock()
	p.AppliedAt = &now
	return true, nil
}

func (r memoryPayments) ListOpenByUser(ctx context.Context, userID uuid.UUID, createdBefore time.Time, limit int) ([]*models.Payment, error) {
	return r.filter(limit, func(p *models.Payment) bool {
		return p.UserID != nil && *p.UserID == userID && models.IsOpenStatus(p.Status) && p.CreatedAt.Before(createdBefore)
	}), nil
}

func (r memoryPayments) ListOpen(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Payment, error) {
	return r.filter(limit, func(p *models.Payment) bool {
		return models.IsOpenStatus(p.Status) && p.CreatedAt.Before(createdBefore)
	}), nil
}

func (r memoryPayments) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Payment, error) {
	all := r.filter(0, func(p *models.Payment) bool { return p.UserID != nil && *p.UserID == userID })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r memoryPayments) ListBySubscription(ctx context.Context, externalSubscriptionID string, limit int) ([]*models.Payment, error) {
	all := r.filter(0, func(p *models.Payment) bool {
		return p.ExternalSubscriptionID != nil && *p.ExternalSubscriptionID == externalSubscriptionID
	})
	sort.SliceStable(all, func(i, j int) bool {
		return models.IsSuccessStatus(all[i].Status) && !models.IsSuccessStatus(all[j].Status)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r memoryPayments) filter(limit int, keep func(*models.Payment) bool) []*models.Payment {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*models.Payment
	for _, p := range r.m.payments {
		if keep(p) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalPaymentID < out[j].ExternalPaymentID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

type memorySubscriptions struct{ m *memoryStore }

func (r memorySubscriptions) GetByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s, ok := r.m.subscriptions[id]; ok {
		out := *s
		return &out, nil
	}
	return nil, common.ErrNotFound
}

func (r memorySubscriptions) GetByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.subscriptions {
		if s.ExternalSubscriptionID != nil && *s.ExternalSubscriptionID == externalID {
			out := *s
			return &out, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memorySubscriptions) GetCurrentByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var best *models.Subscription
	for _, s := range r.m.subscriptions {
		if s.UserID != userID {
			continue
		}
		if best == nil || (live(s.Status) && !live(best.Status)) ||
			(live(s.Status) == live(best.Status) && s.CreatedAt.After(best.CreatedAt)) {
			best = s
		}
	}
	if best == nil {
		return nil, common.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (r memorySubscriptions) liveFor(userID uuid.UUID) *models.Subscription {
	for _, s := range r.m.subscriptions {
		if s.UserID == userID && live(s.Status) {
			return s
		}
	}
	return nil
}

func (r memorySubscriptions) CreatePending(ctx context.Context, subscription *models.Subscription) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if existing := r.liveFor(subscription.UserID); existing != nil {
		existing.ExternalSubscriptionID = subscription.ExternalSubscriptionID
		existing.ExternalCustomerID = subscription.ExternalCustomerID
		existing.PlanType = subscription.PlanType
		subscription.ID, subscription.Status = existing.ID, existing.Status
		return nil
	}
	stored := *subscription
	stored.ID = uuid.New()
	stored.Status = models.SubscriptionPending
	stored.CreatedAt = r.m.clock()
	r.m.subscriptions[stored.ID] = &stored
	subscription.ID, subscription.Status, subscription.CreatedAt = stored.ID, stored.Status, stored.CreatedAt
	return nil
}

func (r memorySubscriptions) Activate(ctx context.Context, id uuid.UUID, a repositories.Activation) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.subscriptions[id]
	if !ok {
		return nil
	}
	if other := r.liveFor(s.UserID); other != nil && other.ID != id {
		return errors.New("duplicate key value violates unique constraint \"subscriptions_user_live_idx\"")
	}
	applyActivation(s, a)
	return nil
}

func applyActivation(s *models.Subscription, a repositories.Activation) {
	start, end := a.PeriodStart, a.PeriodEnd
	s.PlanType = a.PlanType
	s.Status = models.SubscriptionActive
	s.CurrentPeriodStart, s.CurrentPeriodEnd = &start, &end
	if a.ExternalSubscriptionID != nil {
		s.ExternalSubscriptionID = a.ExternalSubscriptionID
	}
	if a.ExternalCustomerID != nil {
		s.ExternalCustomerID = a.ExternalCustomerID
	}
}

func (r memorySubscriptions) UpsertActiveForUser(ctx context.Context, userID uuid.UUID, a repositories.Activation) (*models.Subscription, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s := r.liveFor(userID)
	if s == nil {
		s = &models.Subscription{ID: uuid.New(), UserID: userID, Processor: models.ProcessorAsaas, CreatedAt: r.m.clock()}
		r.m.subscriptions[s.ID] = s
	}
	applyActivation(s, a)
	out := *s
	return &out, nil
}

func (r memorySubscriptions) UpsertByExternalID(ctx context.Context, subscription *models.Subscription) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, s := range r.m.subscriptions {
		if s.ExternalSubscriptionID != nil && subscription.ExternalSubscriptionID != nil &&
			*s.ExternalSubscriptionID == *subscription.ExternalSubscriptionID {
			r.applyState(s, subscription)
			*subscription = *s
			return nil
		}
	}
	stored := *subscription
	stored.ID = uuid.New()
	stored.CreatedAt = r.m.clock()
	r.m.subscriptions[stored.ID] = &stored
	*subscription = stored
	return nil
}

func (r memorySubscriptions) ApplyProcessorState(ctx context.Context, id uuid.UUID, subscription *models.Subscription) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.subscriptions[id]
	if !ok {
		return common.ErrNotFound
	}
	r.applyState(s, subscription)
	*subscription = *s
	return nil
}

func (r memorySubscriptions) applyState(s, incoming *models.Subscription) {
	if !(s.Status == models.SubscriptionPending && incoming.Status == models.SubscriptionActive) {
		s.Status = incoming.Status
	}
	s.PlanType = incoming.PlanType
	if incoming.CurrentPeriodEnd != nil {
		s.CurrentPeriodEnd = incoming.CurrentPeriodEnd
	}
	if incoming.ExternalSubscriptionID != nil {
		s.ExternalSubscriptionID = incoming.ExternalSubscriptionID
	}
	if incoming.ExternalCustomerID != nil {
		s.ExternalCustomerID = incoming.ExternalCustomerID
	}
}

func (r memorySubscriptions) UpdatePlanType(ctx context.Context, id uuid.UUID, planType models.PlanType) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s, ok := r.m.subscriptions[id]; ok {
		s.PlanType = planType
	}
	return nil
}

func (r memorySubscriptions) CancelIfActive(ctx context.Context, id uuid.UUID) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	s, ok := r.m.subscriptions[id]
	if !ok || s.Status != models.SubscriptionActive {
		return false, nil
	}
	s.Status = models.SubscriptionCancelled
	return true, nil
}

func (r memorySubscriptions) SetCancelAtPeriodEnd(ctx context.Context, id uuid.UUID, cancel bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if s, ok := r.m.subscriptions[id]; ok {
		s.CancelAtPeriodEnd = cancel
	}
	return nil
}

func (r memorySubscriptions) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, s := range r.m.subscriptions {
		if s.CancelAtPeriodEnd && (s.Status == models.SubscriptionActive || s.Status == models.SubscriptionPastDue) &&
			s.CurrentPeriodEnd != nil && !s.CurrentPeriodEnd.After(now) {
			s.Status = models.SubscriptionCancelled
			n++
		}
	}
	return n, nil
}

type memoryPlanChanges struct{ m *memoryStore }

func (r memoryPlanChanges) Create(ctx context.Context, request *models.PlanChangeRequest) error {
	r.m.addPlanChange(*request)
	return nil
}

func (r memoryPlanChanges) GetByID(ctx context.Context, id uuid.UUID) (*models.PlanChangeRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if req, ok := r.m.planChanges[id]; ok {
		out := *req
		return &out, nil
	}
	return nil, common.ErrNotFound
}

func (r memoryPlanChanges) GetPendingByPaymentID(ctx context.Context, externalPaymentID string) (*models.PlanChangeRequest, error) {
	return r.latest(func(req *models.PlanChangeRequest) bool {
		return req.ExternalPaymentID != nil && *req.ExternalPaymentID == externalPaymentID
	})
}

func (r memoryPlanChanges) GetLatestPending(ctx context.Context, subscriptionID uuid.UUID) (*models.PlanChangeRequest, error) {
	return r.latest(func(req *models.PlanChangeRequest) bool { return req.SubscriptionID == subscriptionID })
}

func (r memoryPlanChanges) latest(match func(*models.PlanChangeRequest) bool) (*models.PlanChangeRequest, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var best *models.PlanChangeRequest
	for _, req := range r.m.planChanges {
		if req.Status == models.PlanChangePending && match(req) && (best == nil || req.CreatedAt.After(best.CreatedAt)) {
			best = req
		}
	}
	if best == nil {
		return nil, common.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (r memoryPlanChanges) Transition(ctx context.Context, id uuid.UUID, from, to models.PlanChangeStatus) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	req, ok := r.m.planChanges[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = to
	return true, nil
}

// fakeProcessor serves canned processor objects and records mutations.
type fakeProcessor struct {
	mu            sync.Mutex
	payments      map[string]*models.ProcessorPayment
	subscriptions map[string]*models.ProcessorSubscription
	err           error
	calls         map[string]int
	updates       []models.SubscriptionUpdate
	cancelled     []string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		payments:      make(map[string]*models.ProcessorPayment),
		subscriptions: make(map[string]*models.ProcessorSubscription),
		calls:         make(map[string]int),
	}
}

func (f *fakeProcessor) record(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.err
}

func (f *fakeProcessor) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func notFoundAt(op string) error {
	return &common.ProcessorError{Op: op, StatusCode: 404, Message: "not found", Lookup: true}
}

func (f *fakeProcessor) GetPayment(ctx context.Context, paymentID string) (*models.ProcessorPayment, error) {
	if err := f.record("GetPayment"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[paymentID]
	if !ok {
		return nil, notFoundAt("get payment")
	}
	out := *p
	return &out, nil
}

func (f *fakeProcessor) GetSubscription(ctx context.Context, subscriptionID string) (*models.ProcessorSubscription, error) {
	if err := f.record("GetSubscription"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, notFoundAt("get subscription")
	}
	out := *s
	return &out, nil
}

func (f *fakeProcessor) ListSubscriptionPayments(ctx context.Context, subscriptionID string) ([]models.ProcessorPayment, error) {
	if err := f.record("ListSubscriptionPayments"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ProcessorPayment
	for _, p := range f.payments {
		if p.Subscription == subscriptionID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeProcessor) UpdateSubscription(ctx context.Context, subscriptionID string, update models.SubscriptionUpdate) (*models.ProcessorSubscription, error) {
	if err := f.record("UpdateSubscription"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	s, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, notFoundAt("update subscription")
	}
	s.Value = decimal.NewFromFloat(update.Value)
	s.Cycle = update.Cycle
	out := *s
	return &out, nil
}

func (f *fakeProcessor) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if err := f.record("CancelSubscription"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, subscriptionID)
	return nil
}

func (f *fakeProcessor) CancelPayment(ctx context.Context, paymentID string) error {
	if err := f.record("CancelPayment"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, paymentID)
	if p, ok := f.payments[paymentID]; ok {
		p.Status = models.PaymentCancelled
	}
	return nil
}

func (f *fakeProcessor) CreateCustomer(ctx context.Context, customer models.ProcessorCustomer) (*models.ProcessorCustomer, error) {
	if err := f.record("CreateCustomer"); err != nil {
		return nil, err
	}
	customer.ID = "cus_new"
	return &customer, nil
}

func (f *fakeProcessor) CreateSubscription(ctx context.Context, sub models.NewSubscription) (*models.ProcessorSubscription, error) {
	if err := f.record("CreateSubscription"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	created := &models.ProcessorSubscription{
		ID:                "sub_new",
		Customer:          sub.Customer,
		Value:             decimal.NewFromFloat(sub.Value),
		Cycle:             sub.Cycle,
		Status:            "ACTIVE",
		BillingType:       sub.BillingType,
		NextDueDate:       sub.NextDueDate,
		ExternalReference: sub.ExternalReference,
	}
	f.subscriptions[created.ID] = created
	f.payments["pay_first"] = &models.ProcessorPayment{
		ID:                "pay_first",
		Customer:          sub.Customer,
		Subscription:      created.ID,
		Value:             created.Value,
		Status:            models.PaymentPending,
		BillingType:       sub.BillingType,
		DueDate:           sub.NextDueDate,
		ExternalReference: sub.ExternalReference,
		InvoiceURL:        "https://sandbox.asaas.com/i/first",
	}
	out := *created
	return &out, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	failed    []string
	confirmed []string
	err       error
}

func (n *recordingNotifier) NotifyPaymentFailed(ctx context.Context, userID uuid.UUID, payment *models.Payment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, payment.ExternalPaymentID)
	return n.err
}

func (n *recordingNotifier) NotifyPaymentConfirmed(ctx context.Context, userID uuid.UUID, payment *models.Payment, plan models.PlanType) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, payment.ExternalPaymentID)
	return n.err
}

func (n *recordingNotifier) counts() (failed, confirmed int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.failed), len(n.confirmed)
}

type fixedPrices struct {
	prices config.PlanPrices
	err    error
}

func (f fixedPrices) PlanPrices(ctx context.Context) (config.PlanPrices, error) {
	return f.prices, f.err
}

func defaultPrices() fixedPrices {
	return fixedPrices{prices: config.PlanPrices{
		Monthly: decimal.RequireFromString("19.90"),
		Annual:  decimal.RequireFromString("199.90"),
	}}
}
