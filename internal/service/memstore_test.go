package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"crmbilling/internal/model"
	"crmbilling/internal/repository"
)

var errDuplicateKey = errors.New("duplicate key")

// memState is an in-memory database. Do works on a clone and swaps it in on
// success, so a failed transaction leaves nothing behind.
type memState struct {
	nextID   int64
	users    map[int64]model.User
	wallets  map[int64]model.Wallet
	txns     []model.WalletTransaction
	payments map[int64]model.Payment
	outbox   []model.OutboxMessage
}

func newMemState() *memState {
	return &memState{
		users:    map[int64]model.User{},
		wallets:  map[int64]model.Wallet{},
		payments: map[int64]model.Payment{},
	}
}

func (s *memState) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memState) clone() *memState {
	c := &memState{
		nextID:   s.nextID,
		users:    make(map[int64]model.User, len(s.users)),
		wallets:  make(map[int64]model.Wallet, len(s.wallets)),
		payments: make(map[int64]model.Payment, len(s.payments)),
		txns:     append([]model.WalletTransaction(nil), s.txns...),
		outbox:   append([]model.OutboxMessage(nil), s.outbox...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	return c
}

type memHooks struct {
	outboxErr  error
	listErr    error
	chargeHook func()
}

type memUoW struct {
	mu    sync.Mutex
	state *memState
	hooks memHooks
}

func newMemUoW() *memUoW {
	return &memUoW{state: newMemState()}
}

func (u *memUoW) Repos() *repository.Repos {
	return u.repos(&memStore{uow: u})
}

func (u *memUoW) Do(ctx context.Context, fn func(r *repository.Repos) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	work := u.state.clone()
	if err := fn(u.repos(&memStore{st: work, hooks: &u.hooks})); err != nil {
		return err
	}
	u.state = work
	return nil
}

func (u *memUoW) repos(m *memStore) *repository.Repos {
	if m.hooks == nil {
		m.hooks = &u.hooks
	}
	return &repository.Repos{
		Users:        memUsers{m},
		Wallets:      memWallets{m},
		Transactions: memTransactions{m},
		Payments:     memPayments{m},
		Outbox:       memOutbox{m},
	}
}

// snapshot returns a copy of the committed state for assertions.
func (u *memUoW) snapshot() *memState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state.clone()
}

func (u *memUoW) seedUser(email string, plan model.Plan, expiresAt *time.Time, autoRenew bool) model.User {
	u.mu.Lock()
	defer u.mu.Unlock()
	user := model.User{
		ID:                    u.state.id(),
		Email:                 email,
		Plan:                  plan,
		SubscriptionExpiresAt: expiresAt,
		SubscriptionAutoRenew: autoRenew,
	}
	u.state.users[user.ID] = user
	return user
}

func (u *memUoW) seedWallet(userID, balance int64) model.Wallet {
	u.mu.Lock()
	defer u.mu.Unlock()
	w := model.Wallet{ID: u.state.id(), UserID: userID, Balance: balance, Currency: "₸"}
	u.state.wallets[w.ID] = w
	return w
}

func (u *memUoW) seedPayment(p model.Payment) model.Payment {
	u.mu.Lock()
	defer u.mu.Unlock()
	p.ID = u.state.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	p.UpdatedAt = p.CreatedAt
	u.state.payments[p.ID] = p
	return p
}

func (s *memState) walletOf(userID int64) (model.Wallet, bool) {
	for _, w := range s.wallets {
		if w.UserID == userID {
			return w, true
		}
	}
	return model.Wallet{}, false
}

func (s *memState) outboxOfType(eventType string) int {
	n := 0
	for _, m := range s.outbox {
		if m.EventType == eventType && containsType(m.Payload, eventType) {
			n++
		}
	}
	return n
}

func containsType(payload, eventType string) bool {
	return strings.Contains(payload, `"type":"`+eventType+`"`)
}

type memStore struct {
	uow   *memUoW
	st    *memState
	hooks *memHooks
}

func (m *memStore) begin() (*memState, func()) {
	if m.uow != nil {
		m.uow.mu.Lock()
		return m.uow.state, m.uow.mu.Unlock
	}
	return m.st, func() {}
}

type memUsers struct{ *memStore }

func (r memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	st, done := r.begin()
	defer done()
	u, ok := st.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	st, done := r.begin()
	defer done()
	for _, u := range st.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r memUsers) GetOrCreateByEmail(ctx context.Context, email string) (*model.User, error) {
	st, done := r.begin()
	defer done()
	for _, u := range st.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	u := model.User{ID: st.id(), Email: email, Plan: model.PlanFree}
	st.users[u.ID] = u
	return &u, nil
}

func (r memUsers) ActivateSubscription(_ context.Context, userID int64, plan model.Plan, expiresAt time.Time) error {
	st, done := r.begin()
	defer done()
	u, ok := st.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Plan = plan
	u.SubscriptionExpiresAt = &expiresAt
	u.SubscriptionAutoRenew = true
	st.users[userID] = u
	return nil
}

func (r memUsers) SetAutoRenew(_ context.Context, userID int64, enabled bool) error {
	st, done := r.begin()
	defer done()
	u, ok := st.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.SubscriptionAutoRenew = enabled
	st.users[userID] = u
	return nil
}

func (r memUsers) DowngradeExpired(_ context.Context, userID int64, now time.Time) (bool, error) {
	st, done := r.begin()
	defer done()
	u, ok := st.users[userID]
	if !ok || u.Plan == model.PlanFree || u.SubscriptionExpiresAt == nil || u.SubscriptionExpiresAt.After(now) {
		return false, nil
	}
	u.Plan = model.PlanFree
	u.SubscriptionExpiresAt = nil
	st.users[userID] = u
	return true, nil
}

func (r memUsers) list(afterID int64, limit int, match func(model.User) bool) ([]*model.User, error) {
	if r.hooks.listErr != nil {
		return nil, r.hooks.listErr
	}
	st, done := r.begin()
	defer done()
	var out []*model.User
	for _, u := range st.users {
		if u.ID > afterID && u.Plan.IsPaid() && u.SubscriptionExpiresAt != nil && match(u) {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memUsers) ListRenewalCandidates(_ context.Context, deadline time.Time, afterID int64, limit int) ([]*model.User, error) {
	return r.list(afterID, limit, func(u model.User) bool {
		return u.SubscriptionAutoRenew && !u.SubscriptionExpiresAt.After(deadline)
	})
}

func (r memUsers) ListExpiredWithoutRenewal(_ context.Context, now time.Time, afterID int64, limit int) ([]*model.User, error) {
	return r.list(afterID, limit, func(u model.User) bool {
		return !u.SubscriptionAutoRenew && !u.SubscriptionExpiresAt.After(now)
	})
}

type memWallets struct{ *memStore }

func (r memWallets) GetByUserID(_ context.Context, userID int64) (*model.Wallet, error) {
	st, done := r.begin()
	defer done()
	w, ok := st.walletOf(userID)
	if !ok {
		return nil, repository.ErrWalletNotFound
	}
	return &w, nil
}

func (r memWallets) GetByUserIDForUpdate(ctx context.Context, userID int64) (*model.Wallet, error) {
	return r.GetByUserID(ctx, userID)
}

func (r memWallets) GetOrCreate(_ context.Context, userID int64, currency string) (*model.Wallet, error) {
	st, done := r.begin()
	defer done()
	if w, ok := st.walletOf(userID); ok {
		return &w, nil
	}
	w := model.Wallet{ID: st.id(), UserID: userID, Currency: currency}
	st.wallets[w.ID] = w
	return &w, nil
}

func (r memWallets) Debit(_ context.Context, walletID int64, amount int64) error {
	if r.hooks.chargeHook != nil {
		r.hooks.chargeHook()
	}
	st, done := r.begin()
	defer done()
	w, ok := st.wallets[walletID]
	if !ok || w.Balance < amount {
		return repository.ErrInsufficientBalance
	}
	w.Balance -= amount
	w.Version++
	st.wallets[walletID] = w
	return nil
}

func (r memWallets) Credit(_ context.Context, walletID int64, amount int64) error {
	st, done := r.begin()
	defer done()
	w, ok := st.wallets[walletID]
	if !ok {
		return repository.ErrWalletNotFound
	}
	w.Balance += amount
	w.Version++
	st.wallets[walletID] = w
	return nil
}

func (r memWallets) UpdateCurrency(_ context.Context, walletID int64, currency string) error {
	st, done := r.begin()
	defer done()
	w, ok := st.wallets[walletID]
	if !ok {
		return repository.ErrWalletNotFound
	}
	w.Currency = currency
	st.wallets[walletID] = w
	return nil
}

type memTransactions struct{ *memStore }

func (r memTransactions) Create(_ context.Context, trans *model.WalletTransaction) error {
	st, done := r.begin()
	defer done()
	trans.ID = st.id()
	trans.CreatedAt = time.Now()
	st.txns = append(st.txns, *trans)
	return nil
}

func (r memTransactions) GetByTransactionNo(_ context.Context, no string) (*model.WalletTransaction, error) {
	st, done := r.begin()
	defer done()
	for _, t := range st.txns {
		if t.TransactionNo == no {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (r memTransactions) ListByUserID(_ context.Context, userID int64, limit, offset int) ([]*model.WalletTransaction, int64, error) {
	st, done := r.begin()
	defer done()
	var all []*model.WalletTransaction
	for i := len(st.txns) - 1; i >= 0; i-- {
		if st.txns[i].UserID == userID {
			t := st.txns[i]
			all = append(all, &t)
		}
	}
	return page(all, limit, offset), int64(len(all)), nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end]
}

type memPayments struct{ *memStore }

func (r memPayments) Create(_ context.Context, p *model.Payment) error {
	st, done := r.begin()
	defer done()
	if p.RequestID != nil {
		for _, existing := range st.payments {
			if existing.UserID == p.UserID && existing.RequestID != nil && *existing.RequestID == *p.RequestID {
				return errDuplicateKey
			}
		}
	}
	p.ID = st.id()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	st.payments[p.ID] = *p
	return nil
}

func (r memPayments) find(match func(model.Payment) bool) (*model.Payment, error) {
	st, done := r.begin()
	defer done()
	for _, p := range st.payments {
		if match(p) {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (r memPayments) GetByID(_ context.Context, id int64) (*model.Payment, error) {
	return r.find(func(p model.Payment) bool { return p.ID == id })
}

func (r memPayments) GetByIDAndUser(_ context.Context, id, userID int64) (*model.Payment, error) {
	return r.find(func(p model.Payment) bool { return p.ID == id && p.UserID == userID })
}

func (r memPayments) GetByKaspiOrderID(_ context.Context, orderID string) (*model.Payment, error) {
	return r.find(func(p model.Payment) bool { return p.KaspiOrderID != nil && *p.KaspiOrderID == orderID })
}

func (r memPayments) GetByKaspiOrderIDForUpdate(ctx context.Context, orderID string) (*model.Payment, error) {
	return r.GetByKaspiOrderID(ctx, orderID)
}

func (r memPayments) GetByRequestID(_ context.Context, userID int64, requestID string) (*model.Payment, error) {
	p, err := r.find(func(p model.Payment) bool {
		return p.UserID == userID && p.RequestID != nil && *p.RequestID == requestID
	})
	if err == repository.ErrPaymentNotFound {
		return nil, nil
	}
	return p, err
}

func (r memPayments) UpdateStatus(_ context.Context, id int64, from, to model.PaymentStatus, c repository.PaymentChanges) error {
	if !model.CanTransitionTo(from, to) {
		return repository.ErrStatusTransition
	}
	st, done := r.begin()
	defer done()
	p, ok := st.payments[id]
	if !ok || p.Status != from {
		return repository.ErrStatusTransition
	}
	p.Status = to
	if c.KaspiOrderID != nil {
		p.KaspiOrderID = c.KaspiOrderID
	}
	if c.KaspiPaymentID != nil {
		p.KaspiPaymentID = c.KaspiPaymentID
	}
	if c.WalletTransactionID != nil {
		p.WalletTransactionID = c.WalletTransactionID
	}
	if c.PaidAt != nil {
		p.PaidAt = c.PaidAt
	}
	p.UpdatedAt = time.Now()
	st.payments[id] = p
	return nil
}

func (r memPayments) ListByUserID(_ context.Context, userID int64, limit, offset int) ([]*model.Payment, int64, error) {
	st, done := r.begin()
	defer done()
	var all []*model.Payment
	for _, p := range st.payments {
		if p.UserID == userID {
			p := p
			all = append(all, &p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	return page(all, limit, offset), int64(len(all)), nil
}

func (r memPayments) ListStale(_ context.Context, method string, status model.PaymentStatus, before time.Time, afterID int64, limit int) ([]*model.Payment, error) {
	st, done := r.begin()
	defer done()
	var out []*model.Payment
	for _, p := range st.payments {
		if p.ID > afterID && p.PaymentMethod == method && p.Status == status && p.UpdatedAt.Before(before) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, limit, 0), nil
}

type memOutbox struct{ *memStore }

func (r memOutbox) Create(_ context.Context, msg *model.OutboxMessage) error {
	if r.hooks.outboxErr != nil {
		return r.hooks.outboxErr
	}
	st, done := r.begin()
	defer done()
	msg.ID = st.id()
	st.outbox = append(st.outbox, *msg)
	return nil
}

func (r memOutbox) GetPendingMessages(_ context.Context, limit int) ([]*model.OutboxMessage, error) {
	st, done := r.begin()
	defer done()
	var out []*model.OutboxMessage
	for _, m := range st.outbox {
		if m.Status == model.OutboxStatusPending {
			m := m
			out = append(out, &m)
		}
	}
	return page(out, limit, 0), nil
}

func (r memOutbox) setStatus(id int64, status model.OutboxStatus, retry bool) error {
	st, done := r.begin()
	defer done()
	for i := range st.outbox {
		if st.outbox[i].ID == id {
			if status != "" {
				st.outbox[i].Status = status
			}
			if retry {
				st.outbox[i].RetryCount++
			}
		}
	}
	return nil
}

func (r memOutbox) MarkAsSent(_ context.Context, id int64) error {
	return r.setStatus(id, model.OutboxStatusSent, false)
}

func (r memOutbox) IncrementRetryCount(_ context.Context, id int64) error {
	return r.setStatus(id, "", true)
}

func (r memOutbox) MarkAsFailed(_ context.Context, id int64) error {
	return r.setStatus(id, model.OutboxStatusFailed, true)
}
