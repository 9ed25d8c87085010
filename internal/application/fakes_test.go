package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nextpie/sessiond/internal/domain"
)

// fakeLedger is an in-memory ports.Ledger with optional fault injection.
type fakeLedger struct {
	mu       sync.Mutex
	accounts map[domain.AccountID]domain.Account
	failAll  error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{accounts: make(map[domain.AccountID]domain.Account)}
}

func (l *fakeLedger) seed(account domain.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts[account.ID] = account
}

func (l *fakeLedger) Get(_ context.Context, id domain.AccountID) (domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll != nil {
		return domain.Account{}, l.failAll
	}
	account, ok := l.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}
	return account, nil
}

func (l *fakeLedger) Credits(_ context.Context, id domain.AccountID) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll != nil {
		return 0, l.failAll
	}
	return l.accounts[id].Credits, nil
}

func (l *fakeLedger) AdjustCredits(_ context.Context, id domain.AccountID, delta int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failAll != nil {
		return 0, l.failAll
	}
	account, ok := l.accounts[id]
	if !ok {
		account = domain.Account{ID: id}
	}
	account.Credits += delta
	if account.Credits < 0 {
		account.Credits = 0
	}
	l.accounts[id] = account
	return account.Credits, nil
}

func (l *fakeLedger) SetPremium(_ context.Context, id domain.AccountID, premium bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	account := l.accounts[id]
	account.ID = id
	account.Premium = premium
	l.accounts[id] = account
	return nil
}

func (l *fakeLedger) SetActive(_ context.Context, id domain.AccountID, active bool) error {
	return l.setFlag(id, func(a *domain.Account) { a.ActiveSession = active })
}

func (l *fakeLedger) SetStopRequested(_ context.Context, id domain.AccountID, requested bool) error {
	return l.setFlag(id, func(a *domain.Account) { a.StopRequested = requested })
}

func (l *fakeLedger) StopRequested(_ context.Context, id domain.AccountID) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, ok := l.accounts[id]
	if !ok {
		return false, domain.ErrAccountNotFound
	}
	return account.StopRequested, nil
}

func (l *fakeLedger) Delete(_ context.Context, id domain.AccountID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[id]; !ok {
		return domain.ErrAccountNotFound
	}
	delete(l.accounts, id)
	return nil
}

func (l *fakeLedger) List(_ context.Context) ([]domain.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	accounts := make([]domain.Account, 0, len(l.accounts))
	for _, account := range l.accounts {
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (l *fakeLedger) setFlag(id domain.AccountID, mutate func(*domain.Account)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	account, ok := l.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	mutate(&account)
	l.accounts[id] = account
	return nil
}

func (l *fakeLedger) account(id domain.AccountID) domain.Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.accounts[id]
}

// fakePanel records calls and serves a canned inventory.
type fakePanel struct {
	mu          sync.Mutex
	users       []domain.PanelUser
	servers     []domain.Server
	allocations []domain.Allocation

	listErr       error
	getErr        error
	suspendErr    error
	unsuspendErr  error
	createErr     error
	suspended     []int
	unsuspended   []int
	created       []domain.ServerSpec
	deletedSrv    []int
	deletedUsers  []int
	nextServerID  int
	deleteSrvErr  error
	deleteUserErr error
}

func newFakePanel() *fakePanel {
	return &fakePanel{nextServerID: 100}
}

func (p *fakePanel) ListUsers(context.Context) ([]domain.PanelUser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return append([]domain.PanelUser(nil), p.users...), nil
}

func (p *fakePanel) ListServers(context.Context) ([]domain.Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return append([]domain.Server(nil), p.servers...), nil
}

func (p *fakePanel) ListAllocations(context.Context, int) ([]domain.Allocation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listErr != nil {
		return nil, p.listErr
	}
	return append([]domain.Allocation(nil), p.allocations...), nil
}

func (p *fakePanel) GetServer(_ context.Context, id int) (domain.Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return domain.Server{}, p.getErr
	}
	for _, server := range p.servers {
		if server.ID == id {
			return server, nil
		}
	}
	return domain.Server{}, errors.New("server not found")
}

func (p *fakePanel) SuspendServer(_ context.Context, id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.suspendErr != nil {
		return p.suspendErr
	}
	p.suspended = append(p.suspended, id)
	return nil
}

func (p *fakePanel) UnsuspendServer(_ context.Context, id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsuspendErr != nil {
		return p.unsuspendErr
	}
	p.unsuspended = append(p.unsuspended, id)
	return nil
}

func (p *fakePanel) CreateServer(_ context.Context, spec domain.ServerSpec) (domain.Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.createErr != nil {
		return domain.Server{}, p.createErr
	}
	p.created = append(p.created, spec)
	p.nextServerID++
	return domain.Server{ID: p.nextServerID, UserID: spec.UserID, AllocationID: spec.AllocationID}, nil
}

func (p *fakePanel) DeleteServer(_ context.Context, id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteSrvErr != nil {
		return p.deleteSrvErr
	}
	p.deletedSrv = append(p.deletedSrv, id)
	return nil
}

func (p *fakePanel) DeleteUser(_ context.Context, id int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.deleteUserErr != nil {
		return p.deleteUserErr
	}
	p.deletedUsers = append(p.deletedUsers, id)
	return nil
}

func (p *fakePanel) suspendedIDs() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.suspended...)
}

// fakeNotifier records delivered messages per account.
type fakeNotifier struct {
	mu       sync.Mutex
	messages map[domain.AccountID][]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{messages: make(map[domain.AccountID][]string)}
}

func (n *fakeNotifier) Notify(_ context.Context, id domain.AccountID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[id] = append(n.messages[id], message)
}

func (n *fakeNotifier) sent(id domain.AccountID) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages[id]...)
}

type fakePresence struct {
	mu     sync.Mutex
	states []string
}

func (p *fakePresence) Set(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, status)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

// syncedCache builds a Cache already holding the given inventory.
func syncedCache(panel *fakePanel) *Cache {
	cache := NewCache(panel, &fakePresence{}, fixedClock{now: time.Unix(1_700_000_000, 0)}, 1)
	if err := cache.Refresh(context.Background()); err != nil {
		panic(err)
	}
	return cache
}
