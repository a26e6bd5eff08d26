// Package memory is an in-process store with the same transactional contract
// as the Postgres stores. A unit of work holds the store exclusively and is
// rolled back to a snapshot when it fails.
package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/domain"
	"github.com/carlosjeferson/e-commerce/internal/events"
)

type txKey struct{}

type state struct {
	products   map[string]domain.Product
	orders     map[string]domain.Order
	orderIDs   []string
	users      map[string]domain.User
	outbox     []events.Record
	nextOutbox int64
}

func (s *state) clone() *state {
	c := &state{
		products:   make(map[string]domain.Product, len(s.products)),
		orders:     make(map[string]domain.Order, len(s.orders)),
		orderIDs:   slices.Clone(s.orderIDs),
		users:      make(map[string]domain.User, len(s.users)),
		outbox:     slices.Clone(s.outbox),
		nextOutbox: s.nextOutbox,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func New() *Store {
	return &Store{st: &state{
		products:   make(map[string]domain.Product),
		orders:     make(map[string]domain.Order),
		users:      make(map[string]domain.User),
		nextOutbox: 1,
	}}
}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock acquires the store unless ctx already runs inside one of its units of work.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	err := fn(context.WithValue(ctx, txKey{}, s))
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (domain.Product, error) {
	defer s.lock(ctx)()
	p, ok := s.st.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// LockProducts is a no-op: a unit of work already holds the whole store.
func (s *Store) LockProducts(ctx context.Context, ids []string) error {
	return ctx.Err()
}

func (s *Store) DecrementStockIfSufficient(ctx context.Context, id string, quantity int) error {
	defer s.lock(ctx)()
	p, ok := s.st.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.Stock < quantity {
		return domain.ErrInsufficientStock
	}
	p.Stock -= quantity
	p.UpdatedAt = time.Now().UTC()
	s.st.products[id] = p
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Product, error) {
	defer s.lock(ctx)()
	out := make([]domain.Product, 0, len(s.st.products))
	for _, p := range s.st.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Create(ctx context.Context, p domain.Product) error {
	defer s.lock(ctx)()
	if p.Stock < 0 {
		return domain.ErrInvalidStock
	}
	s.st.products[p.ID] = p
	return nil
}

func (s *Store) Update(ctx context.Context, p domain.Product) error {
	defer s.lock(ctx)()
	if _, ok := s.st.products[p.ID]; !ok {
		return domain.ErrProductNotFound
	}
	if p.Stock < 0 {
		return domain.ErrInvalidStock
	}
	s.st.products[p.ID] = p
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	defer s.lock(ctx)()
	if _, ok := s.st.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	for _, o := range s.st.orders {
		for _, li := range o.Items {
			if li.ProductID == id {
				return domain.ErrProductInUse
			}
		}
	}
	delete(s.st.products, id)
	return nil
}

// Orders returns the order side of the store.
func (s *Store) Orders() *OrderStore {
	return &OrderStore{s: s}
}

// OrderStore shares state and locking with its parent Store. It exists
// because products and orders both expose Create and GetByID.
type OrderStore struct {
	s *Store
}

func (o *OrderStore) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	defer o.s.lock(ctx)()
	if _, exists := o.s.st.orders[order.ID]; exists {
		return domain.Order{}, &domain.StorageError{Op: "create order", Err: errDuplicateOrder}
	}
	order.Items = slices.Clone(order.Items)
	o.s.st.orders[order.ID] = order
	o.s.st.orderIDs = append(o.s.st.orderIDs, order.ID)
	return copyOrder(order), nil
}

func (o *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	defer o.s.lock(ctx)()
	order, ok := o.s.st.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return copyOrder(order), nil
}

func (o *OrderStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	defer o.s.lock(ctx)()
	var out []domain.Order
	for i := len(o.s.st.orderIDs) - 1; i >= 0; i-- {
		order := o.s.st.orders[o.s.st.orderIDs[i]]
		if order.UserID == userID {
			out = append(out, copyOrder(order))
		}
	}
	return out, nil
}

// Count reports how many orders were persisted.
func (o *OrderStore) Count() int {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return len(o.s.st.orderIDs)
}

func copyOrder(order domain.Order) domain.Order {
	order.Items = slices.Clone(order.Items)
	return order
}

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	defer s.lock(ctx)()
	for _, existing := range s.st.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return domain.ErrEmailTaken
		}
	}
	s.st.users[u.ID] = u
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	defer s.lock(ctx)()
	for _, u := range s.st.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (s *Store) UpdateUserRole(ctx context.Context, id string, role domain.Role) error {
	defer s.lock(ctx)()
	u, ok := s.st.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Role = role
	s.st.users[id] = u
	return nil
}

func (s *Store) Insert(ctx context.Context, rec events.Record) error {
	defer s.lock(ctx)()
	rec.ID = s.st.nextOutbox
	s.st.nextOutbox++
	s.st.outbox = append(s.st.outbox, rec)
	return nil
}

func (s *Store) FetchPending(ctx context.Context, limit int) ([]events.Record, error) {
	defer s.lock(ctx)()
	var out []events.Record
	for _, rec := range s.st.outbox {
		if rec.SentAt != nil {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkSent(ctx context.Context, id int64) error {
	defer s.lock(ctx)()
	for i := range s.st.outbox {
		if s.st.outbox[i].ID == id {
			now := time.Now().UTC()
			s.st.outbox[i].SentAt = &now
			return nil
		}
	}
	return nil
}
