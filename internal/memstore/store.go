// Package memstore is an in-memory domain.Store. Transactions are serialized and run
// against a private copy of the state that replaces the committed state only when
// the callback succeeds, so a failed transaction leaves no trace.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-consistency/internal/domain"
)

type cartKey struct {
	userID    string
	productID int64
}

type state struct {
	seq           int64
	categories    map[int64]domain.Category
	subcategories map[int64]domain.Subcategory
	products      map[int64]domain.Product
	cart          map[cartKey]domain.CartItem
	orders        map[string]domain.Order
	orderSeq      map[string]int64
	lineItems     map[int64]domain.OrderLineItem
}

func newState() *state {
	return &state{
		categories:    map[int64]domain.Category{},
		subcategories: map[int64]domain.Subcategory{},
		products:      map[int64]domain.Product{},
		cart:          map[cartKey]domain.CartItem{},
		orders:        map[string]domain.Order{},
		orderSeq:      map[string]int64{},
		lineItems:     map[int64]domain.OrderLineItem{},
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:           s.seq,
		categories:    make(map[int64]domain.Category, len(s.categories)),
		subcategories: make(map[int64]domain.Subcategory, len(s.subcategories)),
		products:      make(map[int64]domain.Product, len(s.products)),
		cart:          make(map[cartKey]domain.CartItem, len(s.cart)),
		orders:        make(map[string]domain.Order, len(s.orders)),
		orderSeq:      make(map[string]int64, len(s.orderSeq)),
		lineItems:     make(map[int64]domain.OrderLineItem, len(s.lineItems)),
	}
	for k, v := range s.categories {
		c.categories[k] = v
	}
	for k, v := range s.subcategories {
		c.subcategories[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.cart {
		c.cart[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderSeq {
		c.orderSeq[k] = v
	}
	for k, v := range s.lineItems {
		c.lineItems[k] = v
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

type Store struct {
	mu     sync.Mutex
	st     *state
	faults map[string]error
	now    func() time.Time
}

func New() *Store {
	return &Store{st: newState(), faults: map[string]error{}, now: time.Now}
}

// FailOn makes every later call of the named Tx write method fail with err.
// Passing a nil err removes the fault.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin: %w: %v", domain.ErrConcurrencyConflict, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	faults := make(map[string]error, len(s.faults))
	for k, v := range s.faults {
		faults[k] = v
	}
	tx := &tx{st: work, faults: faults, now: s.now().UTC()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit: %w: %v", domain.ErrConcurrencyConflict, err)
	}
	s.st = work
	return nil
}

type tx struct {
	st     *state
	faults map[string]error
	now    time.Time
}

func (t *tx) fault(method string) error {
	if err, ok := t.faults[method]; ok {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

var (
	_ domain.Store = (*Store)(nil)
	_ domain.Tx    = (*tx)(nil)
)
