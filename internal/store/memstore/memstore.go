// Package memstore is an in-memory store.Store. Transactions are serialized
// behind one mutex and roll back by restoring a snapshot, which gives tests the
// same all-or-nothing behaviour as the Postgres implementation.
package memstore

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/store"

	"github.com/google/uuid"
)

var _ store.Store = (*Store)(nil)

type dataset struct {
	products map[uuid.UUID]models.Product
	variants map[uuid.UUID]models.Variant
	orders   map[uuid.UUID]models.Order
	payments map[uuid.UUID]models.Payment
	coupons  map[uuid.UUID]models.Coupon
	usages   map[uuid.UUID]models.CouponUsage
	vendors  map[uuid.UUID]models.Vendor
	sales    map[uuid.UUID]models.VendorSale
	payouts  map[uuid.UUID]models.VendorPayout
	recon    map[uuid.UUID]models.ReconciliationItem
	wishlist map[uuid.UUID]models.WishlistItem
	reviews  map[uuid.UUID]models.Review
}

func newDataset() *dataset {
	return &dataset{
		products: map[uuid.UUID]models.Product{},
		variants: map[uuid.UUID]models.Variant{},
		orders:   map[uuid.UUID]models.Order{},
		payments: map[uuid.UUID]models.Payment{},
		coupons:  map[uuid.UUID]models.Coupon{},
		usages:   map[uuid.UUID]models.CouponUsage{},
		vendors:  map[uuid.UUID]models.Vendor{},
		sales:    map[uuid.UUID]models.VendorSale{},
		payouts:  map[uuid.UUID]models.VendorPayout{},
		recon:    map[uuid.UUID]models.ReconciliationItem{},
		wishlist: map[uuid.UUID]models.WishlistItem{},
		reviews:  map[uuid.UUID]models.Review{},
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		products: maps.Clone(d.products),
		variants: maps.Clone(d.variants),
		orders:   maps.Clone(d.orders),
		payments: maps.Clone(d.payments),
		coupons:  maps.Clone(d.coupons),
		usages:   maps.Clone(d.usages),
		vendors:  maps.Clone(d.vendors),
		sales:    maps.Clone(d.sales),
		payouts:  maps.Clone(d.payouts),
		recon:    maps.Clone(d.recon),
		wishlist: maps.Clone(d.wishlist),
		reviews:  maps.Clone(d.reviews),
	}
}

// Store keeps every table in maps guarded by a single mutex.
type Store struct {
	*queries

	mu       sync.Mutex
	data     *dataset
	writes   atomic.Int64
	last     time.Time
	failures map[string]error
}

// New returns an empty store.
func New() *Store {
	s := &Store{data: newDataset(), failures: map[string]error{}}
	s.queries = &queries{s: s, d: s.data}
	return s
}

// WithTx holds the store lock for the whole of fn and restores the prior
// state when fn fails or ctx is done.
func (s *Store) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	err := fn(&queries{s: s, d: s.data, inTx: true})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		*s.data = *snapshot
		return err
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Mutations counts write calls issued against the store, including writes
// later rolled back.
func (s *Store) Mutations() int64 {
	return s.writes.Load()
}

// FailOn makes the named write operation return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// now returns strictly increasing timestamps so ordering by time is stable.
func (s *Store) now() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}
