package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/vendaslabs/orders-backend/pkg/config"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
	"github.com/vendaslabs/orders-backend/pkg/redis"
)

// fakeStore mirrors the server-side script semantics in Go so adapter logic
// can be exercised without a live Redis. The mutex stands in for the
// single-threaded script execution Redis guarantees.
type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]string
	downErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downErr != nil {
		return "", f.downErr
	}
	raw, ok := f.docs[key]
	if !ok {
		return "", redis.Nil
	}
	return raw, nil
}

func (f *fakeStore) ScanKeys(_ context.Context, pattern string, _ int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downErr != nil {
		return nil, f.downErr
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range f.docs {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (f *fakeStore) CatalogKey(sku string) string {
	return "vendas:catalog:product:" + sku
}

func (f *fakeStore) CatalogKeyPattern() string {
	return "vendas:catalog:product:*"
}

func (f *fakeStore) RunScript(_ context.Context, script *goredis.Script, keys []string, args ...any) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.downErr != nil {
		return nil, f.downErr
	}
	key := keys[0]
	raw, exists := f.docs[key]

	switch script {
	case reserveScript:
		if !exists {
			return []any{"not_found"}, nil
		}
		var doc Product
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		qty := toInt64(args[0])
		expected := toInt64(args[1])
		if doc.Version != expected {
			return []any{"conflict", fmt.Sprint(doc.Version)}, nil
		}
		if doc.Available < qty {
			return []any{"insufficient", fmt.Sprint(doc.Available)}, nil
		}
		doc.Available -= qty
		doc.Reserved += qty
		doc.Version++
		return f.write(key, doc)

	case releaseScript:
		if !exists {
			return []any{"not_found"}, nil
		}
		var doc Product
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		qty := toInt64(args[0])
		doc.Available += qty
		doc.Reserved -= qty
		if doc.Reserved < 0 {
			doc.Reserved = 0
		}
		doc.Version++
		return f.write(key, doc)

	case confirmScript:
		if !exists {
			return []any{"not_found"}, nil
		}
		var doc Product
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, err
		}
		qty := toInt64(args[0])
		doc.Reserved -= qty
		if doc.Reserved < 0 {
			doc.Reserved = 0
		}
		doc.Version++
		return f.write(key, doc)

	case upsertScript:
		var incoming Product
		if err := json.Unmarshal([]byte(args[0].(string)), &incoming); err != nil {
			return nil, err
		}
		expected := toInt64(args[1])
		if !exists {
			if expected != 0 {
				return []any{"conflict", "0"}, nil
			}
			incoming.Version = 1
		} else {
			var current Product
			if err := json.Unmarshal([]byte(raw), &current); err != nil {
				return nil, err
			}
			if current.Version != expected {
				return []any{"conflict", fmt.Sprint(current.Version)}, nil
			}
			incoming.Version = expected + 1
			incoming.Reserved = current.Reserved
		}
		return f.write(key, incoming)
	}
	return nil, fmt.Errorf("unknown script")
}

func (f *fakeStore) write(key string, doc Product) (any, error) {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	f.docs[key] = string(encoded)
	return []any{"ok", string(encoded)}, nil
}

func toInt64(value any) int64 {
	switch v := value.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func buildAdapter(t *testing.T, store Store) Adapter {
	t.Helper()
	adapter, err := NewAdapter(AdapterParams{
		Store:  store,
		Config: config.CatalogConfig{CallTimeout: time.Second},
	})
	if err != nil {
		t.Fatalf("build adapter: %v", err)
	}
	return adapter
}

func seedProduct(t *testing.T, adapter Adapter, sku string, available int64, price string) *Product {
	t.Helper()
	product, err := adapter.Upsert(context.Background(), UpsertRequest{
		SKU:       sku,
		Name:      "Product " + sku,
		Price:     decimal.RequireFromString(price),
		Available: available,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", sku, err)
	}
	return product
}

func TestReserveDecrementsAndBumpsVersion(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())
	seeded := seedProduct(t, adapter, "A", 2, "10.00")
	if seeded.Version != 1 {
		t.Fatalf("expected fresh document at version 1, got %d", seeded.Version)
	}

	product, err := adapter.Reserve(context.Background(), "A", 2, 1)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if product.Available != 0 {
		t.Fatalf("expected available 0, got %d", product.Available)
	}
	if product.Reserved != 2 {
		t.Fatalf("expected reserved 2, got %d", product.Reserved)
	}
	if product.Version != 2 {
		t.Fatalf("expected version 2, got %d", product.Version)
	}
}

func TestReserveRacingCallersNeverOversell(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())
	seedProduct(t, adapter, "A", 5, "10.00")

	const callers = 12
	var reserved atomic.Int64
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func() {
			defer wg.Done()
			for {
				product, err := adapter.Get(context.Background(), "A")
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				_, err = adapter.Reserve(context.Background(), "A", 1, product.Version)
				switch {
				case err == nil:
					reserved.Add(1)
					return
				case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
					continue
				case pkgerrors.IsCode(err, pkgerrors.CodeInsufficient):
					return
				default:
					t.Errorf("reserve: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if reserved.Load() != 5 {
		t.Fatalf("expected exactly 5 successful reserves, got %d", reserved.Load())
	}

	product, err := adapter.Get(context.Background(), "A")
	if err != nil {
		t.Fatal(err)
	}
	if product.Available != 0 || product.Reserved != 5 {
		t.Fatalf("racing reserves oversold: %+v", product)
	}
}

func TestReserveVersionMismatchConflicts(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())
	seedProduct(t, adapter, "A", 5, "10.00")

	_, err := adapter.Reserve(context.Background(), "A", 1, 99)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())
	seedProduct(t, adapter, "A", 1, "10.00")

	_, err := adapter.Reserve(context.Background(), "A", 2, 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficient) {
		t.Fatalf("expected insufficient, got %v", err)
	}

	// stock untouched by the failed attempt
	product, err := adapter.Get(context.Background(), "A")
	if err != nil {
		t.Fatal(err)
	}
	if product.Available != 1 || product.Version != 1 {
		t.Fatalf("failed reserve must not mutate: %+v", product)
	}
}

func TestReserveUnknownSKUNotFound(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())

	_, err := adapter.Reserve(context.Background(), "ghost", 1, 1)
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReleaseReturnsStock(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())
	seedProduct(t, adapter, "A", 2, "10.00")

	if _, err := adapter.Reserve(context.Background(), "A", 2, 1); err != nil {
		t.Fatal(err)
	}
	product, err := adapter.Release(context.Background(), "A", 2)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if product.Available != 2 || product.Reserved != 0 {
		t.Fatalf("release did not restore stock: %+v", product)
	}
}

func TestConfirmConsumesReservation(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())
	seedProduct(t, adapter, "A", 3, "10.00")

	if _, err := adapter.Reserve(context.Background(), "A", 2, 1); err != nil {
		t.Fatal(err)
	}
	product, err := adapter.Confirm(context.Background(), "A", 2)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if product.Available != 1 || product.Reserved != 0 {
		t.Fatalf("confirm must consume reservation without restoring stock: %+v", product)
	}
}

func TestUpsertUpdatePreservesReservations(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())
	seedProduct(t, adapter, "A", 5, "10.00")

	if _, err := adapter.Reserve(context.Background(), "A", 2, 1); err != nil {
		t.Fatal(err)
	}

	updated, err := adapter.Upsert(context.Background(), UpsertRequest{
		SKU:             "A",
		Name:            "Product A v2",
		Price:           decimal.RequireFromString("12.50"),
		Available:       10,
		ExpectedVersion: 2,
	})
	if err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	if updated.Reserved != 2 {
		t.Fatalf("update must not erase reservations, got %d", updated.Reserved)
	}
	if updated.Version != 3 {
		t.Fatalf("expected version 3, got %d", updated.Version)
	}
}

func TestUpsertCreateConflictsWhenExists(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())
	seedProduct(t, adapter, "A", 5, "10.00")

	_, err := adapter.Upsert(context.Background(), UpsertRequest{
		SKU:       "A",
		Name:      "Product A",
		Price:     decimal.RequireFromString("10.00"),
		Available: 5,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict creating existing product, got %v", err)
	}
}

func TestGetMapsStoreOutageToUnavailable(t *testing.T) {
	store := newFakeStore()
	adapter := buildAdapter(t, store)
	store.downErr = fmt.Errorf("connection refused")

	_, err := adapter.Get(context.Background(), "A")
	if !pkgerrors.IsCode(err, pkgerrors.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestListPaginates(t *testing.T) {
	adapter := buildAdapter(t, newFakeStore())
	for _, sku := range []string{"A", "B", "C"} {
		seedProduct(t, adapter, sku, 1, "5.00")
	}

	page, err := adapter.List(context.Background(), pagination.Params{Page: 1, Size: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	if page.Total != 3 {
		t.Fatalf("expected total 3, got %d", page.Total)
	}

	page, err = adapter.List(context.Background(), pagination.Params{Page: 2, Size: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected 1 item on last page, got %d", len(page.Items))
	}
}
