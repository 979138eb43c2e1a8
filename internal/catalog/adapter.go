package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vendaslabs/orders-backend/pkg/config"
	pkgerrors "github.com/vendaslabs/orders-backend/pkg/errors"
	"github.com/vendaslabs/orders-backend/pkg/pagination"
	"github.com/vendaslabs/orders-backend/pkg/redis"
)

// Store is the document-store surface the adapter needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	RunScript(ctx context.Context, script *goredis.Script, keys []string, args ...any) (any, error)
	ScanKeys(ctx context.Context, pattern string, limit int64) ([]string, error)
	CatalogKey(sku string) string
	CatalogKeyPattern() string
}

// Adapter exposes the catalog document operations used by the orchestrator,
// the relay, and the product administration endpoints.
type Adapter interface {
	Get(ctx context.Context, sku string) (*Product, error)
	Reserve(ctx context.Context, sku string, quantity int64, expectedVersion int64) (*Product, error)
	Release(ctx context.Context, sku string, quantity int64) (*Product, error)
	Confirm(ctx context.Context, sku string, quantity int64) (*Product, error)
	Upsert(ctx context.Context, req UpsertRequest) (*Product, error)
	List(ctx context.Context, params pagination.Params) (pagination.PageResult[Product], error)
}

type adapter struct {
	store Store
	cfg   config.CatalogConfig
	now   func() time.Time
}

// AdapterParams bundles the dependencies required to build a catalog adapter.
type AdapterParams struct {
	Store  Store
	Config config.CatalogConfig

	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewAdapter constructs a catalog adapter with the provided dependencies.
func NewAdapter(params AdapterParams) (Adapter, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("document store is required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &adapter{
		store: params.Store,
		cfg:   params.Config,
		now:   now,
	}, nil
}

func (a *adapter) Get(ctx context.Context, sku string) (*Product, error) {
	ctx, cancel := a.callContext(ctx)
	defer cancel()

	raw, err := a.store.Get(ctx, a.store.CatalogKey(sku))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", sku))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "catalog get")
	}
	return decodeProduct(raw)
}

// Reserve moves quantity from available to reserved, guarded by the expected
// document version. The decrement and version bump happen in one store-side
// operation.
func (a *adapter) Reserve(ctx context.Context, sku string, quantity int64, expectedVersion int64) (*Product, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	result, err := a.store.RunScript(ctx, reserveScript,
		[]string{a.store.CatalogKey(sku)},
		quantity, expectedVersion, a.now().Format(time.RFC3339Nano))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "catalog reserve")
	}
	return a.interpretResult(sku, quantity, result)
}

// Release is the compensating action for a reservation. It is not guarded by
// a version; idempotency per outbox entry is enforced by the caller.
func (a *adapter) Release(ctx context.Context, sku string, quantity int64) (*Product, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	result, err := a.store.RunScript(ctx, releaseScript,
		[]string{a.store.CatalogKey(sku)},
		quantity, a.now().Format(time.RFC3339Nano))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "catalog release")
	}
	return a.interpretResult(sku, quantity, result)
}

// Confirm consumes a reservation once the order is paid; the reserved count
// drops and the stock never returns to available.
func (a *adapter) Confirm(ctx context.Context, sku string, quantity int64) (*Product, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	result, err := a.store.RunScript(ctx, confirmScript,
		[]string{a.store.CatalogKey(sku)},
		quantity, a.now().Format(time.RFC3339Nano))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "catalog confirm")
	}
	return a.interpretResult(sku, quantity, result)
}

// Upsert creates or replaces a product document. Creation requires
// ExpectedVersion 0; updates require the current version. The reserved count
// survives updates so an admin edit cannot erase in-flight reservations.
func (a *adapter) Upsert(ctx context.Context, req UpsertRequest) (*Product, error) {
	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if req.Available < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "available must be non-negative")
	}
	if req.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}

	doc := Product{
		SKU:        sku,
		Name:       req.Name,
		Attributes: req.Attributes,
		Price:      req.Price,
		Available:  req.Available,
		UpdatedAt:  a.now(),
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode product")
	}

	ctx, cancel := a.callContext(ctx)
	defer cancel()

	result, err := a.store.RunScript(ctx, upsertScript,
		[]string{a.store.CatalogKey(sku)},
		string(encoded), req.ExpectedVersion)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "catalog upsert")
	}
	return a.interpretResult(sku, 0, result)
}

func (a *adapter) List(ctx context.Context, params pagination.Params) (pagination.PageResult[Product], error) {
	ctx, cancel := a.callContext(ctx)
	defer cancel()

	keys, err := a.store.ScanKeys(ctx, a.store.CatalogKeyPattern(), 200)
	if err != nil {
		return pagination.PageResult[Product]{}, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "catalog scan")
	}
	sort.Strings(keys)

	normalized := params.Normalize()
	start := normalized.Offset()
	end := start + normalized.Limit()
	if start > len(keys) {
		start = len(keys)
	}
	if end > len(keys) {
		end = len(keys)
	}

	products := make([]Product, 0, end-start)
	for _, key := range keys[start:end] {
		raw, err := a.store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return pagination.PageResult[Product]{}, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "catalog get")
		}
		product, err := decodeProduct(raw)
		if err != nil {
			return pagination.PageResult[Product]{}, err
		}
		products = append(products, *product)
	}

	return pagination.NewPageResult(products, params, int64(len(keys))), nil
}

func (a *adapter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.cfg.CallTimeout)
}

// interpretResult maps a script's status tuple onto typed errors.
func (a *adapter) interpretResult(sku string, quantity int64, result any) (*Product, error) {
	parts, ok := result.([]any)
	if !ok || len(parts) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "unexpected catalog script result")
	}
	tag, _ := parts[0].(string)

	switch tag {
	case "ok":
		if len(parts) < 2 {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog script returned no document")
		}
		raw, _ := parts[1].(string)
		return decodeProduct(raw)

	case "not_found":
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", sku))

	case "conflict":
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("product %s version changed", sku))

	case "insufficient":
		available := ""
		if len(parts) > 1 {
			available, _ = parts[1].(string)
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficient,
			fmt.Sprintf("product %s has insufficient stock", sku)).
			WithDetails(map[string]any{"sku": sku, "requested": quantity, "available": available})

	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal,
			fmt.Sprintf("unknown catalog script status %q", tag))
	}
}

func decodeProduct(raw string) (*Product, error) {
	var product Product
	if err := json.Unmarshal([]byte(raw), &product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode product document")
	}
	return &product, nil
}
