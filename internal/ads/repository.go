package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/adstore/internal/models"
	"github.com/aura-webinar/adstore/pkg/kv"
)

// DefaultKey is the storage key holding the serialized ad collection.
const DefaultKey = "site_ads_v1"

const (
	opLoad   = "load"
	opDecode = "decode"
	opEncode = "encode"
	opSave   = "save"
	opUpdate = "update"
	opClear  = "clear"
)

// Repository persists the ad collection as one JSON array under a single key.
//
// Storage failures never escape: reads fall back to an empty collection and
// failed writes leave the stored value as it was. Both are logged, and
// recorded on the context's Failures when one is attached (see TrackFailures).
//
// Load-modify-save sequences (Append, Delete, Update) are serialized within
// the process. When the store implements kv.Updater they are also atomic
// against other processes sharing the key; otherwise the last save wins.
type Repository struct {
	mu     sync.Mutex
	store  kv.Store
	key    string
	logger *zap.Logger
	now    func() time.Time
	suffix func() string
}

// Option configures a Repository.
type Option func(*Repository)

// WithKey overrides DefaultKey.
func WithKey(key string) Option {
	return func(r *Repository) { r.key = key }
}

// WithClock sets the time source for ids and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDSuffix sets the random component of generated ids.
func WithIDSuffix(fn func() string) Option {
	return func(r *Repository) { r.suffix = fn }
}

// NewRepository creates an ads repository over store.
func NewRepository(store kv.Store, logger *zap.Logger, opts ...Option) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Repository{
		store:  store,
		key:    DefaultKey,
		logger: logger,
		now:    time.Now,
		suffix: randomSuffix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Key returns the storage key the collection lives under.
func (r *Repository) Key() string { return r.key }

// Load returns the stored collection in insertion order. A missing key,
// a read error, or a blob that is not a JSON array all yield an empty
// collection. Elements that do not decode as an Ad are logged and left out.
func (r *Repository) Load(ctx context.Context) []models.Ad {
	raw, ok, err := r.store.Get(ctx, r.key)
	if err != nil {
		r.fail(ctx, opLoad, err)
		return []models.Ad{}
	}
	return adsOf(r.decode(ctx, raw, ok))
}

// record is one stored element. Elements that do not decode as an Ad keep
// their raw JSON and are written back unchanged by mutations.
type record struct {
	ad  models.Ad
	raw json.RawMessage
}

func (rec record) id() string {
	if rec.raw == nil {
		return rec.ad.ID
	}
	var head struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(rec.raw, &head)
	return head.ID
}

func (rec record) MarshalJSON() ([]byte, error) {
	if rec.raw != nil {
		return rec.raw, nil
	}
	return json.Marshal(rec.ad)
}

func adsOf(recs []record) []models.Ad {
	ads := make([]models.Ad, 0, len(recs))
	for _, rec := range recs {
		if rec.raw == nil {
			ads = append(ads, rec.ad)
		}
	}
	return ads
}

// decode parses a stored blob. Only a blob that is not a JSON array counts
// as empty; a bad element is kept as raw JSON next to the good ones.
func (r *Repository) decode(ctx context.Context, raw string, ok bool) []record {
	if !ok || raw == "" {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		r.fail(ctx, opDecode, err)
		return nil
	}
	recs := make([]record, 0, len(elems))
	for i, el := range elems {
		var a models.Ad
		if string(el) == "null" {
			recs = append(recs, record{raw: el})
			continue
		}
		if err := json.Unmarshal(el, &a); err != nil {
			r.fail(ctx, opDecode, fmt.Errorf("element %d: %w", i, err))
			recs = append(recs, record{raw: el})
			continue
		}
		recs = append(recs, record{ad: a})
	}
	return recs
}

// mutate applies fn to the stored records and saves the result when fn
// reports a change. A failed read skips fn so an outage never overwrites
// data that was not seen.
func (r *Repository) mutate(ctx context.Context, fn func([]record) ([]record, bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.store.(kv.Updater); ok {
		err := u.Update(ctx, r.key, func(raw string, found bool) (string, bool, error) {
			next, changed := fn(r.decode(ctx, raw, found))
			if !changed {
				return "", false, nil
			}
			b, err := encode(next)
			if err != nil {
				r.fail(ctx, opEncode, err)
				return "", false, nil
			}
			return b, true, nil
		})
		if err != nil {
			r.fail(ctx, opUpdate, err)
		}
		return
	}

	raw, found, err := r.store.Get(ctx, r.key)
	if err != nil {
		r.fail(ctx, opLoad, err)
		return
	}
	next, changed := fn(r.decode(ctx, raw, found))
	if !changed {
		return
	}
	r.set(ctx, next)
}

func encode(recs []record) (string, error) {
	if recs == nil {
		recs = []record{}
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Repository) set(ctx context.Context, recs []record) {
	b, err := encode(recs)
	if err != nil {
		r.fail(ctx, opEncode, err)
		return
	}
	if err := r.store.Set(ctx, r.key, b); err != nil {
		r.fail(ctx, opSave, err)
	}
}

// Save replaces the stored collection with ads. nil is stored as an empty array.
func (r *Repository) Save(ctx context.Context, ads []models.Ad) {
	recs := make([]record, 0, len(ads))
	for _, a := range ads {
		recs = append(recs, record{ad: a})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set(ctx, recs)
}

// Create builds a new ad with a fresh id and the current time. It is not persisted.
func (r *Repository) Create(typ models.AdType, payload string, meta map[string]any) models.Ad {
	if meta == nil {
		meta = map[string]any{}
	}
	now := r.now()
	return models.Ad{
		ID:        fmt.Sprintf("ad_%d_%s", now.UnixMilli(), r.suffix()),
		Type:      typ,
		Payload:   payload,
		Meta:      meta,
		CreatedAt: now.UTC().Format(models.TimestampLayout),
	}
}

// CreateFromSource builds an ad from a URL (image, video) or literal text.
// It behaves exactly like Create for every type.
func (r *Repository) CreateFromSource(typ models.AdType, urlOrText string, meta map[string]any) models.Ad {
	return r.Create(typ, urlOrText, meta)
}

// Append adds a to the end of the stored collection.
func (r *Repository) Append(ctx context.Context, a models.Ad) {
	r.mutate(ctx, func(recs []record) ([]record, bool) {
		return append(recs, record{ad: a}), true
	})
}

// Delete removes the ad with id, if present, and saves the rest in order.
func (r *Repository) Delete(ctx context.Context, id string) {
	r.mutate(ctx, func(recs []record) ([]record, bool) {
		kept := recs[:0]
		for _, rec := range recs {
			if rec.id() != id {
				kept = append(kept, rec)
			}
		}
		return kept, true
	})
}

// Update merges patch into the ad with id and saves. Unknown ids are a no-op.
func (r *Repository) Update(ctx context.Context, id string, patch models.AdPatch) {
	r.mutate(ctx, func(recs []record) ([]record, bool) {
		for i := range recs {
			if recs[i].raw == nil && recs[i].ad.ID == id {
				patch.Apply(&recs[i].ad)
				return recs, true
			}
		}
		return recs, false
	})
}

// ClearAll removes the key itself, which differs from saving an empty collection.
func (r *Repository) ClearAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Remove(ctx, r.key); err != nil {
		r.fail(ctx, opClear, err)
	}
}

func (r *Repository) fail(ctx context.Context, op string, err error) {
	r.logger.Error("ads storage failure", zap.String("op", op), zap.String("key", r.key), zap.Error(err))
	if f := failuresFrom(ctx); f != nil {
		f.add(op, err)
	}
}

// randomSuffix returns 12 hex digits of a v4 UUID, all of them random bits.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
