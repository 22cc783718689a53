// Package memstore はstore.Databaseのインメモリ実装を提供する。
// 開発用ドライバ（STORE_DRIVER=memory）およびテストで使用する。
// 一意キーの扱いはMongoDBに合わせ、欠落フィールドはnullとして比較する。
package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/hitoshi/touristguide/internal/store"
)

type record struct {
	id  string
	doc store.Document
}

// Store はコレクション名ごとにドキュメントを挿入順で保持する。
type Store struct {
	mu          sync.RWMutex
	collections map[string][]*record
	uniqueKeys  map[string][]string
}

// New はStoreを生成する。uniqueKeysはコレクションごとの一意キー。
func New(uniqueKeys map[string][]string) *Store {
	keys := make(map[string][]string, len(uniqueKeys))
	for name, fields := range uniqueKeys {
		keys[name] = append([]string(nil), fields...)
	}
	return &Store{
		collections: make(map[string][]*record),
		uniqueKeys:  keys,
	}
}

// Collection は指定名のコレクションを返す。
func (s *Store) Collection(name string) store.Collection {
	return &collection{s: s, name: name}
}

// Ping は常に成功する。
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close は何もしない。
func (s *Store) Close(ctx context.Context) error { return nil }

// EnsureUniqueIndexes は一意キーを追加する。既存データの重複は検査しない。
func (s *Store) EnsureUniqueIndexes(ctx context.Context, keys map[string][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, fields := range keys {
		s.uniqueKeys[name] = append([]string(nil), fields...)
	}
	return nil
}

type collection struct {
	s    *Store
	name string
}

func (c *collection) Find(ctx context.Context, q store.Query) ([]store.Document, error) {
	if q.Skip < 0 {
		return nil, fmt.Errorf("memstore: skip must be non-negative: %d", q.Skip)
	}

	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	var matched []*record
	for _, rec := range c.s.collections[c.name] {
		if matches(rec, q.Filter) {
			matched = append(matched, rec)
		}
	}

	if q.SortField != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			cmp := compareValues(matched[i].doc[q.SortField], matched[j].doc[q.SortField])
			if q.SortDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	}

	if q.Skip >= int64(len(matched)) {
		return []store.Document{}, nil
	}
	matched = matched[q.Skip:]
	if q.Limit > 0 && q.Limit < int64(len(matched)) {
		matched = matched[:q.Limit]
	}

	out := make([]store.Document, 0, len(matched))
	for _, rec := range matched {
		doc, err := output(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *collection) FindOne(ctx context.Context, f store.Filter) (store.Document, error) {
	docs, err := c.Find(ctx, store.Query{Filter: f, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (c *collection) InsertOne(ctx context.Context, doc store.Document) (*store.InsertResult, error) {
	copied, err := deepCopy(doc.WithoutID())
	if err != nil {
		return nil, err
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	if c.conflicts(copied, "") {
		return nil, store.ErrDuplicate
	}

	rec := &record{id: uuid.NewString(), doc: copied}
	c.s.collections[c.name] = append(c.s.collections[c.name], rec)
	return &store.InsertResult{Acknowledged: true, InsertedID: rec.id}, nil
}

func (c *collection) UpdateOne(ctx context.Context, f store.Filter, set store.Document) (*store.UpdateResult, error) {
	patch, err := deepCopy(set.WithoutID())
	if err != nil {
		return nil, err
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	for _, rec := range c.s.collections[c.name] {
		if !matches(rec, f) {
			continue
		}

		updated := rec.doc.Clone()
		for k, v := range patch {
			updated[k] = v
		}
		if c.conflicts(updated, rec.id) {
			return nil, store.ErrDuplicate
		}

		modified := int64(0)
		if !sameValue(rec.doc, updated) {
			modified = 1
		}
		rec.doc = updated
		return &store.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: modified}, nil
	}

	return &store.UpdateResult{Acknowledged: true}, nil
}

func (c *collection) PushUnique(ctx context.Context, id, arrayField, keyField string, elem store.Document) (*store.UpdateResult, error) {
	copied, err := deepCopy(elem)
	if err != nil {
		return nil, err
	}

	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	rec := c.byID(id)
	if rec == nil {
		return &store.UpdateResult{Acknowledged: true}, nil
	}

	existing, _ := rec.doc[arrayField].([]any)
	for _, e := range existing {
		if m, ok := e.(map[string]any); ok && sameValue(m[keyField], copied[keyField]) {
			return nil, store.ErrDuplicate
		}
	}

	updated := rec.doc.Clone()
	updated[arrayField] = append(append([]any(nil), existing...), map[string]any(copied))
	rec.doc = updated
	return &store.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
}

func (c *collection) DeleteByID(ctx context.Context, id string) (*store.DeleteResult, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	records := c.s.collections[c.name]
	for i, rec := range records {
		if rec.id == id {
			c.s.collections[c.name] = append(records[:i:i], records[i+1:]...)
			return &store.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
		}
	}
	return &store.DeleteResult{Acknowledged: true}, nil
}

func (c *collection) Count(ctx context.Context, f store.Filter) (int64, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	var n int64
	for _, rec := range c.s.collections[c.name] {
		if matches(rec, f) {
			n++
		}
	}
	return n, nil
}

// byID はロック取得済みの状態で呼び出すこと。
func (c *collection) byID(id string) *record {
	for _, rec := range c.s.collections[c.name] {
		if rec.id == id {
			return rec
		}
	}
	return nil
}

// conflicts はdocの一意キーが自分以外（selfID）のドキュメントと重複するかを返す。
// ロック取得済みの状態で呼び出すこと。
func (c *collection) conflicts(doc store.Document, selfID string) bool {
	keys := c.s.uniqueKeys[c.name]
	if len(keys) == 0 {
		return false
	}
	for _, rec := range c.s.collections[c.name] {
		if rec.id == selfID {
			continue
		}
		same := true
		for _, k := range keys {
			if !sameValue(rec.doc[k], doc[k]) {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func matches(rec *record, f store.Filter) bool {
	for k, want := range f.Equals {
		if k == store.IDField {
			if rec.id != fmt.Sprint(want) {
				return false
			}
			continue
		}
		got, ok := rec.doc[k]
		if !ok || !sameValue(got, want) {
			return false
		}
	}

	if f.Search != nil && f.Search.Value != "" {
		s, ok := rec.doc[f.Search.Field].(string)
		if !ok || !strings.Contains(strings.ToLower(s), strings.ToLower(f.Search.Value)) {
			return false
		}
	}
	return true
}

// sameValue はJSON表現で値を比較する。数値型の違い（json.Numberとint等）は吸収される。
func sameValue(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

func compareValues(a, b any) int {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func output(rec *record) (store.Document, error) {
	doc, err := deepCopy(rec.doc)
	if err != nil {
		return nil, err
	}
	doc[store.IDField] = rec.id
	return doc, nil
}

// deepCopy はJSONを経由してドキュメントを複製する。数値はjson.Numberとして保持する。
func deepCopy(d store.Document) (store.Document, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("memstore: failed to encode document: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()

	out := store.Document{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("memstore: failed to decode document: %w", err)
	}
	if out == nil {
		out = store.Document{}
	}
	return out, nil
}

var (
	_ store.Database     = (*Store)(nil)
	_ store.IndexEnsurer = (*Store)(nil)
)
