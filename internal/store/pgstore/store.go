// Package pgstore はPostgreSQLのJSONBカラムを使ったstore.Databaseの実装を提供する。
// 全コレクションをdocumentsテーブル（collection, id, doc）に格納し、
// 重複判定キーはマイグレーションで作成する部分ユニークインデックスで保証する。
package pgstore

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/touristguide/internal/store"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// Store はPostgreSQLを使用したドキュメントストア。
type Store struct {
	db *sql.DB
}

// New はStoreを生成する。スキーマはdatabase.RunMigrationsで作成済みであること。
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Collection は指定名のコレクションを返す。
func (s *Store) Collection(name string) store.Collection {
	return &collection{db: s.db, name: name}
}

// Ping はデータベースへの疎通を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close は接続プールを閉じる。
func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

type collection struct {
	db   *sql.DB
	name string
}

func (c *collection) Find(ctx context.Context, q store.Query) ([]store.Document, error) {
	w, err := buildWhere(c.name, q.Filter)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT id, doc FROM documents WHERE ")
	sb.WriteString(w.sql())
	sb.WriteString(" ORDER BY ")
	if q.SortField != "" {
		dir := "ASC NULLS FIRST"
		if q.SortDesc {
			dir = "DESC NULLS LAST"
		}
		fmt.Fprintf(&sb, "doc->(%s::text) %s, ", w.arg(q.SortField), dir)
	}
	sb.WriteString("created_at, id")
	// 負のOFFSETはPostgreSQLのエラーとして呼び出し元へ返す
	if q.Skip != 0 {
		fmt.Fprintf(&sb, " OFFSET %s", w.arg(q.Skip))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %s", w.arg(q.Limit))
	}

	rows, err := c.db.QueryContext(ctx, sb.String(), w.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find documents in %s: %w", c.name, err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		doc, err := decode(id, raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
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
	raw, err := json.Marshal(doc.WithoutID())
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	id := uuid.NewString()
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3::jsonb)`,
		c.name, id, string(raw),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to insert document into %s: %w", c.name, err)
	}

	return &store.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

// UpdateOne は対象行をロックし、doc || set で上書きする。
// 上書き後も内容が変わらない場合はmatched=1, modified=0となる。
func (c *collection) UpdateOne(ctx context.Context, f store.Filter, set store.Document) (*store.UpdateResult, error) {
	w, err := buildWhere(c.name, f)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(set.WithoutID())
	if err != nil {
		return nil, fmt.Errorf("failed to encode update: %w", err)
	}
	patch := w.arg(string(raw))

	query := fmt.Sprintf(`
		WITH target AS (
			SELECT id, doc FROM documents
			WHERE %s
			ORDER BY created_at, id
			LIMIT 1
			FOR UPDATE
		), updated AS (
			UPDATE documents d
			SET doc = d.doc || %[2]s::jsonb, updated_at = now()
			FROM target
			WHERE d.collection = $1 AND d.id = target.id
				AND (target.doc || %[2]s::jsonb) <> target.doc
			RETURNING d.id
		)
		SELECT (SELECT count(*) FROM target), (SELECT count(*) FROM updated)`,
		w.sql(), patch,
	)

	res := &store.UpdateResult{Acknowledged: true}
	err = c.db.QueryRowContext(ctx, query, w.args...).Scan(&res.MatchedCount, &res.ModifiedCount)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("failed to update document in %s: %w", c.name, err)
	}

	return res, nil
}

// PushUnique は配列にkeyFieldが同じ要素が含まれない場合に限り追加する。
// 判定はUPDATEのWHERE句で行うため、同時リクエストでも重複しない。
func (c *collection) PushUnique(ctx context.Context, id, arrayField, keyField string, elem store.Document) (*store.UpdateResult, error) {
	rawElem, err := json.Marshal(elem)
	if err != nil {
		return nil, fmt.Errorf("failed to encode element: %w", err)
	}
	rawKey, err := json.Marshal(elem[keyField])
	if err != nil {
		return nil, fmt.Errorf("failed to encode key: %w", err)
	}

	result, err := c.db.ExecContext(ctx, `
		UPDATE documents
		SET doc = jsonb_set(
				doc,
				ARRAY[$3::text],
				COALESCE(doc->($3::text), '[]'::jsonb) || jsonb_build_array($4::jsonb),
				true
			),
			updated_at = now()
		WHERE collection = $1 AND id = $2
			AND NOT (COALESCE(doc->($3::text), '[]'::jsonb) @> jsonb_build_array(jsonb_build_object($5::text, $6::jsonb)))`,
		c.name, id, arrayField, string(rawElem), keyField, string(rawKey),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to push into %s.%s: %w", c.name, arrayField, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 1 {
		return &store.UpdateResult{Acknowledged: true, MatchedCount: 1, ModifiedCount: 1}, nil
	}

	var exists bool
	err = c.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		c.name, id,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check document existence: %w", err)
	}
	if exists {
		return nil, store.ErrDuplicate
	}

	return &store.UpdateResult{Acknowledged: true}, nil
}

func (c *collection) DeleteByID(ctx context.Context, id string) (*store.DeleteResult, error) {
	result, err := c.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		c.name, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to delete document from %s: %w", c.name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return &store.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

func (c *collection) Count(ctx context.Context, f store.Filter) (int64, error) {
	w, err := buildWhere(c.name, f)
	if err != nil {
		return 0, err
	}

	var n int64
	err = c.db.QueryRowContext(ctx, "SELECT count(*) FROM documents WHERE "+w.sql(), w.args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents in %s: %w", c.name, err)
	}

	return n, nil
}

// where はプレースホルダ番号を採番しながらWHERE句を組み立てる。
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) sql() string {
	return strings.Join(w.conds, " AND ")
}

// buildWhere はFilterをWHERE句に変換する。$1は常にコレクション名。
// "_id"以外の等価条件はJSONBの包含（doc @> {...}）で評価する。
func buildWhere(collection string, f store.Filter) (*where, error) {
	w := &where{}
	w.conds = append(w.conds, "collection = "+w.arg(collection))

	contains := make(map[string]any, len(f.Equals))
	for k, v := range f.Equals {
		if k == store.IDField {
			w.conds = append(w.conds, "id = "+w.arg(fmt.Sprint(v)))
			continue
		}
		contains[k] = v
	}
	if len(contains) > 0 {
		raw, err := json.Marshal(contains)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		w.conds = append(w.conds, "doc @> "+w.arg(string(raw))+"::jsonb")
	}

	if f.Search != nil && f.Search.Value != "" {
		field := w.arg(f.Search.Field)
		pattern := w.arg("%" + escapeLike(f.Search.Value) + "%")
		w.conds = append(w.conds, fmt.Sprintf("doc->>(%s::text) ILIKE %s", field, pattern))
	}

	return w, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike はLIKEのワイルドカードをエスケープする。
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func decode(id string, raw []byte) (store.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	doc := store.Document{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	if doc == nil {
		doc = store.Document{}
	}
	doc[store.IDField] = id
	return doc, nil
}

var _ store.Database = (*Store)(nil)
