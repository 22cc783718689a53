// Package store はドキュメントストアの抽象を定義する。
//
// ハンドラーは検索・挿入・更新・削除・件数取得をほぼそのまま委譲するため、
// コレクションはスキーマを持たないDocument（JSONオブジェクト）を扱う。
// 実装はmongostore（MongoDB）、pgstore（PostgreSQL JSONB）、memstore（インメモリ）。
package store

import (
	"context"
	"errors"
)

// IDField はドキュメントIDのフィールド名。
const IDField = "_id"

// ErrDuplicate は一意制約（重複判定キー）違反を表す。
var ErrDuplicate = errors.New("duplicate key")

// Document はスキーマを持たないJSONオブジェクト。
// 読み出し時は常に文字列の"_id"を含む。
type Document map[string]any

// String はフィールドの文字列値を返す。文字列でない場合は空文字列を返す。
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Clone はトップレベルをコピーしたDocumentを返す。
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// WithoutID は"_id"を除いたコピーを返す。IDはストアが採番するため、
// クライアントが送ってきた値は書き込みに使わない。
func (d Document) WithoutID() Document {
	out := d.Clone()
	delete(out, IDField)
	return out
}

// Match は大文字小文字を区別しない部分一致条件。
type Match struct {
	Field string
	Value string
}

// Filter は検索条件。Equalsはトップレベルフィールドの完全一致（型も一致）、
// Searchは任意の部分一致条件。Equalsの"_id"はIDとして解釈される。
type Filter struct {
	Equals map[string]any
	Search *Match
}

// Eq は単一フィールドの完全一致Filterを生成する。
func Eq(field string, value any) Filter {
	return Filter{Equals: map[string]any{field: value}}
}

// ByID はID一致のFilterを生成する。
func ByID(id string) Filter {
	return Eq(IDField, id)
}

// Query は検索クエリ。Limitが0以下の場合は件数制限なし。
// Skipは検証せずにストアへ渡すため、負の値はストアのエラーとなる。
type Query struct {
	Filter    Filter
	Skip      int64
	Limit     int64
	SortField string
	SortDesc  bool
}

// InsertResult は挿入結果。JSONフィールド名は既存クライアントに合わせる。
type InsertResult struct {
	Acknowledged bool   `json:"acknowledged"`
	InsertedID   string `json:"insertedId"`
}

// UpdateResult は更新結果。
type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult は削除結果。
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}

// Collection はドキュメントコレクションへの操作。
// 存在しない、またはドライバが解釈できないIDは「該当なし」として扱う。
type Collection interface {
	// Find はクエリに一致するドキュメントを返す。該当なしの場合は空スライスを返す。
	Find(ctx context.Context, q Query) ([]Document, error)

	// FindOne はフィルタに一致する最初のドキュメントを返す。見つからない場合はnilを返す。
	FindOne(ctx context.Context, f Filter) (Document, error)

	// InsertOne はドキュメントを挿入する。一意制約違反はErrDuplicateを返す。
	InsertOne(ctx context.Context, doc Document) (*InsertResult, error)

	// UpdateOne はフィルタに一致する最初のドキュメントにsetの各フィールドを上書きする。
	// 一意制約違反はErrDuplicateを返す。
	UpdateOne(ctx context.Context, f Filter, set Document) (*UpdateResult, error)

	// PushUnique は配列フィールドarrayFieldに、keyFieldの値が同じ要素が無い場合に限りelemを追加する。
	// 判定と追加は単一の条件付き更新として原子的に行う。
	// 同じキーの要素が既に存在する場合はErrDuplicate、ドキュメントが無い場合はMatchedCount=0を返す。
	PushUnique(ctx context.Context, id, arrayField, keyField string, elem Document) (*UpdateResult, error)

	// DeleteByID は指定IDのドキュメントを削除する。
	DeleteByID(ctx context.Context, id string) (*DeleteResult, error)

	// Count はフィルタに一致するドキュメント数を返す。
	Count(ctx context.Context, f Filter) (int64, error)
}

// Database はコレクションの集合。
type Database interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// IndexEnsurer は一意インデックスを起動時に作成できるストア。
// PostgreSQLはマイグレーションで作成するため実装しない。
type IndexEnsurer interface {
	EnsureUniqueIndexes(ctx context.Context, keys map[string][]string) error
}
