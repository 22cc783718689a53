package metrics

import (
	"context"
	"errors"

	"github.com/hitoshi/touristguide/internal/store"
)

// DuplicateRecorder は重複拒否を記録する。
type DuplicateRecorder interface {
	RecordDuplicate(collection string)
}

// InstrumentDatabase はコレクションの書き込みでErrDuplicateが返った回数を記録するデコレータを返す。
func InstrumentDatabase(db store.Database, rec DuplicateRecorder) store.Database {
	return &instrumentedDatabase{Database: db, rec: rec}
}

type instrumentedDatabase struct {
	store.Database
	rec DuplicateRecorder
}

func (d *instrumentedDatabase) Collection(name string) store.Collection {
	return &instrumentedCollection{Collection: d.Database.Collection(name), name: name, rec: d.rec}
}

type instrumentedCollection struct {
	store.Collection
	name string
	rec  DuplicateRecorder
}

func (c *instrumentedCollection) InsertOne(ctx context.Context, doc store.Document) (*store.InsertResult, error) {
	res, err := c.Collection.InsertOne(ctx, doc)
	c.observe(err)
	return res, err
}

func (c *instrumentedCollection) UpdateOne(ctx context.Context, f store.Filter, set store.Document) (*store.UpdateResult, error) {
	res, err := c.Collection.UpdateOne(ctx, f, set)
	c.observe(err)
	return res, err
}

func (c *instrumentedCollection) PushUnique(ctx context.Context, id, arrayField, keyField string, elem store.Document) (*store.UpdateResult, error) {
	res, err := c.Collection.PushUnique(ctx, id, arrayField, keyField, elem)
	c.observe(err)
	return res, err
}

func (c *instrumentedCollection) observe(err error) {
	if errors.Is(err, store.ErrDuplicate) {
		c.rec.RecordDuplicate(c.name)
	}
}
