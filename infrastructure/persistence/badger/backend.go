package badger

import (
	"context"
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"bfdb/application/ports"
	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
	"bfdb/infrastructure/persistence/abstractions"
	"bfdb/infrastructure/persistence/schema"
	pkgerrors "bfdb/pkg/errors"
)

// Key layout:
//
//	item/<gid>               versioned JSON of the item
//	org/<oid>/<gid>          membership index
//	sid/<oid>/<sid>/<gid>    edges by source
//	tid/<oid>/<tid>/<gid>    edges by target
const (
	itemPrefix   = "item/"
	orgPrefix    = "org/"
	sourcePrefix = "sid/"
	targetPrefix = "tid/"
)

func itemKey(gid valueobjects.BfGid) []byte {
	return []byte(itemPrefix + string(gid))
}

func orgIndexPrefix(oid valueobjects.BfGid) []byte {
	return []byte(orgPrefix + string(oid) + "/")
}

func sourceIndexPrefix(oid, sid valueobjects.BfGid) []byte {
	return []byte(sourcePrefix + string(oid) + "/" + string(sid) + "/")
}

func targetIndexPrefix(oid, tid valueobjects.BfGid) []byte {
	return []byte(targetPrefix + string(oid) + "/" + string(tid) + "/")
}

// indexKeys lists every secondary key pointing at md
func indexKeys(md entities.Metadata) [][]byte {
	keys := [][]byte{append(orgIndexPrefix(md.BfOid), md.BfGid...)}
	if !md.BfSid.IsZero() {
		keys = append(keys, append(sourceIndexPrefix(md.BfOid, md.BfSid), md.BfGid...))
	}
	if !md.BfTid.IsZero() {
		keys = append(keys, append(targetIndexPrefix(md.BfOid, md.BfTid), md.BfGid...))
	}
	return keys
}

// Backend implements ports.Backend on Badger
type Backend struct {
	cfg    Config
	logger *zap.Logger
	codec  *schema.Evolution

	mu sync.RWMutex
	db *badger.DB
	gc *gcRunner
}

var _ ports.Backend = (*Backend)(nil)

// NewBackend creates a backend; Initialize opens the database
func NewBackend(cfg Config, logger *zap.Logger) (*Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	codec, err := schema.NewEvolution(schema.ItemVersion)
	if err != nil {
		return nil, err
	}
	return &Backend{
		cfg:    cfg,
		logger: logger.Named("badger"),
		codec:  codec,
	}, nil
}

// Initialize opens the database and starts value-log GC
func (b *Backend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db != nil {
		return nil
	}

	db, err := open(b.cfg, b.logger)
	if err != nil {
		return pkgerrors.NewDatabaseError("open", err)
	}

	if b.cfg.GCInterval > 0 && !b.cfg.InMemory {
		runner, err := newGCRunner(db, b.cfg.GCInterval, b.cfg.GCDiscardRatio, b.logger)
		if err != nil {
			db.Close()
			return pkgerrors.NewDatabaseError("start gc", err)
		}
		runner.start()
		b.gc = runner
	}

	b.db = db
	b.logger.Info("Opened store",
		zap.String("path", b.cfg.Path),
		zap.Bool("inMemory", b.cfg.InMemory),
	)
	return nil
}

// Close stops GC and closes the database
func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return nil
	}
	if b.gc != nil {
		b.gc.stop()
		b.gc = nil
	}
	err := b.db.Close()
	b.db = nil
	if err != nil {
		return pkgerrors.NewDatabaseError("close", err)
	}
	return nil
}

func (b *Backend) handle() (*badger.DB, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.db == nil {
		return nil, pkgerrors.NewUnavailableError("badger store").WithCode(pkgerrors.CodeBackendClosed)
	}
	return b.db, nil
}

// load reads one item inside txn; missing items yield badger.ErrKeyNotFound
func (b *Backend) load(txn *badger.Txn, gid valueobjects.BfGid) (entities.Item, error) {
	entry, err := txn.Get(itemKey(gid))
	if err != nil {
		return entities.Item{}, err
	}

	var item entities.Item
	err = entry.Value(func(val []byte) error {
		var upgraded bool
		var decodeErr error
		item, upgraded, decodeErr = b.codec.Decode(val)
		if upgraded {
			b.logger.Debug("Read item from an older schema", zap.String("bfGid", gid.String()))
		}
		return decodeErr
	})
	return item, err
}

func (b *Backend) view(fn func(txn *badger.Txn) error) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	return db.View(fn)
}

func (b *Backend) update(fn func(txn *badger.Txn) error) error {
	db, err := b.handle()
	if err != nil {
		return err
	}
	return db.Update(fn)
}

func wrapErr(op string, gid valueobjects.BfGid, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return pkgerrors.NewNodeNotFoundError(gid.String())
	case pkgerrors.IsAppError(err):
		return err
	default:
		return pkgerrors.NewDatabaseError(op, err)
	}
}

// GetItem loads an item owned by oid
func (b *Backend) GetItem(ctx context.Context, oid, gid valueobjects.BfGid) (*entities.Item, error) {
	item, err := b.GetItemByBfGid(ctx, gid)
	if err != nil {
		return nil, err
	}
	if item.Metadata.BfOid != oid {
		return nil, pkgerrors.NewNodeNotFoundError(gid.String())
	}
	return item, nil
}

// GetItemByBfGid loads an item regardless of owner
func (b *Backend) GetItemByBfGid(ctx context.Context, gid valueobjects.BfGid) (*entities.Item, error) {
	var item entities.Item
	err := b.view(func(txn *badger.Txn) error {
		var err error
		item, err = b.load(txn, gid)
		return err
	})
	if err != nil {
		return nil, wrapErr("get item", gid, err)
	}
	return &item, nil
}

// GetItemsByBfGid loads the found ids in input order from one snapshot
func (b *Backend) GetItemsByBfGid(ctx context.Context, gids []valueobjects.BfGid) ([]entities.Item, error) {
	out := make([]entities.Item, 0, len(gids))
	err := b.view(func(txn *badger.Txn) error {
		for _, gid := range gids {
			item, err := b.load(txn, gid)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("get items", "", err)
	}
	return out, nil
}

// PutItem writes the item and its index keys atomically
func (b *Backend) PutItem(ctx context.Context, item entities.Item) error {
	return b.put(item, true)
}

// InsertItem is PutItem that refuses to replace an existing gid
func (b *Backend) InsertItem(ctx context.Context, item entities.Item) error {
	return b.put(item, false)
}

func (b *Backend) put(item entities.Item, replace bool) error {
	md := item.Metadata
	if md.BfGid.IsZero() || md.BfOid.IsZero() {
		return pkgerrors.NewValidationError("item needs bfGid and bfOid")
	}

	val, err := b.codec.Encode(item)
	if err != nil {
		return pkgerrors.NewDatabaseError("encode item", err)
	}

	err = b.update(func(txn *badger.Txn) error {
		old, err := b.load(txn, md.BfGid)
		switch {
		case err == nil && !replace:
			return pkgerrors.NewConflictError("bfGid already in use: " + md.BfGid.String())
		case err == nil:
			for _, key := range indexKeys(old.Metadata) {
				if err := txn.Delete(key); err != nil {
					return err
				}
			}
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}

		if err := txn.Set(itemKey(md.BfGid), val); err != nil {
			return err
		}
		for _, key := range indexKeys(md) {
			if err := txn.Set(key, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return wrapErr("put item", md.BfGid, err)
	}

	b.logger.Debug("Item saved",
		zap.String("bfGid", md.BfGid.String()),
		zap.String("className", md.ClassName),
	)
	return nil
}

// DeleteItem removes an item owned by oid with its index keys
func (b *Backend) DeleteItem(ctx context.Context, oid, gid valueobjects.BfGid) error {
	err := b.update(func(txn *badger.Txn) error {
		old, err := b.load(txn, gid)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if old.Metadata.BfOid != oid {
			return nil
		}

		for _, key := range indexKeys(old.Metadata) {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return txn.Delete(itemKey(gid))
	})
	if err != nil {
		return wrapErr("delete item", gid, err)
	}

	b.logger.Debug("Item deleted", zap.String("bfGid", gid.String()))
	return nil
}

// QueryItems scans the narrowest index prefix for q and filters the
// candidates in memory
func (b *Backend) QueryItems(ctx context.Context, q ports.ItemQuery) ([]entities.Item, error) {
	f := q.Metadata

	var candidates []entities.Item
	err := b.view(func(txn *badger.Txn) error {
		if len(q.BfGids) > 0 {
			for _, gid := range q.BfGids {
				item, err := b.load(txn, gid)
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				candidates = append(candidates, item)
			}
			return nil
		}

		if f.BfOid == nil {
			return b.scanItems(ctx, txn, &candidates)
		}

		var prefix []byte
		switch {
		case f.BfSid != nil:
			prefix = sourceIndexPrefix(*f.BfOid, *f.BfSid)
		case f.BfTid != nil:
			prefix = targetIndexPrefix(*f.BfOid, *f.BfTid)
		default:
			prefix = orgIndexPrefix(*f.BfOid)
		}
		return b.scanIndex(ctx, txn, prefix, &candidates)
	})
	if err != nil {
		return nil, wrapErr("query items", "", err)
	}
	return abstractions.ApplyQuery(candidates, q), nil
}

func (b *Backend) scanIndex(ctx context.Context, txn *badger.Txn, prefix []byte, out *[]entities.Item) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		gid := valueobjects.BfGid(it.Item().Key()[len(prefix):])
		item, err := b.load(txn, gid)
		if errors.Is(err, badger.ErrKeyNotFound) {
			b.logger.Warn("Index key without item", zap.String("bfGid", gid.String()))
			continue
		}
		if err != nil {
			return err
		}
		*out = append(*out, item)
	}
	return nil
}

func (b *Backend) scanItems(ctx context.Context, txn *badger.Txn, out *[]entities.Item) error {
	prefix := []byte(itemPrefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := it.Item().Value(func(val []byte) error {
			item, _, err := b.codec.Decode(val)
			if err != nil {
				return err
			}
			*out = append(*out, item)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// QueryAncestorsByClassName walks edges backwards from gid
func (b *Backend) QueryAncestorsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	return abstractions.TraverseByClassName(ctx, b, oid, gid, className, depth, abstractions.Backward)
}

// QueryDescendantsByClassName walks edges forwards from gid
func (b *Backend) QueryDescendantsByClassName(ctx context.Context, oid, gid valueobjects.BfGid, className string, depth int) ([]entities.Item, error) {
	return abstractions.TraverseByClassName(ctx, b, oid, gid, className, depth, abstractions.Forward)
}
