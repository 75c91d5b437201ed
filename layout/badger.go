package layout

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// Badger is a Store backed by a Badger key/value database. Keys are
// "layout:<sip id>" and values are JSON.
type Badger struct {
	db *badger.DB
}

const badgerPrefix = "layout:"

// NewBadger opens a Badger database in the directory dir. An empty dir
// keeps the database in memory.
func NewBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "open badger")
	}
	return &Badger{db: db}, nil
}

// Get implements Store.
func (b *Badger) Get(id string) (*Layout, error) {
	var value []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerPrefix + id))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "layout badger %s", id)
	}
	return decode(value)
}

// Save implements Store. The read of the key and the write happen in one
// transaction, so a concurrent first Save of the same SIP makes one of the
// transactions fail with a conflict. The loser gets ErrAlreadyArchived.
func (b *Badger) Save(l *Layout, overwrite bool) error {
	value, err := encode(l)
	if err != nil {
		return err
	}
	key := []byte(badgerPrefix + l.SIPID)
	err = b.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		switch {
		case err == nil && !overwrite:
			return alreadyArchived(l.SIPID)
		case err != nil && err != badger.ErrKeyNotFound:
			return err
		}
		return txn.Set(key, value)
	})
	if err == badger.ErrConflict && !overwrite {
		return alreadyArchived(l.SIPID)
	}
	if err != nil && !errors.Is(err, ErrAlreadyArchived) {
		return errors.Wrapf(err, "layout badger %s", l.SIPID)
	}
	return err
}

// Close implements Store.
func (b *Badger) Close() error {
	return b.db.Close()
}
