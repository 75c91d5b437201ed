package layout

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/cznic/ql/driver"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// QL is a Store using the QL embedded database. It is intended for
// development and single process use.
type QL struct {
	db *sql.DB
	m  sync.Mutex // serializes the check and insert of Save
}

const qlLayoutInit = `
	CREATE TABLE IF NOT EXISTS layouts (
		sip string,
		saved time,
		value blob
	);
	CREATE UNIQUE INDEX IF NOT EXISTS layoutsip ON layouts (sip);
`

// NewQL opens a QL database in the given file. The filename "memory" keeps
// everything in memory. Each call with "memory" returns a separate
// database.
func NewQL(filename string) (*QL, error) {
	var db *sql.DB
	var err error
	if filename == "memory" {
		db, err = sql.Open("ql-mem", uuid.New().String()+".db")
	} else {
		db, err = sql.Open("ql", filename)
	}
	if err == nil {
		_, err = performExec(db, qlLayoutInit)
	}
	if err != nil {
		log.Printf("Open QL: %s", err.Error())
		return nil, errors.Wrap(err, "open QL")
	}
	return &QL{db: db}, nil
}

// Get implements Store.
func (qc *QL) Get(id string) (*Layout, error) {
	const dbLookup = `SELECT value FROM layouts WHERE sip == ?1 LIMIT 1`

	var value []byte
	err := qc.db.QueryRow(dbLookup, id).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "layout QL %s", id)
	}
	return decode(value)
}

// Save implements Store.
func (qc *QL) Save(l *Layout, overwrite bool) error {
	const dbCount = `SELECT count(*) FROM layouts WHERE sip == ?1`
	const dbUpdate = `UPDATE layouts SET saved = ?2, value = ?3 WHERE sip == ?1`
	const dbInsert = `INSERT INTO layouts VALUES (?1, ?2, ?3)`

	value, err := encode(l)
	if err != nil {
		return err
	}
	qc.m.Lock()
	defer qc.m.Unlock()
	tx, err := qc.db.Begin()
	if err != nil {
		return errors.Wrap(err, "layout QL")
	}
	var n int64
	err = tx.QueryRow(dbCount, l.SIPID).Scan(&n)
	switch {
	case err != nil:
	case n > 0 && !overwrite:
		err = alreadyArchived(l.SIPID)
	case n > 0:
		_, err = tx.Exec(dbUpdate, l.SIPID, l.Saved, value)
	default:
		_, err = tx.Exec(dbInsert, l.SIPID, l.Saved, value)
	}
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close implements Store.
func (qc *QL) Close() error {
	return qc.db.Close()
}

func performExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	var result sql.Result
	result, err = tx.Exec(query, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	err = tx.Commit()
	return result, err
}
