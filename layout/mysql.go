package layout

import (
	"database/sql"
	"log"

	// no _ in import mysql since we need mysql.MySQLError
	"github.com/BurntSushi/migration"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

// MySQL is a Store using a MySQL database. The table is created and
// upgraded on open.
type MySQL struct {
	db *sql.DB
}

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var mysqlMigrations = []migration.Migrator{
	mysqlschema1,
}

var mysqlVersioning = dbVersion{
	GetSQL:    `SELECT max(version) FROM migration_version`,
	SetSQL:    `INSERT INTO migration_version (version, applied) VALUES (?, now())`,
	CreateSQL: `CREATE TABLE migration_version (version INTEGER, applied datetime)`,
}

// the MySQL error number for a duplicate key
const mysqlDuplicateEntry = 1062

// NewMySQL connects to a MySQL database, e.g.
// "user:password@tcp(localhost:3306)/sipbag?parseTime=true".
func NewMySQL(dial string) (*MySQL, error) {
	db, err := migration.OpenWith(
		"mysql",
		dial,
		mysqlMigrations,
		mysqlVersioning.Get,
		mysqlVersioning.Set)
	if err != nil {
		log.Printf("Open Mysql: %s", err.Error())
		return nil, errors.Wrap(err, "open MySQL")
	}
	return &MySQL{db: db}, nil
}

// Get implements Store.
func (ms *MySQL) Get(id string) (*Layout, error) {
	const dbLookup = `SELECT value FROM layouts WHERE sip = ? LIMIT 1`

	var value []byte
	err := ms.db.QueryRow(dbLookup, id).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "layout MySQL %s", id)
	}
	return decode(value)
}

// Save implements Store. The UNIQUE key on the SIP id makes the first
// INSERT win when several writers race.
func (ms *MySQL) Save(l *Layout, overwrite bool) error {
	const dbInsert = `INSERT INTO layouts (sip, saved, value) VALUES (?, ?, ?)`
	const dbUpsert = dbInsert + ` ON DUPLICATE KEY UPDATE saved=?, value=?`

	value, err := encode(l)
	if err != nil {
		return err
	}
	if overwrite {
		_, err = ms.db.Exec(dbUpsert, l.SIPID, l.Saved, value, l.Saved, value)
	} else {
		_, err = ms.db.Exec(dbInsert, l.SIPID, l.Saved, value)
	}
	if isDuplicate(err) {
		return alreadyArchived(l.SIPID)
	}
	if err != nil {
		return errors.Wrapf(err, "layout MySQL %s", l.SIPID)
	}
	return nil
}

// Close implements Store.
func (ms *MySQL) Close() error {
	return ms.db.Close()
}

func isDuplicate(err error) bool {
	var merr *mysql.MySQLError
	return errors.As(err, &merr) && merr.Number == mysqlDuplicateEntry
}

// database migrations. each one is a go function. Add them to the
// list mysqlMigrations at top of this file for them to be run.

func mysqlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS layouts (
		id int PRIMARY KEY AUTO_INCREMENT,
		sip varchar(255) NOT NULL,
		saved datetime,
		value LONGTEXT,
		UNIQUE INDEX layouts_sip (sip))`,
	}
	return execlist(tx, s)
}

// execlist exec's each item in the list, return if there is an error.
// Used to work around mysql driver not handling compound exec statements.
func execlist(tx migration.LimitedTx, stms []string) error {
	var err error
	for _, s := range stms {
		_, err = tx.Exec(s)
		if err != nil {
			break
		}
	}
	return err
}
