package layout

import (
	"log"

	"github.com/BurntSushi/migration"
)

// dbVersion adapts the schema version functions of
// github.com/BurntSushi/migration to the SQL dialect of a database.
type dbVersion struct {
	// SQL returning the current version as one row and one column
	GetSQL string
	// SQL recording a new version, which is its only parameter
	SetSQL string
	// SQL creating the version table
	CreateSQL string
}

// Get returns the schema version. A missing version table reads as
// version 0.
func (d dbVersion) Get(tx migration.LimitedTx) (int, error) {
	var version int
	err := tx.QueryRow(d.GetSQL).Scan(&version)
	if err != nil {
		log.Println("Layout migration:", err.Error())
		return 0, nil
	}
	return version, nil
}

// Set records the schema version, creating the version table on first use.
func (d dbVersion) Set(tx migration.LimitedTx, version int) error {
	if _, err := tx.Exec(d.SetSQL, version); err == nil {
		return nil
	}
	if _, err := tx.Exec(d.CreateSQL); err != nil {
		return err
	}
	_, err := tx.Exec(d.SetSQL, version)
	return err
}
