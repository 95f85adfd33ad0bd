package store

import (
	"database/sql"
	"log"

	"github.com/stretchr/testify/suite"
)

// sqlStoreSuite runs every store against one in-memory sqlite database.
type sqlStoreSuite struct {
	suite.Suite
	db *sql.DB
}

func (suite *sqlStoreSuite) SetupSuite() {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		log.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	suite.db = db

	if err := RunMigrations(db, "sqlite"); err != nil {
		log.Fatal(err)
	}
}

func (suite *sqlStoreSuite) TearDownSuite() {
	_ = suite.db.Close()
}
