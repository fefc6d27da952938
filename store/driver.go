package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Database drivers supported out of the box. SQLite suits single-instance
// deployments and tests; Postgres is the choice when several authorization
// servers share one token store.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DriverFactory creates a gorm.Dialector from a DSN.
type DriverFactory func(dsn string) gorm.Dialector

var driverFactories = map[string]DriverFactory{
	DriverSQLite:   sqlite.Open,
	DriverPostgres: postgres.Open,
}

// GetDialector returns the GORM dialector for the given driver name and DSN.
func GetDialector(driver, dsn string) (gorm.Dialector, error) {
	factory, exists := driverFactories[driver]
	if !exists {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	return factory(dsn), nil
}

// RegisterDriver registers an additional database driver, e.g. mysql.
func RegisterDriver(name string, factory DriverFactory) {
	driverFactories[name] = factory
}
