package models

// DatabaseDriver selects which GORM dialector DatabaseConfig connects through.
type DatabaseDriver string

const (
	DatabasePostgres   DatabaseDriver = "postgres"
	DatabaseMySQL      DatabaseDriver = "mysql"
	DatabaseSQLite     DatabaseDriver = "sqlite"
	DatabaseClickHouse DatabaseDriver = "clickhouse"
)

// DatabaseConfig configures the optional durable mirror behind the ExactCache. Nil
// (the zero value of *DatabaseConfig in Config) means the ExactCache runs in-memory
// only, with no restart persistence.
type DatabaseConfig struct {
	Driver DatabaseDriver `yaml:"driver"`
	DSN    string         `yaml:"dsn"`
}
