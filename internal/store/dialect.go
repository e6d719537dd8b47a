package store

import "fmt"

// Dialect carries the SQL type names and placeholder syntax a
// SQLObjectStore needs to render its DDL and CRUD statements. Two
// concrete dialects are provided; callers may build their own for
// another database.
type Dialect struct {
	Name         string
	IntType      string
	LongType     string
	BoolType     string
	FloatType    string
	DecimalType  string
	DateTimeType string
	UUIDType     string
	DurationType string
	StringType   string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

// PostgresDialect targets a lib/pq-backed store: $1-style placeholders,
// DOUBLE PRECISION, TIMESTAMP, UUID, BIGINT for durations (ticks).
var PostgresDialect = Dialect{
	Name:         "postgres",
	IntType:      "INTEGER",
	LongType:     "BIGINT",
	BoolType:     "BOOLEAN",
	FloatType:    "DOUBLE PRECISION",
	DecimalType:  "NUMERIC(18,2)",
	DateTimeType: "TIMESTAMP",
	UUIDType:     "UUID",
	DurationType: "BIGINT",
	StringType:   "TEXT",
	Placeholder:  func(n int) string { return fmt.Sprintf("$%d", n) },
}

// SQLServerDialect targets SQL Server: DATETIME2, UNIQUEIDENTIFIER,
// NVARCHAR(MAX), @p-style params.
var SQLServerDialect = Dialect{
	Name:         "sqlserver",
	IntType:      "INT",
	LongType:     "BIGINT",
	BoolType:     "BIT",
	FloatType:    "FLOAT",
	DecimalType:  "DECIMAL(18,2)",
	DateTimeType: "DATETIME2",
	UUIDType:     "UNIQUEIDENTIFIER",
	DurationType: "BIGINT",
	StringType:   "NVARCHAR(MAX)",
	Placeholder:  func(n int) string { return fmt.Sprintf("@p%d", n) },
}
