package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Dialect identifiers supported by the database layer.
const (
	// DialectPostgres is the PostgreSQL dialect name.
	DialectPostgres = "postgres"
	// DialectMySQL is the MySQL dialect name.
	DialectMySQL = "mysql"
	// DialectSQLite is the SQLite dialect name.
	DialectSQLite = "sqlite"
)

// DialectName returns the active database dialect name.
func DialectName(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// IsSQLite reports whether the connection uses SQLite.
func IsSQLite(conn *gorm.DB) bool {
	return DialectName(conn) == DialectSQLite
}

// CaseInsensitiveLikeExpr returns a SQL expression for case-insensitive LIKE. Patterns built by
// ContainsPattern escape with a backslash; SQLite has no default escape character so it is named.
func CaseInsensitiveLikeExpr(conn *gorm.DB, column string) string {
	switch DialectName(conn) {
	case DialectPostgres:
		return fmt.Sprintf("%s ILIKE ?", column)
	case DialectSQLite:
		return fmt.Sprintf("LOWER(%s) LIKE ? ESCAPE '\\'", column)
	default:
		return fmt.Sprintf("LOWER(%s) LIKE ?", column)
	}
}

// ContainsPattern builds a LIKE pattern matching term anywhere, normalised for the dialect.
func ContainsPattern(conn *gorm.DB, term string) string {
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(strings.TrimSpace(term))
	pattern := "%" + escaped + "%"
	if DialectName(conn) == DialectPostgres {
		return pattern
	}
	return strings.ToLower(pattern)
}
