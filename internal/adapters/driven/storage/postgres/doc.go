// Package postgres implements driven.MessageStore on PostgreSQL using gorm.
//
// The schema matches the SQLite sink and is created with AutoMigrate on open.
// Each insert call runs in a single transaction.
package postgres
