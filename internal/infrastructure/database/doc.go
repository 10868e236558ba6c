// Package database provides SQLite database connectivity for SMS Bridge.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema creation for the message journal
//   - Connection pooling and lifecycle management
//
// The database is diagnostic storage only: the device aggregate is rebuilt
// from the first poll after a restart and is never loaded from here.
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Performance Characteristics:
//   - WAL mode allows concurrent reads during writes
//   - Busy timeout prevents lock contention errors
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
