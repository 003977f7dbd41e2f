// Package database provides SQLite connectivity for Board Sync Core.
//
// Board Sync keeps very little on disk: the bundle catalog cache and the
// history of sync runs. The board registry itself is rebuilt from discovery
// on every start and is never stored here.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are plain SQL files named YYYYMMDD_HHMMSS_description.up.sql
// (with an optional matching .down.sql), registered once by the migrations
// package through SetMigrations.
package database
