// Package state is the durable store for the thumbnail cache engine.
//
// Layout under the data directory:
//
//	cache-config.json              engine configuration
//	history/current.json           fingerprints, last run, recent history and changes
//	history/cache-YYYY-MM-DD.json  append-only daily history (UTC dates)
//
// Every file is replaced with a temp-file-and-rename write, so a crash
// leaves the previous version readable. A legacy cache-state.json is
// split into this layout on first access and renamed to
// cache-state.json.migrated.
package state
