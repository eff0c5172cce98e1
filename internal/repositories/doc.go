// Package repositories implements goose persistence over two stores.
//
// The document store (MongoDB) holds tracks and users:
//   - [Connection] : shared client with a bounded connect retry; callers wait on it with a timeout
//   - [TrackRepository] : [models.TrackStore], upgrading stale documents on read
//   - [UserRepository] : [models.UserStore], with stashes resolved through a TrackStore
//
// The ledger (SQLite) holds append-only and short-lived records:
//   - [PlayEventRepository] : play telemetry behind the goose.plays counters
//   - [SearchCacheRepository] : normalized text query to goose id
//   - [LinkStateRepository] : single-use OAuth states for account linking
//
// Lookups that miss wrap shared.ErrTrackNotFound or shared.ErrUserNotFound. Bulk writes
// (playlists, stashes) never roll back; every failure is joined into the returned error.
package repositories
