// Package state holds the merged view of the Transmission daemon that the
// monitor writes and the UI reads.
//
// # Overview
//
// Transmission lets a client poll only "recently-active" torrents. Such a
// reply carries changed torrents plus the ids removed since the previous
// poll. Store folds full and partial replies into one map keyed by torrent
// id so consumers always see the complete set.
//
// # Merge Semantics
//
//	ApplyList(list)
//	→ drop every id in list.Removed
//	→ insert or overwrite every torrent in list.Torrents
//	→ keep everything else
//
// A torrent absent from a partial reply is never dropped. Applying the same
// reply twice leaves the store unchanged.
//
// # Status Codes
//
// Torrents are stored with the status code the daemon sent. Snapshot decodes
// it with the mapping for the last session rpc-version, so a session-get that
// arrives after the first list still fixes up every status.
//
// # Concurrency Model
//
// Store uses a readers-writer lock. The monitor is the only writer. The UI
// reads Snapshot values, which are copies and safe to keep.
//
// # Error Propagation
//
// RecordError keeps previous data and counts consecutive failures. Any
// successful Apply call resets the count. IsOffline reports two or more
// failures in a row.
package state
