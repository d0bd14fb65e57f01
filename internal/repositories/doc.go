// package repositories provides the SQLite persistence layer.
//
// The canonical library lives in memory during normal operation; the
// repositories here load it at startup and write it back as sync passes
// change it, so restarts keep resolved links and favorites. Sync job rows
// are append-mostly and back the status and history surfaces.
package repositories
