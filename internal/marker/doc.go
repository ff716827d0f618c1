// Package marker persists the id of the last announced news entry.
//
// One capability, several backends, selected by Config.Driver:
//   - "gist":     a file inside a GitHub gist (remote, needs a token)
//   - "file":     a local text file
//   - "sqlite":   a row in a SQLite database file
//   - "postgres": a row in a PostgreSQL table
//   - "redis":    a single string key
//
// Reads and writes are not locked; callers run at most one check cycle at a
// time against a given store.
package marker
