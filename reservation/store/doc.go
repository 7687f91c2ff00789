// Package store provides the durable key/value adapter used to persist
// session snapshots.
//
// Backends:
//   - Memory: in-process map, lost on restart
//   - File: one JSON file per key in a directory
//   - Redis: go-redis client, keys under a prefix
//   - SQL: a kv_store table in SQLite, PostgreSQL or MySQL
//
// All backends return ErrNotFound for absent keys, so a first run is never an
// error. Open picks a backend from a DSN, and WithPrefix namespaces keys so
// several sessions can share one backend.
//
// Usage:
//
//	s, err := store.Open(ctx, "sqlite:///var/lib/seatsession/state.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close()
//
//	sess := store.WithPrefix(s, "session:"+id+":")
//	value, err := sess.Get(ctx, "seats")
//	if errors.Is(err, store.ErrNotFound) {
//		// fresh session
//	}
package store
