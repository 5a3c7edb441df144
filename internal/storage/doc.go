// Package storage defines the content-addressable and entity-attribute-value
// storage contracts the runtime consumes, plus three backends.
//
// # Contracts
//
//   - ContentAddressableStorage: Add, Fetch and Contains keyed by ir.Address.
//     Content is immutable, so Add is idempotent.
//   - EntityAttributeValueStorage: AddEAVI and FetchEAVI over
//     (entity, attribute, value) triples. Every stored triple carries a
//     monotonically increasing index; FetchEAVI returns results in index order.
//
// # Backends
//
//   - memory: maps guarded by sync.RWMutex. Used by tests and by the
//     default configuration.
//   - sqlite: one database file. Chain and DHT content share the content
//     table and are separated by a namespace column.
//   - leveldb: one LevelDB directory with key prefixes per namespace.
//
// All implementations are safe for concurrent use. The runtime serializes
// writes through its dispatch loop; reads may come from any goroutine.
package storage
