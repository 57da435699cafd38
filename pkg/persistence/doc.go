// Package persistence provides RecordStore implementations.
//
// SQLRecordStore is the durable store and supports SQLite (default), MySQL and
// Postgres through database/sql. Its schema is versioned in a schema_version
// table and upgraded on Open. MemoryRecordStore keeps records in process
// memory only.
package persistence
