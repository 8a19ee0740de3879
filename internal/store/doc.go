// Package store holds the mutable configuration shared by the polling tasks.
//
// This package is internal to statuslight. The main components are:
//
//   - [Store]: Interface defining snapshot reads, merge writes and subscriptions
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Config]: The device endpoint, last observed status, and label overrides
//   - [Patch]: A partial update; nil fields are left untouched
//
// Reads return consistent snapshots. Writes are shallow merges, so the status
// refresh task and settings changes never clobber each other's fields.
// Durability is out of scope; the configuration lives for the life of the
// process.
package store
