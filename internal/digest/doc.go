// Package digest computes deterministic structural hashes over acyclic
// composite values.
//
// Every value is tagged with a short type sigil before it contributes bytes
// to the hash, so that e.g. the empty sequence and the empty map never
// collide. Maps and sets are canonicalized by sorting their entries before
// hashing, so two structurally equal values always digest to the same tag
// regardless of construction order.
package digest
