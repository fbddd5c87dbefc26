// Package memory implements the layered memory substrate: Canon (versioned,
// write-restricted truth), Buffer (append-only unverified claims), Scratch
// (private per-agent-per-task notes), Task Memory (shared per-task narrative)
// and the Dispute log. Storage mechanics live behind the Store interface with
// an in-memory default and a Redis-backed implementation in the redisstore
// subpackage; all policy enforcement happens in the Layers façade, which
// consults the arbiter before every operation.
package memory
