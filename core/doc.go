// Package core defines the shared vocabulary of the Lorekeep engine: the
// closed set of agent roles, agent handles with their depth bookkeeping,
// capability scopes for Canon reads, the role-based content model exchanged
// with inference providers, and the error taxonomy every component reports
// against. It has no dependencies on the storage, dispatch or model layers so
// that those packages can all import it freely.
package core
