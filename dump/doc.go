/*
Package dump provides file system I/O for token ledger snapshots.

A dump persists the complete engine state (token description and all storage
items) so that the ledger can be restored later, moved to another process or
inspected offline. Dumps use human-readable encoding.
*/
package dump
