// Package ingest coordinates one camerasync run: archive the camera storage,
// index the archive, then process unprocessed image groups.
//
// A run holds an advisory lock next to the catalog so that a manual run and a
// watch-triggered run never overlap.
package ingest
