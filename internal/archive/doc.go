// Package archive copies camera files into the type-partitioned archive tree
// and keeps the catalog in step with it.
//
// The Archiver walks the source directory and copies every supported file to
// <archive>/<ext>/<filename> exactly once, then registers it in the catalog as
// synced. The Indexer walks the archive itself and registers any file the
// catalog does not know yet, which recovers from a lost or rebuilt catalog.
// Resolve maps catalog filenames back to their archive paths for the
// pipeline.
package archive
