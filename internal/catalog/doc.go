// Package catalog persists file and image-group identity together with the
// per-file processing state in SQLite.
//
// Every file observed on camera storage gets one row keyed by its filename.
// Its state only moves forward: SEEN when first registered, SYNCED once the
// archive holds a copy, PROCESSED once its image group went through the
// conversion pipeline. Groups are processed atomically: MarkGroupProcessed
// advances every member inside a single transaction.
//
// The store is safe for one goroutine at a time per handle. Pipeline workers
// each open their own Store.
package catalog
