// Package pipeline turns catalogued image groups into output artifacts.
//
// An Orchestrator handles one group at a time: it resolves each member to its
// archive path, copies camera-rendered images straight to the output
// directory, decodes raw exposures into intermediates and, for bracket
// sequences, runs alignment, every configured tonemap operator and the
// overlay blend that yields the final HDR composite. The group is marked
// processed only when every step succeeded; any failure leaves it for the
// next run and removes the temporary files it created.
//
// A Pool partitions the unprocessed groups into contiguous chunks and runs
// one Orchestrator per chunk in parallel, each with its own catalog handle.
package pipeline
