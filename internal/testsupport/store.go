package testsupport

import (
	"context"
	"strconv"
	"testing"

	"camerasync/internal/catalog"
	"camerasync/internal/config"
	"camerasync/internal/metadata"
)

// MustOpenCatalog opens the catalog configured in cfg and registers cleanup.
func MustOpenCatalog(t testing.TB, cfg *config.Config) *catalog.Store {
	t.Helper()

	store, err := catalog.Open(cfg.Paths.Database)
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddSynced registers name with tags and advances it to synced.
func AddSynced(t testing.TB, store *catalog.Store, tags metadata.Tags, name, fileType string) catalog.AddResult {
	t.Helper()

	ctx := context.Background()
	res, err := store.AddFile(ctx, tags, name, fileType)
	if err != nil {
		t.Fatalf("store.AddFile %s: %v", name, err)
	}
	if err := store.MarkSynced(ctx, name); err != nil {
		t.Fatalf("store.MarkSynced %s: %v", name, err)
	}
	return res
}

// Bracket returns metadata marking a shot as member seq of an exposure bracket.
func Bracket(seq int) metadata.Tags {
	return metadata.Tags{
		metadata.KeyReleaseMode:         "Exposure Bracketing",
		metadata.KeySequenceImageNumber: strconv.Itoa(seq),
	}
}
