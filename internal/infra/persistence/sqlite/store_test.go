package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"penguinboard/pkg/penguins"
)

func seedDataset() penguins.Dataset {
	return penguins.NewDataset([]penguins.Record{
		{Species: penguins.SpeciesAdelie, Island: "Torgersen", BillLengthMM: penguins.Measured(39.1), BillDepthMM: penguins.Measured(18.7), FlipperLengthMM: penguins.Measured(181), BodyMassG: penguins.Measured(3750), Sex: penguins.SexMale, Year: 2007},
		{Species: penguins.SpeciesAdelie, Island: "Torgersen", Year: 2007},
		{Species: penguins.SpeciesGentoo, Island: "Biscoe", BillLengthMM: penguins.Measured(46.1), BillDepthMM: penguins.Measured(13.2), FlipperLengthMM: penguins.Measured(211), BodyMassG: penguins.Measured(4500), Sex: penguins.SexFemale, Year: 2007},
		{Species: penguins.SpeciesChinstrap, Island: "Dream", BillLengthMM: penguins.Measured(46.5), BillDepthMM: penguins.Measured(17.9), FlipperLengthMM: penguins.Measured(192), BodyMassG: penguins.Measured(3500), Sex: penguins.SexFemale, Year: 2007},
	})
}

func TestSQLiteStoreSeedsAndLoadsInOrder(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "penguins.db")
	store, err := NewStore(ctx, path, seedDataset())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if store.Seeded() != 4 || store.Path() != path {
		t.Fatalf("unexpected seed count %d", store.Seeded())
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got.Records(), seedDataset().Records()) {
		t.Fatalf("loaded dataset differs:\n%+v", got.Records())
	}
}

func TestSQLiteStoreDoesNotReseed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "penguins.db")
	first, err := NewStore(ctx, path, seedDataset())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	_ = first.Close()

	second, err := NewStore(ctx, path, seedDataset())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })
	if second.Seeded() != 0 {
		t.Fatalf("existing table should not be reseeded")
	}
	got, err := second.Load(ctx)
	if err != nil || got.Len() != 4 {
		t.Fatalf("expected 4 rows, got %d (%v)", got.Len(), err)
	}
}

func TestSQLiteStoreAppliesDDL(t *testing.T) {
	store, err := NewStore(context.Background(), filepath.Join(t.TempDir(), "state.db"), penguins.Dataset{})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	var tableName string
	if err := store.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name= ?", "penguins").Scan(&tableName); err != nil {
		t.Fatalf("lookup penguins table: %v", err)
	}
	if tableName != "penguins" {
		t.Fatalf("expected penguins table, got %s", tableName)
	}
}

func TestSQLiteStoreRejectsUnknownSpecies(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "bad.db"), penguins.Dataset{})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.DB().Exec(`INSERT INTO penguins (species, island) VALUES ('Emperor', 'Ross')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.Load(ctx); err == nil {
		t.Fatalf("expected unknown species error")
	}
}
