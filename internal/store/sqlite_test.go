package store

import (
	"path/filepath"
	"testing"
)

func TestSQLiteRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "players.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, found, err := db.Load("p1"); err != nil || found {
		t.Fatalf("fresh db should report no record, found=%v err=%v", found, err)
	}

	record := Record{
		PlayerID:         "p1",
		StudiedRecipeIDs: []string{"wood_planks"},
		ResetRecipeIDs:   []string{"stone_axe"},
		Ledger: LedgerSnapshot{
			Level:  3,
			Points: map[string]int{"learning": 4},
		},
	}
	if err := db.Save(record); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, found, err := db.Load("p1")
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if loaded.Ledger.Level != 3 || loaded.Ledger.Points["learning"] != 4 {
		t.Fatalf("ledger snapshot lost: %+v", loaded.Ledger)
	}
	if len(loaded.StudiedRecipeIDs) != 1 || loaded.StudiedRecipeIDs[0] != "wood_planks" {
		t.Fatalf("studied set lost: %v", loaded.StudiedRecipeIDs)
	}
}

func TestSQLiteSaveOverwrites(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "players.db")
	db, err := OpenSQLite(dbPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if err := db.Save(Record{PlayerID: "p1", StudiedRecipeIDs: []string{"a"}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := db.Save(Record{PlayerID: "p1", StudiedRecipeIDs: []string{"a", "b"}}); err != nil {
		t.Fatalf("resave: %v", err)
	}
	loaded, _, err := db.Load("p1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.StudiedRecipeIDs) != 2 {
		t.Fatalf("expected overwrite, got %v", loaded.StudiedRecipeIDs)
	}
}
