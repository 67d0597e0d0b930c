package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "wagw.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	result, err := db.Migrate()
	if err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if result.Changed {
		t.Error("second Migrate reported changes")
	}
}

func TestAppendRecordIdempotent(t *testing.T) {
	db := openTestDB(t)

	r := &Record{
		ID:        "3EB0A9252E7E",
		Sender:    "628111@s.whatsapp.net",
		Content:   "Hi",
		Timestamp: time.Now().UnixMilli(),
	}

	inserted, err := db.AppendRecord(r)
	if err != nil {
		t.Fatalf("AppendRecord: %v", err)
	}
	if !inserted {
		t.Error("first append should insert")
	}

	// Same id again: no-op, not an error, even with different content.
	dup := *r
	dup.Content = "Hi again"
	inserted, err = db.AppendRecord(&dup)
	if err != nil {
		t.Fatalf("duplicate AppendRecord: %v", err)
	}
	if inserted {
		t.Error("duplicate append should be a no-op")
	}

	records, err := db.ListRecords(10)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want exactly 1", len(records))
	}
	if records[0].Content != "Hi" {
		t.Errorf("content = %q, duplicate must not overwrite", records[0].Content)
	}
}

func TestHasRecord(t *testing.T) {
	db := openTestDB(t)

	ok, err := db.HasRecord("missing")
	if err != nil {
		t.Fatalf("HasRecord: %v", err)
	}
	if ok {
		t.Error("HasRecord(missing) = true")
	}

	if _, err := db.AppendRecord(&Record{ID: "abc", Sender: SelfSender, Content: "x", Outgoing: true}); err != nil {
		t.Fatal(err)
	}
	ok, err = db.HasRecord("abc")
	if err != nil {
		t.Fatalf("HasRecord: %v", err)
	}
	if !ok {
		t.Error("HasRecord(abc) = false")
	}
}

func TestListRecordsNewestFirst(t *testing.T) {
	db := openTestDB(t)

	for i, id := range []string{"a", "b", "c"} {
		if _, err := db.AppendRecord(&Record{ID: id, Sender: "x@s.whatsapp.net", Content: id, Timestamp: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}

	records, err := db.ListRecords(2)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len = %d, want 2", len(records))
	}
	if records[0].ID != "c" || records[1].ID != "b" {
		t.Errorf("order = %s,%s, want c,b", records[0].ID, records[1].ID)
	}
}

func TestNewMessageFlagLifecycle(t *testing.T) {
	db := openTestDB(t)

	f, err := db.GetNewMessageFlag()
	if err != nil {
		t.Fatalf("GetNewMessageFlag: %v", err)
	}
	if f.HasNew {
		t.Error("fresh flag should not report new messages")
	}

	if err := db.SetNewMessageFlag("msg1", 1000); err != nil {
		t.Fatalf("SetNewMessageFlag: %v", err)
	}
	if err := db.SetNewMessageFlag("msg2", 2000); err != nil {
		t.Fatalf("SetNewMessageFlag: %v", err)
	}

	f, err = db.GetNewMessageFlag()
	if err != nil {
		t.Fatal(err)
	}
	if !f.HasNew || f.LastMessageID != "msg2" || f.LastMessageAt != 2000 {
		t.Errorf("flag = %+v, want has_new with msg2@2000", f)
	}

	if err := db.ClearNewMessageFlag(); err != nil {
		t.Fatalf("ClearNewMessageFlag: %v", err)
	}
	f, _ = db.GetNewMessageFlag()
	if f.HasNew {
		t.Error("flag still set after clear")
	}
	if f.LastMessageID != "msg2" {
		t.Error("clear should keep last message fields")
	}
}
