package lockfile

import (
	"os"
	"path/filepath"
	"testing"
)

func setupMigrations(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	write := func(name, sql string) {
		if err := os.MkdirAll(filepath.Join(dir, name), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name, "migration.sql"), []byte(sql), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("0000_init", "CREATE SCHEMA [app];\nGO\n")
	write("0001_users", "CREATE TABLE [app].[users] ([id] int NOT NULL);\nGO\n")
	return dir
}

func TestWriteAndRead(t *testing.T) {
	dir := setupMigrations(t)

	if err := Write(dir); err != nil {
		t.Fatalf("Write: %v", err)
	}

	lf, err := Read(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if lf == nil {
		t.Fatal("expected lock file, got nil")
	}
	if lf.Aggregate == "" {
		t.Error("aggregate should not be empty")
	}
	if len(lf.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lf.Entries))
	}
	if lf.Entries[0].Filename != "0000_init/migration.sql" {
		t.Errorf("expected first entry '0000_init/migration.sql', got %q", lf.Entries[0].Filename)
	}
}

func TestRead_NotFound(t *testing.T) {
	lf, err := Read(filepath.Join(t.TempDir(), "nonexistent.lock"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if lf != nil {
		t.Fatalf("expected nil lock file, got %+v", lf)
	}
}

func TestVerify_OK(t *testing.T) {
	dir := setupMigrations(t)
	if err := Write(dir); err != nil {
		t.Fatal(err)
	}

	res, err := Verify(dir)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Valid || res.Err() != nil {
		t.Fatalf("Verify should pass: %+v", res)
	}
}

func TestVerify_ModifiedFile(t *testing.T) {
	dir := setupMigrations(t)
	Write(dir)

	os.WriteFile(filepath.Join(dir, "0000_init", "migration.sql"), []byte("changed content"), 0644)

	res, err := Verify(dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid || len(res.ModifiedFiles) != 1 {
		t.Fatalf("expected one modified file, got %+v", res)
	}
	if res.Err() == nil {
		t.Error("Err() should report the mismatch")
	}
}

func TestVerify_NewFile(t *testing.T) {
	dir := setupMigrations(t)
	Write(dir)

	os.MkdirAll(filepath.Join(dir, "0002_new"), 0755)
	os.WriteFile(filepath.Join(dir, "0002_new", "migration.sql"), []byte("new"), 0644)

	res, _ := Verify(dir)
	if res.Valid || len(res.NewFiles) != 1 || res.NewFiles[0] != "0002_new/migration.sql" {
		t.Fatalf("expected new file, got %+v", res)
	}
}

func TestVerify_DeletedFile(t *testing.T) {
	dir := setupMigrations(t)
	Write(dir)

	os.RemoveAll(filepath.Join(dir, "0001_users"))

	res, _ := Verify(dir)
	if res.Valid || len(res.RemovedFiles) != 1 {
		t.Fatalf("expected removed file, got %+v", res)
	}
}

func TestVerify_NoLockFile(t *testing.T) {
	dir := setupMigrations(t)

	res, err := Verify(dir)
	if err != nil {
		t.Fatal(err)
	}
	if res.Valid || res.LockFileExists {
		t.Fatalf("Verify should fail when lock file missing: %+v", res)
	}

	empty, _ := Verify(t.TempDir())
	if !empty.Valid {
		t.Error("an empty folder without a lock file is valid")
	}
}

func TestWrite_EmptyDir(t *testing.T) {
	dir := t.TempDir()

	if err := Write(dir); err != nil {
		t.Fatalf("Write empty dir: %v", err)
	}

	lf, _ := Read(filepath.Join(dir, FileName))
	if lf == nil {
		t.Fatal("expected lock file")
	}
	if len(lf.Entries) != 0 {
		t.Errorf("expected 0 entries, got %d", len(lf.Entries))
	}
}

func TestWrite_IgnoresOtherFiles(t *testing.T) {
	dir := setupMigrations(t)
	os.WriteFile(filepath.Join(dir, "readme.md"), []byte("docs"), 0644)
	os.WriteFile(filepath.Join(dir, "0000_init", "snapshot.json"), []byte("{}"), 0644)
	os.MkdirAll(filepath.Join(dir, "drafts"), 0755)

	Write(dir)
	lf, _ := Read(filepath.Join(dir, FileName))
	if len(lf.Entries) != 2 {
		t.Errorf("expected 2 entries (only migration.sql), got %d", len(lf.Entries))
	}
}
