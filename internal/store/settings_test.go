package store

import (
	"testing"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

func TestSettingsPerFamily(t *testing.T) {
	db := setupTestDB(t)
	a := seedFamily(t, db, "Rivera", "ana@example.com")
	b := seedFamily(t, db, "Okafor", "chidi@example.com")
	ss := NewSettingsStore(db)

	v, err := ss.Get(a.family.ID, SettingReminders)
	if err != nil {
		t.Fatalf("get unset: %v", err)
	}
	if v != "" {
		t.Errorf("unset setting = %q, want empty", v)
	}

	if err := ss.Set(a.family.ID, SettingReminders, "false"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ss.Set(a.family.ID, SettingReminders, "true"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, _ = ss.Get(a.family.ID, SettingReminders)
	if v != "true" {
		t.Errorf("setting = %q, want true", v)
	}
	other, _ := ss.Get(b.family.ID, SettingReminders)
	if other != "" {
		t.Errorf("other family sees %q", other)
	}

	all, err := ss.GetAll(a.family.ID)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 1 || all[SettingReminders] != "true" {
		t.Errorf("all = %v", all)
	}
}

func TestSettingsPrize(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "Rivera", "ana@example.com")
	ss := NewSettingsStore(db)

	p, err := ss.GetPrize(f.family.ID, SettingWeeklyPrize)
	if err != nil {
		t.Fatalf("get unset prize: %v", err)
	}
	if p != nil {
		t.Errorf("unset prize = %+v, want nil", p)
	}

	want := model.Prize{Title: "Weekly Champion", PrizeText: "Pick Friday's movie"}
	if err := ss.SetPrize(f.family.ID, SettingWeeklyPrize, want); err != nil {
		t.Fatalf("set prize: %v", err)
	}
	p, err = ss.GetPrize(f.family.ID, SettingWeeklyPrize)
	if err != nil {
		t.Fatalf("get prize: %v", err)
	}
	if p == nil || *p != want {
		t.Errorf("prize = %+v, want %+v", p, want)
	}
}

func TestBackupLifecycle(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBackupStore(db)

	b, err := bs.Create("questtracker-1.db.enc", "backups/questtracker-1.db.enc")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}
	if b.Status != model.BackupStatusPending || b.StartedAt == nil {
		t.Errorf("backup = %+v, want pending with started_at", b)
	}

	latest, err := bs.LatestCompleted()
	if err != nil {
		t.Fatalf("latest completed: %v", err)
	}
	if latest != nil {
		t.Error("no backup has completed yet")
	}

	if err := bs.UpdateStatus(b.ID, model.BackupStatusUploading, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := bs.UpdateCompleted(b.ID, 4096); err != nil {
		t.Fatalf("update completed: %v", err)
	}
	latest, _ = bs.LatestCompleted()
	if latest == nil || latest.ID != b.ID || latest.SizeBytes != 4096 || latest.CompletedAt == nil {
		t.Fatalf("latest = %+v", latest)
	}

	failed, _ := bs.Create("questtracker-2.db.enc", "backups/questtracker-2.db.enc")
	if err := bs.UpdateStatus(failed.ID, model.BackupStatusFailed, "upload failed"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	list, err := bs.List(10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != failed.ID || list[0].ErrorMessage != "upload failed" {
		t.Errorf("list = %+v, want newest first", list)
	}
}

func TestBackupDeleteOlderThan(t *testing.T) {
	db := setupTestDB(t)
	bs := NewBackupStore(db)

	if _, err := bs.Create("a.db.enc", "backups/a.db.enc"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := bs.Create("b.db.enc", "backups/b.db.enc"); err != nil {
		t.Fatalf("create: %v", err)
	}

	keys, err := bs.DeleteOlderThan(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("delete older than an hour ago: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("deleted %v, want nothing", keys)
	}

	keys, err = bs.DeleteOlderThan(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %v, want 2", keys)
	}
	list, _ := bs.List(10)
	if len(list) != 0 {
		t.Errorf("remaining = %d, want 0", len(list))
	}
}
