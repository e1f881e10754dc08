package store

import (
	"testing"
	"time"

	"github.com/dukerupert/questtracker/internal/model"
)

func createReward(t *testing.T, rs *RewardStore, familyID int64, title string, points int, available bool) *model.Reward {
	t.Helper()
	r, err := rs.Create(&model.Reward{
		FamilyID:         familyID,
		Title:            title,
		PointsRequired:   points,
		RequiresApproval: true,
		Available:        available,
	})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	return r
}

func TestRewardCRUD(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "Rivera", "ana@example.com")
	rs := NewRewardStore(db)

	limit := 2
	r, err := rs.Create(&model.Reward{
		FamilyID:       f.family.ID,
		Title:          "Ice Cream Trip",
		Description:    "Two scoops",
		PointsRequired: 50,
		QuantityLimit:  &limit,
		Available:      true,
		Icon:           "🍦",
	})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	if r.QuantityLimit == nil || *r.QuantityLimit != 2 {
		t.Errorf("quantity limit = %v, want 2", r.QuantityLimit)
	}
	if r.RequiresApproval {
		t.Error("requires_approval should be false")
	}

	r.Title = "Movie Night"
	r.PointsRequired = 80
	r.QuantityLimit = nil
	updated, err := rs.Update(r)
	if err != nil {
		t.Fatalf("update reward: %v", err)
	}
	if updated.Title != "Movie Night" || updated.PointsRequired != 80 || updated.QuantityLimit != nil {
		t.Errorf("updated = %+v", updated)
	}

	if err := rs.Delete(r.ID); err != nil {
		t.Fatalf("delete reward: %v", err)
	}
	got, err := rs.GetByID(r.ID)
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}
}

func TestRewardListByFamily(t *testing.T) {
	db := setupTestDB(t)
	a := seedFamily(t, db, "Rivera", "ana@example.com")
	b := seedFamily(t, db, "Okafor", "chidi@example.com")
	rs := NewRewardStore(db)

	createReward(t, rs, a.family.ID, "Sticker", 10, true)
	createReward(t, rs, a.family.ID, "Bike", 500, false)
	createReward(t, rs, b.family.ID, "Zoo", 100, true)

	all, err := rs.ListByFamily(a.family.ID, false)
	if err != nil {
		t.Fatalf("list rewards: %v", err)
	}
	if len(all) != 2 || all[0].Title != "Sticker" {
		t.Errorf("rewards = %+v, want Sticker then Bike", all)
	}
	avail, _ := rs.ListByFamily(a.family.ID, true)
	if len(avail) != 1 {
		t.Errorf("available = %d, want 1", len(avail))
	}
}

func TestRedemptionStatusGuard(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "Rivera", "ana@example.com")
	rs := NewRewardStore(db)
	rw := createReward(t, rs, f.family.ID, "Sticker", 10, true)

	red, err := rs.CreateRedemption(&model.Redemption{
		RewardID:    rw.ID,
		ChildID:     f.child.ID,
		RewardTitle: rw.Title,
		PointsSpent: rw.PointsRequired,
		Status:      model.RedemptionPendingApproval,
	})
	if err != nil {
		t.Fatalf("create redemption: %v", err)
	}
	if red.ApprovalTimestamp != nil {
		t.Error("pending redemption should have no approval timestamp")
	}

	ok, err := rs.SetRedemptionStatus(red.ID, model.RedemptionPendingApproval, model.RedemptionApproved, time.Now())
	if err != nil || !ok {
		t.Fatalf("approve: ok=%v err=%v", ok, err)
	}
	ok, err = rs.SetRedemptionStatus(red.ID, model.RedemptionPendingApproval, model.RedemptionDeclined, time.Now())
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if ok {
		t.Error("declining an approved redemption should not apply")
	}

	got, _ := rs.GetRedemption(red.ID)
	if got.Status != model.RedemptionApproved || got.ApprovalTimestamp == nil {
		t.Errorf("redemption = %+v", got)
	}
}

func TestRedemptionListsAndCount(t *testing.T) {
	db := setupTestDB(t)
	f := seedFamily(t, db, "Rivera", "ana@example.com")
	rs := NewRewardStore(db)
	rw := createReward(t, rs, f.family.ID, "Sticker", 10, true)

	for _, st := range []model.RedemptionStatus{model.RedemptionPendingApproval, model.RedemptionRedeemed, model.RedemptionDeclined} {
		if _, err := rs.CreateRedemption(&model.Redemption{
			RewardID: rw.ID, ChildID: f.child.ID, RewardTitle: rw.Title, PointsSpent: 10, Status: st,
		}); err != nil {
			t.Fatalf("create redemption: %v", err)
		}
	}

	n, err := rs.CountActiveRedemptions(rw.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("active = %d, want 2", n)
	}

	mine, _ := rs.ListRedemptionsByChild(f.child.ID)
	if len(mine) != 3 {
		t.Errorf("child redemptions = %d, want 3", len(mine))
	}
	pending, _ := rs.ListRedemptionsByFamily(f.family.ID, model.RedemptionPendingApproval)
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
	all, _ := rs.ListRedemptionsByFamily(f.family.ID, "")
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}
}
