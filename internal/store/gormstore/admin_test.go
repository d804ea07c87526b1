package gormstore

import (
	"context"
	"testing"

	"github.com/MarkoPoloResearchLab/ninwallet/pkg/ledger"
)

func TestAdminReadModel(test *testing.T) {
	test.Parallel()
	service, db := newTestService(test)
	store := New(db)
	ctx := context.Background()

	ada := mustUserID(test, "ada")
	bola := mustUserID(test, "bola")
	if err := store.UpsertUser(ctx, ada, "ada@example.com", "Ada"); err != nil {
		test.Fatalf("upsert: %v", err)
	}
	if err := store.UpsertUser(ctx, bola, "bola@example.com", "Bola"); err != nil {
		test.Fatalf("upsert: %v", err)
	}
	mustFund(test, service, ada, 1000, "ref-ada")
	mustFund(test, service, bola, 500, "ref-bola")
	label := mustServiceLabel(test, testLabel)
	for _, userID := range []ledger.UserID{ada, bola, bola} {
		if _, err := service.DebitWallet(ctx, userID, mustPositiveAmount(test, 100), label); err != nil {
			test.Fatalf("debit: %v", err)
		}
	}

	users, err := store.CountUsers(ctx)
	if err != nil || users != 2 {
		test.Fatalf("expected 2 users, got %d (%v)", users, err)
	}
	entries, err := store.CountEntries(ctx)
	if err != nil || entries != 5 {
		test.Fatalf("expected 5 entries, got %d (%v)", entries, err)
	}
	fees, err := store.SumAmountByKind(ctx, ledger.EntryServiceFee)
	if err != nil || fees != -300 {
		test.Fatalf("expected fee sum -300, got %d (%v)", fees, err)
	}
	funding, err := store.SumAmountByKind(ctx, ledger.EntryFunding)
	if err != nil || funding != 1500 {
		test.Fatalf("expected funding sum 1500, got %d (%v)", funding, err)
	}

	activity, err := store.RecentActivity(ctx, 3)
	if err != nil {
		test.Fatalf("recent activity: %v", err)
	}
	if len(activity) != 3 {
		test.Fatalf("expected 3 rows, got %d", len(activity))
	}
	newest := activity[0]
	if newest.Email != "bola@example.com" || newest.DisplayName != "Bola" || newest.Kind != ledger.EntryServiceFee || newest.Amount != -100 {
		test.Fatalf("unexpected newest activity: %+v", newest)
	}
	if activity[2].Kind != ledger.EntryServiceFee || activity[2].UserID != "ada" {
		test.Fatalf("unexpected third activity: %+v", activity[2])
	}
}
