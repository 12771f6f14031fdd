package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/communahq/communa-backend/pkg/db/models"
)

func TestDedupeAscendingCanonicalLockOrder(t *testing.T) {
	t.Parallel()

	a := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	b := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	c := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	got := dedupeAscending([]uuid.UUID{c, a, b, a, c, uuid.Nil})
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0] != a || got[1] != b || got[2] != c {
		t.Errorf("order = %v, want ascending [a b c]", got)
	}

	// Two callers locking overlapping wallets must derive the same order
	// regardless of how their inputs were assembled.
	other := dedupeAscending([]uuid.UUID{b, c, b, a})
	if len(other) != 3 || other[0] != got[0] || other[1] != got[1] || other[2] != got[2] {
		t.Errorf("order depends on input arrangement: %v vs %v", other, got)
	}

	if got := dedupeAscending(nil); len(got) != 0 {
		t.Errorf("nil input = %v, want empty", got)
	}
}

func TestLockWalletsSeedsMissingAndKeepsExisting(t *testing.T) {
	t.Parallel()

	gdb := newTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	existing := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	fresh := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	if err := gdb.Create(&models.Wallet{UserID: existing, BalanceCents: 4200}).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	wallets, err := repo.LockWallets(ctx, []uuid.UUID{fresh, existing})
	if err != nil {
		t.Fatalf("lock wallets: %v", err)
	}
	if len(wallets) != 2 {
		t.Fatalf("len = %d, want 2", len(wallets))
	}
	if wallets[existing].BalanceCents != 4200 {
		t.Errorf("existing balance = %d, want 4200 (seed insert must not clobber the row)", wallets[existing].BalanceCents)
	}
	if wallets[fresh].BalanceCents != 0 {
		t.Errorf("fresh balance = %d, want 0", wallets[fresh].BalanceCents)
	}

	// Locking again replays the seed inserts against rows that now all
	// exist; the duplicate-key losses must stay invisible to the caller.
	again, err := repo.LockWallets(ctx, []uuid.UUID{existing, fresh})
	if err != nil {
		t.Fatalf("relock wallets: %v", err)
	}
	if again[existing].BalanceCents != 4200 {
		t.Errorf("relocked balance = %d, want 4200", again[existing].BalanceCents)
	}
}
