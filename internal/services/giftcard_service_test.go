package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/maitri/internal/models"
	"github.com/example/maitri/internal/utils"
)

func newGiftCardService(t *testing.T) *GiftCardService {
	t.Helper()
	return NewGiftCardService(newTestDB(t), 12, "gbp")
}

func issue(t *testing.T, svc *GiftCardService, amount string) *models.GiftCard {
	t.Helper()
	card, err := svc.Create(context.Background(), CreateGiftCardInput{
		Amount:         dec(amount),
		BuyerName:      "Ada Buyer",
		BuyerEmail:     "ada@example.com",
		RecipientName:  "Grace Recipient",
		RecipientEmail: "grace@example.com",
		Message:        "Enjoy",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return card
}

func TestCreateGiftCard(t *testing.T) {
	svc := newGiftCardService(t)
	purchased := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = fixedClock(purchased)

	card := issue(t, svc, "50")

	if !utils.IsGiftCode(card.Code) {
		t.Errorf("code %q is not XXXX-XXXX-XX", card.Code)
	}
	if card.Status != models.GiftCardStatusActive {
		t.Errorf("status = %s", card.Status)
	}
	if !card.OriginalAmount.Equal(dec("50")) || !card.CurrentAmount.Equal(dec("50")) {
		t.Errorf("amounts = %s/%s", card.OriginalAmount, card.CurrentAmount)
	}
	if card.Currency != "gbp" {
		t.Errorf("currency = %q", card.Currency)
	}
	if want := purchased.AddDate(0, 12, 0); !card.ExpiryDate.Equal(want) {
		t.Errorf("expiry = %v, want %v", card.ExpiryDate, want)
	}
	if len(card.History) != 1 || card.History[0].Action != models.GiftCardActionCreated {
		t.Fatalf("history = %+v", card.History)
	}
	if card.History[0].Note != "Gift card created" || !card.History[0].Balance.Equal(dec("50")) {
		t.Errorf("created entry = %+v", card.History[0])
	}

	byCode, err := svc.GetByCode(context.Background(), card.Code)
	if err != nil {
		t.Fatalf("GetByCode: %v", err)
	}
	if byCode.ID != card.ID {
		t.Errorf("GetByCode returned %s, want %s", byCode.ID, card.ID)
	}
}

func TestCreateGiftCardValidation(t *testing.T) {
	svc := newGiftCardService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateGiftCardInput{Amount: dec("0")}); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount: err = %v", err)
	}
	if _, err := svc.Create(ctx, CreateGiftCardInput{Amount: dec("10"), Code: "nope"}); !errors.Is(err, ErrInvalidGiftCode) {
		t.Errorf("bad code: err = %v", err)
	}

	if _, err := svc.Create(ctx, CreateGiftCardInput{Amount: dec("10"), Code: "ABCD-EFGH-JK"}); err != nil {
		t.Fatalf("explicit code: %v", err)
	}
	if _, err := svc.Create(ctx, CreateGiftCardInput{Amount: dec("10"), Code: "abcd-efgh-jk"}); !errors.Is(err, ErrDuplicateGiftCode) {
		t.Errorf("duplicate code: err = %v", err)
	}
}

func TestCreateGiftCardIsIdempotentPerPaymentIntent(t *testing.T) {
	svc := newGiftCardService(t)
	ctx := context.Background()
	in := CreateGiftCardInput{Amount: dec("25"), BuyerEmail: "ada@example.com", PaymentIntentID: "pi_123"}

	first, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	second, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if first.ID != second.ID || first.Code != second.Code {
		t.Errorf("second create returned a new card: %s vs %s", first.ID, second.ID)
	}

	cards, err := svc.List(ctx, GiftCardFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(cards) != 1 {
		t.Errorf("cards = %d, want 1", len(cards))
	}
}

func TestUpdateAmountDownToExhausted(t *testing.T) {
	svc := newGiftCardService(t)
	ctx := context.Background()
	card := issue(t, svc, "50")

	card, err := svc.UpdateAmount(ctx, card.ID, dec("20"), "")
	if err != nil {
		t.Fatalf("UpdateAmount(20): %v", err)
	}
	if !card.CurrentAmount.Equal(dec("20")) || card.Status != models.GiftCardStatusActive {
		t.Errorf("after 20: amount %s status %s", card.CurrentAmount, card.Status)
	}
	if len(card.History) != 2 {
		t.Fatalf("history after 20 = %d entries, want 2", len(card.History))
	}
	entry := card.History[1]
	if entry.Action != models.GiftCardActionAmountUpdate || entry.Note != "Amount updated" {
		t.Errorf("amount entry = %+v", entry)
	}
	if entry.PreviousAmount == nil || !entry.PreviousAmount.Equal(dec("50")) || entry.NewAmount == nil || !entry.NewAmount.Equal(dec("20")) {
		t.Errorf("amount entry values = %v -> %v", entry.PreviousAmount, entry.NewAmount)
	}

	card, err = svc.UpdateAmount(ctx, card.ID, dec("0"), "Redeemed in clinic")
	if err != nil {
		t.Fatalf("UpdateAmount(0): %v", err)
	}
	if card.Status != models.GiftCardStatusExhausted || !card.CurrentAmount.IsZero() {
		t.Errorf("after 0: amount %s status %s", card.CurrentAmount, card.Status)
	}
	if len(card.History) != 4 {
		t.Fatalf("history after 0 = %d entries, want 4", len(card.History))
	}
	if card.History[2].Note != "Redeemed in clinic" {
		t.Errorf("note = %q", card.History[2].Note)
	}
	status := card.History[3]
	if status.Action != models.GiftCardActionStatusUpdate ||
		status.PreviousStatus != models.GiftCardStatusActive ||
		status.NewStatus != models.GiftCardStatusExhausted {
		t.Errorf("status entry = %+v", status)
	}
	if status.Note != "Status changed from active to exhausted due to amount update" {
		t.Errorf("status note = %q", status.Note)
	}
}

func TestUpdateAmountZeroExhaustsAnyStatus(t *testing.T) {
	svc := newGiftCardService(t)
	ctx := context.Background()
	card := issue(t, svc, "30")

	if _, err := svc.UpdateStatus(ctx, card.ID, models.GiftCardStatusClosed, ""); err != nil {
		t.Fatalf("UpdateStatus(closed): %v", err)
	}
	card, err := svc.UpdateAmount(ctx, card.ID, dec("0"), "")
	if err != nil {
		t.Fatalf("UpdateAmount(0): %v", err)
	}
	if card.Status != models.GiftCardStatusExhausted {
		t.Errorf("status = %s, want exhausted", card.Status)
	}
}

func TestUpdateAmountRejectsBalanceOnInactiveCard(t *testing.T) {
	svc := newGiftCardService(t)
	ctx := context.Background()
	card := issue(t, svc, "30")

	if _, err := svc.UpdateStatus(ctx, card.ID, models.GiftCardStatusClosed, ""); err != nil {
		t.Fatalf("UpdateStatus(closed): %v", err)
	}

	_, err := svc.UpdateAmount(ctx, card.ID, dec("5"), "")
	var inactive *InactiveGiftCardError
	if !errors.As(err, &inactive) || inactive.Status != models.GiftCardStatusClosed {
		t.Fatalf("err = %v, want InactiveGiftCardError for closed", err)
	}

	unchanged, err := svc.Get(ctx, card.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !unchanged.CurrentAmount.Equal(dec("30")) || len(unchanged.History) != 2 {
		t.Errorf("rejected update changed the card: %s with %d history entries", unchanged.CurrentAmount, len(unchanged.History))
	}
}

func TestUpdateAmountRejectsOutOfRange(t *testing.T) {
	svc := newGiftCardService(t)
	ctx := context.Background()
	card := issue(t, svc, "50")

	if _, err := svc.UpdateAmount(ctx, card.ID, dec("-1"), ""); !errors.Is(err, ErrNegativeAmount) {
		t.Errorf("negative: err = %v", err)
	}
	if _, err := svc.UpdateAmount(ctx, card.ID, dec("50.01"), ""); !errors.Is(err, ErrAmountAboveOriginal) {
		t.Errorf("above original: err = %v", err)
	}
	if _, err := svc.UpdateAmount(ctx, "missing", dec("1"), ""); !errors.Is(err, ErrGiftCardNotFound) {
		t.Errorf("missing card: err = %v", err)
	}

	unchanged, err := svc.Get(ctx, card.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(unchanged.History) != 1 || !unchanged.CurrentAmount.Equal(dec("50")) {
		t.Errorf("rejected updates changed the card: %+v", unchanged)
	}
}

func TestUpdateStatusNeverReactivates(t *testing.T) {
	svc := newGiftCardService(t)
	ctx := context.Background()
	card := issue(t, svc, "40")

	card, err := svc.UpdateStatus(ctx, card.ID, models.GiftCardStatusClosed, "")
	if err != nil {
		t.Fatalf("UpdateStatus(closed): %v", err)
	}
	last := card.History[len(card.History)-1]
	if last.Note != "Status changed from active to closed" || last.NewStatus != models.GiftCardStatusClosed {
		t.Errorf("status entry = %+v", last)
	}

	if _, err := svc.UpdateStatus(ctx, card.ID, models.GiftCardStatusActive, ""); !errors.Is(err, ErrReactivation) {
		t.Errorf("reactivation: err = %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, card.ID, "frozen", ""); !errors.Is(err, ErrInvalidGiftCardState) {
		t.Errorf("unknown status: err = %v", err)
	}

	reloaded, err := svc.Get(ctx, card.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if reloaded.Status != models.GiftCardStatusClosed || len(reloaded.History) != 2 {
		t.Errorf("card = %s with %d history entries", reloaded.Status, len(reloaded.History))
	}
}

func TestSweepExpired(t *testing.T) {
	svc := newGiftCardService(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	svc.now = fixedClock(now.AddDate(-2, 0, 0))
	old := issue(t, svc, "20")
	closed := issue(t, svc, "20")
	if _, err := svc.UpdateStatus(ctx, closed.ID, models.GiftCardStatusClosed, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	svc.now = fixedClock(now.AddDate(0, -1, 0))
	fresh := issue(t, svc, "20")

	svc.now = fixedClock(now)
	n, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d cards, want 1", n)
	}

	n, err = svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("second SweepExpired: %v", err)
	}
	if n != 0 {
		t.Errorf("second sweep changed %d cards, want 0", n)
	}

	expired, err := svc.Get(ctx, old.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if expired.Status != models.GiftCardStatusExpired {
		t.Errorf("old card status = %s", expired.Status)
	}
	last := expired.History[len(expired.History)-1]
	if last.Note != "Automatically marked as expired" || last.PreviousStatus != models.GiftCardStatusActive {
		t.Errorf("expiry entry = %+v", last)
	}

	for id, want := range map[string]string{closed.ID: models.GiftCardStatusClosed, fresh.ID: models.GiftCardStatusActive} {
		card, err := svc.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if card.Status != want {
			t.Errorf("card %s status = %s, want %s", id, card.Status, want)
		}
	}
}

func TestListGiftCardsFilters(t *testing.T) {
	svc := newGiftCardService(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	svc.now = fixedClock(now.AddDate(0, -8, 0))
	older, err := svc.Create(ctx, CreateGiftCardInput{Amount: dec("10"), BuyerName: "Old Buyer", BuyerEmail: "old@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	svc.now = fixedClock(now.AddDate(0, 0, -3))
	recent, err := svc.Create(ctx, CreateGiftCardInput{Amount: dec("10"), BuyerName: "Recent Buyer", BuyerEmail: "recent@example.com"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.UpdateStatus(ctx, older.ID, models.GiftCardStatusClosed, ""); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	tests := []struct {
		name   string
		filter GiftCardFilter
		want   []string
	}{
		{"all newest first", GiftCardFilter{}, []string{recent.ID, older.ID}},
		{"status", GiftCardFilter{Status: models.GiftCardStatusClosed}, []string{older.ID}},
		{"search email", GiftCardFilter{Search: "RECENT@"}, []string{recent.ID}},
		{"search code", GiftCardFilter{Search: older.Code}, []string{older.ID}},
		{"since", GiftCardFilter{Since: now.AddDate(0, 0, -30)}, []string{recent.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, err := svc.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(cards) != len(tt.want) {
				t.Fatalf("got %d cards, want %d", len(cards), len(tt.want))
			}
			for i, id := range tt.want {
				if cards[i].ID != id {
					t.Errorf("cards[%d] = %s, want %s", i, cards[i].ID, id)
				}
			}
		})
	}
}
