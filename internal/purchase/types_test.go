package purchase

import "testing"

func TestStatusTerminal(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPending, false},
		{StatusProcessing, false},
		{StatusMinting, false},
		{StatusMinted, false},
		{StatusClaiming, false},
		{StatusClaimed, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusRefunded, true},
		{StatusDisputed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestStatusAccessGranting(t *testing.T) {
	// The mint/claim intermediates unlock playback even though the NFT is
	// still in flight; failures never do.
	granting := []Status{StatusMinting, StatusMinted, StatusClaiming, StatusClaimed, StatusCompleted}
	for _, s := range granting {
		if !s.AccessGranting() {
			t.Errorf("%s should be access-granting", s)
		}
	}
	denied := []Status{StatusPending, StatusProcessing, StatusFailed, StatusRefunded, StatusDisputed}
	for _, s := range denied {
		if s.AccessGranting() {
			t.Errorf("%s should not be access-granting", s)
		}
	}
}

func TestRecordRef(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		want   string
	}{
		{"purchase id wins", Record{PurchaseID: "pur_1", SessionID: "cs_1", TxHash: "0xabc"}, "pur_1"},
		{"session id before tx hash", Record{SessionID: "cs_1", TxHash: "0xabc"}, "cs_1"},
		{"tx hash last", Record{TxHash: "0xabc"}, "0xabc"},
		{"empty", Record{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.Ref(); got != tt.want {
				t.Errorf("Ref() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestViewMonotonicity(t *testing.T) {
	view := NewView()

	view.Apply(Record{SessionID: "cs_1", Status: StatusCompleted, ItemID: "p1"})

	// A stale non-terminal observation must not regress the terminal view.
	merged, accepted := view.Apply(Record{SessionID: "cs_1", Status: StatusProcessing})
	if accepted {
		t.Error("regression from terminal to non-terminal was accepted")
	}
	if merged.Status != StatusCompleted {
		t.Errorf("view regressed to %s", merged.Status)
	}

	got, _ := view.Get("cs_1")
	if got.Status != StatusCompleted || got.ItemID != "p1" {
		t.Errorf("view holds %+v", got)
	}
}

func TestViewPreservesItemID(t *testing.T) {
	view := NewView()
	view.Apply(Record{SessionID: "cs_1", Status: StatusProcessing, ItemID: "p1"})

	// Later payloads on some endpoints omit itemId; the view must not forget it.
	merged, accepted := view.Apply(Record{SessionID: "cs_1", Status: StatusMinting})
	if !accepted {
		t.Fatal("forward transition rejected")
	}
	if merged.ItemID != "p1" {
		t.Errorf("itemId erased, got %q", merged.ItemID)
	}

	// A payload naming a different item must not rebind the purchase.
	merged, accepted = view.Apply(Record{SessionID: "cs_1", Status: StatusMinted, ItemID: "p2"})
	if !accepted {
		t.Fatal("forward transition rejected")
	}
	if merged.ItemID != "p1" {
		t.Errorf("itemId rebound to %q, want original p1", merged.ItemID)
	}
	got, _ := view.Get("cs_1")
	if got.ItemID != "p1" {
		t.Errorf("view holds itemId %q, want p1", got.ItemID)
	}
}
