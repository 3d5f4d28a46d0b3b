package deck

import "testing"

func testLayout(t *testing.T) *Layout {
	t.Helper()
	l, err := NewLayout("test_deck", map[string]Kind{
		"HSP_Pipette":                 KindPlate96,
		"HSP_Waste":                   KindWaste96,
		"CAR_VIALS_SMALL":             KindEppiCarrier32,
		"RGT_01":                      KindReservoir60,
		"BioRadHardshell_Stack1_0001": KindPlate96,
		"BioRadHardshell_Stack1_0002": KindPlate96,
		"BioRadHardshell_Stack1_0003": KindPlate96,
		"TIP_50ulF_L_0001":            KindTip96,
		"TIP_50ulF_L_0002":            KindTip96,
	})
	if err != nil {
		t.Fatalf("NewLayout() failed: %v", err)
	}
	return l
}

func TestItem_ResolvesSlot(t *testing.T) {
	l := testLayout(t)

	c, err := l.Item("HSP_Pipette", KindPlate96)
	if err != nil {
		t.Fatalf("Item() failed: %v", err)
	}
	if c.Name != "HSP_Pipette" || c.Positions() != 96 {
		t.Errorf("got %s with %d positions", c.Name, c.Positions())
	}
}

func TestItem_MissingSlotIsConfigurationError(t *testing.T) {
	l := testLayout(t)

	_, err := l.Item("MIDI_Pipette", KindPlate96)
	if err == nil {
		t.Fatal("expected error for missing slot")
	}
	if !IsConfiguration(err) {
		t.Errorf("want ConfigurationError, got %T", err)
	}
}

func TestItem_KindMismatchIsConfigurationError(t *testing.T) {
	l := testLayout(t)

	_, err := l.Item("RGT_01", KindPlate96)
	if err == nil {
		t.Fatal("expected error for kind mismatch")
	}
	if !IsConfiguration(err) {
		t.Errorf("want ConfigurationError, got %T", err)
	}
}

func TestItemsWithPrefix_StackOrder(t *testing.T) {
	l := testLayout(t)

	stack := l.ItemsWithPrefix("BioRadHardshell_Stack1", KindPlate96)
	if len(stack) != 3 {
		t.Fatalf("got %d containers, want 3", len(stack))
	}
	for i, c := range stack {
		want := "BioRadHardshell_Stack1_000" + string(rune('1'+i))
		if c.Name != want {
			t.Errorf("stack[%d] = %s, want %s", i, c.Name, want)
		}
	}
}

func TestItemsWithPrefix_FiltersByKind(t *testing.T) {
	l := testLayout(t)

	if got := l.ItemsWithPrefix("TIP_50ulF_L", KindPlate96); len(got) != 0 {
		t.Errorf("want no plate96 matches for tip prefix, got %d", len(got))
	}
	if got := l.ItemsWithPrefix("TIP_50ulF_L", KindTip96); len(got) != 2 {
		t.Errorf("want 2 tip racks, got %d", len(got))
	}
}

func TestRange_FirstNWells(t *testing.T) {
	l := testLayout(t)
	c, _ := l.Item("HSP_Pipette", KindPlate96)

	positions := Range(c, 4)
	if len(positions) != 4 {
		t.Fatalf("got %d positions", len(positions))
	}
	for i, p := range positions {
		if p.Container != c || p.Index != i {
			t.Errorf("positions[%d] = %v", i, p)
		}
	}
}

func TestHash_StableAcrossConstructions(t *testing.T) {
	h1, err := testLayout(t).Hash()
	if err != nil {
		t.Fatalf("Hash() failed: %v", err)
	}
	h2, err := testLayout(t).Hash()
	if err != nil {
		t.Fatalf("Hash() failed: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not stable: %s vs %s", h1, h2)
	}
}

func TestNewLayout_RejectsUnknownKind(t *testing.T) {
	_, err := NewLayout("bad", map[string]Kind{"X": Kind("teacup")})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if !IsConfiguration(err) {
		t.Errorf("want ConfigurationError, got %T", err)
	}
}
