package trace

import "testing"

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{
		"volume": 7.5,
		"count":  96,
		"op":     "pip_transfer",
	})
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	want := `{"count":96,"op":"pip_transfer","volume":7.5}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestMarshalCanonical_FloatShortestForm(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{792.0, "792"},
		{7.5, "7.5"},
		{0.5, "0.5"},
		{200, "200"},
	}
	for _, tc := range cases {
		b, err := MarshalCanonical(tc.in)
		if err != nil {
			t.Fatalf("MarshalCanonical(%v) failed: %v", tc.in, err)
		}
		if string(b) != tc.want {
			t.Errorf("MarshalCanonical(%v) = %s, want %s", tc.in, b, tc.want)
		}
	}
}

func TestMarshalCanonical_RejectsNil(t *testing.T) {
	if _, err := MarshalCanonical(nil); err == nil {
		t.Error("expected error for nil")
	}
	if _, err := MarshalCanonical(map[string]any{"x": nil}); err == nil {
		t.Error("expected error for nil object value")
	}
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// "µ" has a compatibility twin; NFC keeps U+00B5 but composes
	// decomposed sequences. "é" must compose to "é".
	b, err := MarshalCanonical("é")
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	if string(b) != `"é"` {
		t.Errorf("got %s, want %q", b, `"é"`)
	}
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical("a<b>&c")
	if err != nil {
		t.Fatalf("MarshalCanonical() failed: %v", err)
	}
	if string(b) != `"a<b>&c"` {
		t.Errorf("got %s", b)
	}
}

func TestClock_MonotonicSequence(t *testing.T) {
	c := NewClock()
	for i := int64(1); i <= 5; i++ {
		if got := c.Next(); got != i {
			t.Fatalf("Next() = %d, want %d", got, i)
		}
	}
	if c.Current() != 5 {
		t.Errorf("Current() = %d, want 5", c.Current())
	}
}

func TestRecorder_StampsEventsInOrder(t *testing.T) {
	r := NewRecorder()
	r.Record("pip_transfer", "HSP_Pipette", map[string]any{"volume": 7.5})
	r.Record("transport", "MIDI_OnMagnet", nil)

	evs := r.Events()
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Seq != 1 || evs[1].Seq != 2 {
		t.Errorf("seq numbers = %d, %d; want 1, 2", evs[0].Seq, evs[1].Seq)
	}
	if evs[0].Op != "pip_transfer" || evs[1].Op != "transport" {
		t.Errorf("ops = %q, %q", evs[0].Op, evs[1].Op)
	}
}

func TestSnapshotHash_Deterministic(t *testing.T) {
	s := &Snapshot{
		Protocol: "lsk109",
		Events: []Event{
			{Seq: 1, Op: "pip_transfer", Target: "HSP_Pipette", Args: map[string]any{"volume": 7.5}},
		},
	}
	h1, err := SnapshotHash(s)
	if err != nil {
		t.Fatalf("SnapshotHash() failed: %v", err)
	}
	h2, err := SnapshotHash(s)
	if err != nil {
		t.Fatalf("SnapshotHash() failed: %v", err)
	}
	if h1 != h2 {
		t.Errorf("hash not deterministic: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}
}

func TestSnapshotHash_DomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	if HashWithDomain(DomainLayout, data) == HashWithDomain(DomainTrace, data) {
		t.Error("layout and trace domains must hash differently")
	}
}
