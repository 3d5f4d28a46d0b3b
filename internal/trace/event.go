package trace

// Event is one recorded controller call.
//
// Op names the primitive ("pip_transfer", "transport", "odtc_execute",
// "timer_wait", ...), Target the resource or device it acted on, and
// Args its scalar parameters. Args values are restricted to the types
// MarshalCanonical accepts.
type Event struct {
	Seq    int64          `json:"seq"`
	Op     string         `json:"op"`
	Target string         `json:"target,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
}

// Recorder accumulates events stamped by a logical clock.
//
// Recorder is NOT safe for concurrent use. A run has exactly one
// logical thread of control, so the simulated controller appends from
// a single goroutine.
type Recorder struct {
	clock  *Clock
	events []Event
}

// NewRecorder creates an empty recorder with a fresh clock.
func NewRecorder() *Recorder {
	return &Recorder{clock: NewClock()}
}

// Record appends an event, stamping it with the next sequence number.
func (r *Recorder) Record(op, target string, args map[string]any) Event {
	ev := Event{
		Seq:    r.clock.Next(),
		Op:     op,
		Target: target,
		Args:   args,
	}
	r.events = append(r.events, ev)
	return ev
}

// Events returns the recorded events in order. The returned slice is a
// copy; mutating it does not affect the recorder.
func (r *Recorder) Events() []Event {
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	return len(r.events)
}

// Snapshot captures the complete trace for one run.
// All fields use canonical JSON serialization for deterministic
// comparison against golden files.
type Snapshot struct {
	Protocol string  `json:"protocol"`
	RunToken string  `json:"run_token,omitempty"`
	Events   []Event `json:"events"`
}

// toCanonicalMap converts a Snapshot to map[string]any for canonical
// serialization. Required because MarshalCanonical only handles plain
// maps, slices and scalars.
func (s *Snapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Events))
	for i, ev := range s.Events {
		m := map[string]any{
			"seq": ev.Seq,
			"op":  ev.Op,
		}
		if ev.Target != "" {
			m["target"] = ev.Target
		}
		if len(ev.Args) > 0 {
			m["args"] = ev.Args
		}
		events[i] = m
	}
	out := map[string]any{
		"protocol": s.Protocol,
		"events":   events,
	}
	if s.RunToken != "" {
		out["run_token"] = s.RunToken
	}
	return out
}

// MarshalSnapshot serializes a snapshot as canonical JSON.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return MarshalCanonical(s.toCanonicalMap())
}
