package status

import "testing"

func TestInitialStateIsRecording(t *testing.T) {
	tr := NewTracker()
	if tr.Current() != Recording {
		t.Fatalf("expected initial Recording, got %v", tr.Current())
	}
}

func TestSetNotifiesWatchers(t *testing.T) {
	tr := NewTracker()
	var seen []Status
	tr.Watch(func(s Status) { seen = append(seen, s) })

	tr.Set(Transcribing)
	tr.Set(Finished)

	want := []Status{Recording, Transcribing, Finished}
	if len(seen) != len(want) {
		t.Fatalf("expected %d notifications, got %d", len(want), len(seen))
	}
	for i, s := range want {
		if seen[i] != s {
			t.Fatalf("notification %d: expected %v, got %v", i, s, seen[i])
		}
	}
}

func TestSetSameValueDoesNotNotify(t *testing.T) {
	tr := NewTracker()
	count := 0
	tr.Watch(func(Status) { count++ })

	tr.Set(Recording)
	if count != 1 {
		t.Fatalf("expected only the initial delivery, got %d", count)
	}
}

func TestTerminalStatesAreReenterable(t *testing.T) {
	for _, terminal := range []Status{Finished, Error} {
		tr := NewTracker()
		tr.Set(terminal)
		tr.Reset()
		if tr.Current() != Recording {
			t.Fatalf("expected Reset from %v to reach Recording, got %v", terminal, tr.Current())
		}
	}
}

func TestStringNames(t *testing.T) {
	cases := map[Status]string{
		Recording:    "recording",
		Transcribing: "transcribing",
		Finished:     "finished",
		Error:        "error",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Fatalf("expected %q, got %q", want, s.String())
		}
	}
}
