package protocol

import "testing"

func TestEventSubjects(t *testing.T) {
	cases := map[Event]string{
		EventAudioReady:         "voxkey.evt.audio_ready",
		EventTranscriptionReady: "voxkey.evt.transcription_ready",
		EventAppRunning:         "voxkey.evt.app_running",
	}
	for event, subject := range cases {
		if got := event.Subject(); got != subject {
			t.Fatalf("event %s: expected subject %q, got %q", event, subject, got)
		}
		if !event.Valid() {
			t.Fatalf("event %s should be valid", event)
		}
	}
	if Event("Bogus").Valid() {
		t.Fatal("unknown event must not validate")
	}
}

func TestParseIntent(t *testing.T) {
	cases := []struct {
		name    string
		uri     string
		route   IntentRoute
		wantErr bool
	}{
		{"bare record", "voxkey://", IntentRecord, false},
		{"built record uri", RecordIntentURI(), IntentRecord, false},
		{"help", "voxkey://help", IntentHelp, false},
		{"built help uri", HelpIntentURI(), IntentHelp, false},
		{"help trailing slash", "voxkey://help/", IntentHelp, false},
		{"wrong scheme", "https://help", "", true},
		{"unknown route", "voxkey://settings", "", true},
		{"query params rejected", "voxkey://?text=x", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			route, err := ParseIntent(tc.uri)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.uri)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tc.uri, err)
			}
			if route != tc.route {
				t.Fatalf("expected route %q, got %q", tc.route, route)
			}
		})
	}
}
