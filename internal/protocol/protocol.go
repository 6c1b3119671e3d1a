package protocol

import (
	"fmt"
	"net/url"
	"strings"
)

// Event names the closed set of cross-process wake-up signals. Events carry
// no payload; the receiver re-reads the shared store for data.
type Event string

const (
	EventAudioReady         Event = "AudioReady"
	EventTranscriptionReady Event = "TranscriptionReady"
	EventAppRunning         Event = "AppRunning"
)

// Subject maps an event onto its bus subject.
func (e Event) Subject() string {
	switch e {
	case EventAudioReady:
		return "voxkey.evt.audio_ready"
	case EventTranscriptionReady:
		return "voxkey.evt.transcription_ready"
	case EventAppRunning:
		return "voxkey.evt.app_running"
	}
	return ""
}

// Valid reports whether e belongs to the closed event set.
func (e Event) Valid() bool {
	return e.Subject() != ""
}

// Shared store key names. Stable across processes; do not rename.
const (
	KeyTranscribedText  = "transcribedText"
	KeyAppRunning       = "app_running"
	KeyCustomVocabulary = "custom_vocabulary"
)

// IntentScheme is the custom URI scheme the keyboard client uses to
// foreground the daemon. Two routes exist: the bare scheme means "open and
// record", the help route means "open and show help". No other parameters
// are passed; all data flows through the shared store and the notifier.
const IntentScheme = "voxkey"

// IntentRoute identifies what an intent URI asks the host to do.
type IntentRoute string

const (
	IntentRecord IntentRoute = "record"
	IntentHelp   IntentRoute = "help"
)

// RecordIntentURI returns the bare open-and-record URI.
func RecordIntentURI() string {
	return IntentScheme + "://"
}

// HelpIntentURI returns the open-and-show-help URI.
func HelpIntentURI() string {
	return IntentScheme + "://help"
}

// ParseIntent validates an intent URI and returns its route.
func ParseIntent(raw string) (IntentRoute, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse intent uri: %w", err)
	}
	if u.Scheme != IntentScheme {
		return "", fmt.Errorf("unsupported intent scheme %q", u.Scheme)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return "", fmt.Errorf("intent uri must not carry parameters")
	}
	route := strings.Trim(u.Host+u.Path, "/")
	switch route {
	case "":
		return IntentRecord, nil
	case "help":
		return IntentHelp, nil
	default:
		return "", fmt.Errorf("unknown intent route %q", route)
	}
}
