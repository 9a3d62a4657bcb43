package router

import "testing"

func TestClassifyTerminalTags(t *testing.T) {
	for _, tag := range []string{"terminal:spawn", "terminal:input", "terminal:resize", "terminal:kill", "terminal:replay"} {
		if got := ClassifyTag(tag); got != ClassTerminal {
			t.Fatalf("ClassifyTag(%q) = %v, want terminal", tag, got)
		}
	}
}

func TestClassifyCommandTags(t *testing.T) {
	for _, tag := range []string{"command", "cancel", "input"} {
		if got := ClassifyTag(tag); got != ClassCommand {
			t.Fatalf("ClassifyTag(%q) = %v, want command", tag, got)
		}
	}
}

func TestClassifyFileWatchTags(t *testing.T) {
	for _, tag := range []string{"start_file_monitoring", "stop_file_monitoring"} {
		if got := ClassifyTag(tag); got != ClassFileWatch {
			t.Fatalf("ClassifyTag(%q) = %v, want file-watch", tag, got)
		}
	}
}

func TestClassifyPing(t *testing.T) {
	if got := ClassifyTag("ping"); got != ClassPing {
		t.Fatalf("got %v, want ping", got)
	}
}

func TestClassifyUnknown(t *testing.T) {
	if got := ClassifyTag("bogus"); got != ClassUnknown {
		t.Fatalf("got %v, want unknown", got)
	}
}

func TestClassifyFromRawFrame(t *testing.T) {
	raw := []byte(`{"type":"terminal:spawn","sessionId":"a"}`)
	if got := Classify(raw); got != ClassTerminal {
		t.Fatalf("got %v, want terminal", got)
	}
}

func TestClassifyMalformedJSONIsUnknown(t *testing.T) {
	if got := Classify([]byte(`{not json`)); got != ClassUnknown {
		t.Fatalf("got %v, want unknown", got)
	}
}
