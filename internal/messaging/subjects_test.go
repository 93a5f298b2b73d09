package messaging

import "testing"

func TestEventSubject(t *testing.T) {
	tests := []struct {
		detailType string
		want       string
	}{
		{"ecs-started", "etl.events.ecs-started"},
		{"s3RecordExtraction", "etl.events.s3RecordExtraction"},
		{"transform", "etl.events.transform"},
		{"loaded", "etl.events.loaded"},
	}

	for _, tt := range tests {
		if got := EventSubject(tt.detailType); got != tt.want {
			t.Errorf("EventSubject(%q) = %q, want %q", tt.detailType, got, tt.want)
		}
	}
}

func TestEventSubjectsMatchWildcard(t *testing.T) {
	// Every per-type subject must sit under the observer's wildcard
	// so the broad subscription sees all stage output.
	subjects := []string{
		EventSubject("ecs-started"),
		EventSubject("s3RecordExtraction"),
		EventSubject("transform"),
		EventSubject("loaded"),
	}
	for _, s := range subjects {
		if len(s) <= len(SubjectEventsPrefix) || s[:len(SubjectEventsPrefix)+1] != SubjectEventsPrefix+"." {
			t.Errorf("subject %q is outside the %q namespace", s, SubjectEventsPrefix)
		}
	}
}
