package webhook

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSupportedEvents(t *testing.T) {
	if len(SupportedEvents) != 28 {
		t.Fatalf("expected 28 supported events, got %d", len(SupportedEvents))
	}
	seen := map[string]bool{}
	for _, e := range SupportedEvents {
		if seen[e] {
			t.Errorf("duplicate event %q", e)
		}
		seen[e] = true
		if !IsSupported(e) {
			t.Errorf("IsSupported(%q) = false", e)
		}
		if ResourceOf(e) == "" {
			t.Errorf("ResourceOf(%q) is empty", e)
		}
	}
	for _, e := range []string{"", "taskcreated", "docCreated", "automationTriggered"} {
		if IsSupported(e) {
			t.Errorf("IsSupported(%q) = true", e)
		}
	}
}

func TestEventsReturnsCopy(t *testing.T) {
	ev := Events()
	ev[0] = "mutated"
	if SupportedEvents[0] != "taskCreated" {
		t.Fatal("Events must not alias SupportedEvents")
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]Resource{
		"taskMoved":        ResourceTask,
		"listDeleted":      ResourceList,
		"folderUpdated":    ResourceFolder,
		"spaceCreated":     ResourceSpace,
		"goalDeleted":      ResourceGoal,
		"keyResultCreated": ResourceKeyResult,
		"unknownThing":     "",
	}
	for e, want := range tests {
		if got := ResourceOf(e); got != want {
			t.Errorf("ResourceOf(%q) = %q, want %q", e, got, want)
		}
	}
}

func TestVerify(t *testing.T) {
	body := []byte(`{"event":"taskCreated","webhook_id":"w1"}`)
	secret := "whsec"
	sig := Sign(body, secret)

	if err := Verify(sig, body, secret); err != nil {
		t.Fatalf("bare hex: %v", err)
	}
	if err := Verify("sha256="+sig, body, secret); err != nil {
		t.Fatalf("prefixed hex: %v", err)
	}
	if err := Verify(strings.ToUpper(sig), body, secret); err != nil {
		t.Fatalf("uppercase hex should decode to the same digest: %v", err)
	}
}

func TestVerify_BitFlips(t *testing.T) {
	body := []byte(`{"event":"taskUpdated","webhook_id":"abc","task_id":"t1"}`)
	secret := "s3cr3t"
	sig := Sign(body, secret)

	for i := range body {
		for bit := range 8 {
			tampered := []byte(string(body))
			tampered[i] ^= 1 << bit
			if err := Verify(sig, tampered, secret); !errors.Is(err, ErrSignatureMismatch) {
				t.Fatalf("flip byte %d bit %d: expected mismatch, got %v", i, bit, err)
			}
		}
	}
	for i := range secret {
		s := []byte(secret)
		s[i] ^= 1
		if err := Verify(sig, body, string(s)); !errors.Is(err, ErrSignatureMismatch) {
			t.Fatalf("flip secret byte %d: expected mismatch, got %v", i, err)
		}
	}
}

func TestVerify_Errors(t *testing.T) {
	body := []byte("{}")
	tests := []struct {
		name   string
		sig    string
		secret string
		want   error
	}{
		{"no signature", "", "s", ErrMissingSignature},
		{"no secret", "abcd", "", ErrMissingSignature},
		{"not hex", "zz-not-hex", "s", ErrMalformedSignature},
		{"truncated", Sign(body, "s")[:10], "s", ErrSignatureMismatch},
		{"empty after prefix", "sha256=", "s", ErrSignatureMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Verify(tt.sig, body, tt.secret); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload([]byte(`{"event":"taskCreated","webhook_id":"w1","task_id":"t1","team_id":9001,"history_items":[{"id":"h"}]}`))
	if err != nil {
		t.Fatalf("ParsePayload: %v", err)
	}
	if p.Event != "taskCreated" || p.WebhookID != "w1" || p.TaskID != "t1" {
		t.Errorf("unexpected fields: %+v", p)
	}
	if p.TeamID != "9001" {
		t.Errorf("numeric team id should render as string, got %q", p.TeamID)
	}
	if string(p.HistoryItems) != `[{"id":"h"}]` {
		t.Errorf("history items not kept: %s", p.HistoryItems)
	}
	if p.Data != nil {
		t.Errorf("absent data should be nil, got %s", p.Data)
	}
}

func TestParsePayload_Invalid(t *testing.T) {
	bodies := []string{
		``,
		`null`,
		`[]`,
		`"taskCreated"`,
		`{"webhook_id":"w1"}`,
		`{"event":"taskCreated"}`,
		`{"event":`,
	}
	for _, b := range bodies {
		if _, err := ParsePayload([]byte(b)); !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("ParsePayload(%q): expected ErrInvalidPayload, got %v", b, err)
		}
	}
}

func TestParsePayload_NonStringEvent(t *testing.T) {
	p, err := ParsePayload([]byte(`{"event":42,"webhook_id":"w"}`))
	if err != nil {
		t.Fatalf("structure is valid, got %v", err)
	}
	if IsSupported(p.Event) {
		t.Errorf("numeric event %q must not be supported", p.Event)
	}
}

func TestProject(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		body     string
		want     string
	}{
		{
			name:     "task with history and data",
			expected: "taskTimeTrackedUpdated",
			body:     `{"event":"taskTimeTrackedUpdated","webhook_id":"w","task_id":"t","history_items":[1],"data":{"x":1}}`,
			want:     `{"event":"taskTimeTrackedUpdated","webhookId":"w","taskId":"t","historyItems":[1],"data":{"x":1}}`,
		},
		{
			name:     "list drops data",
			expected: "listUpdated",
			body:     `{"event":"listUpdated","webhook_id":"w","list_id":"l","data":{"x":1}}`,
			want:     `{"event":"listUpdated","webhookId":"w","listId":"l"}`,
		},
		{
			name:     "key result carries goal",
			expected: "keyResultCreated",
			body:     `{"event":"keyResultCreated","webhook_id":"w","goal_id":"g","key_result_id":"k"}`,
			want:     `{"event":"keyResultCreated","webhookId":"w","goalId":"g","keyResultId":"k"}`,
		},
		{
			name:     "space",
			expected: "spaceDeleted",
			body:     `{"event":"spaceDeleted","webhook_id":"w","space_id":"s","history_items":[1]}`,
			want:     `{"event":"spaceDeleted","webhookId":"w","spaceId":"s"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload([]byte(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			proj, ok := Project(tt.expected, p)
			if !ok {
				t.Fatal("expected projection")
			}
			got, _ := json.Marshal(proj)
			if string(got) != tt.want {
				t.Errorf("got %s\nwant %s", got, tt.want)
			}
		})
	}
}

func TestProject_OtherEventIsSilent(t *testing.T) {
	p, _ := ParsePayload([]byte(`{"event":"taskCreated","webhook_id":"w"}`))
	if _, ok := Project("taskDeleted", p); ok {
		t.Fatal("block for taskDeleted must not emit on taskCreated")
	}
}
