package installation

import "testing"

func TestClassify(t *testing.T) {
	ready := Signals{
		AccessToken:   "tok",
		ClientSecret:  "cs",
		TeamID:        "123",
		WebhookID:     "wh",
		WebhookSecret: "whs",
	}

	tests := []struct {
		name string
		snap Snapshot
		want State
	}{
		{
			name: "fresh install",
			snap: Snapshot{ClientSecret: "cs"},
			want: StateNeedsAuth,
		},
		{
			name: "prompt outstanding",
			snap: Snapshot{ClientSecret: "cs", PromptExists: true},
			want: StateAwaitingUserAuth,
		},
		{
			name: "ready",
			snap: Snapshot{ClientSecret: "cs", Signals: ready},
			want: StateReady,
		},
		{
			name: "pending token from callback",
			snap: Snapshot{ClientSecret: "cs", PendingAccessToken: "tok"},
			want: StateNeedsWebhookSetup,
		},
		{
			name: "token signal without webhook",
			snap: Snapshot{ClientSecret: "cs", Signals: Signals{AccessToken: "tok", ClientSecret: "cs"}},
			want: StateNeedsWebhookSetup,
		},
		{
			name: "secret rotated while ready",
			snap: Snapshot{ClientSecret: "new", Signals: ready},
			want: StateConfigChanged,
		},
		{
			name: "secret rotated beats prompt and pending token",
			snap: Snapshot{
				ClientSecret:       "new",
				Signals:            ready,
				PromptExists:       true,
				PendingAccessToken: "tok2",
			},
			want: StateConfigChanged,
		},
		{
			name: "no recorded secret is not a change",
			snap: Snapshot{ClientSecret: "cs", Signals: Signals{AccessToken: "tok", WebhookID: "wh"}},
			want: StateReady,
		},
		{
			name: "prompt beats ready",
			snap: Snapshot{ClientSecret: "cs", Signals: ready, PromptExists: true},
			want: StateAwaitingUserAuth,
		},
		{
			name: "webhook id without token",
			snap: Snapshot{ClientSecret: "cs", Signals: Signals{WebhookID: "wh"}},
			want: StateNeedsAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.snap); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSnapshotAccessTokenPrefersSignal(t *testing.T) {
	s := Snapshot{Signals: Signals{AccessToken: "signal"}, PendingAccessToken: "pending"}
	if got := s.AccessToken(); got != "signal" {
		t.Errorf("expected signal token, got %q", got)
	}
}

func TestSignalUpdatesApply(t *testing.T) {
	s := Signals{AccessToken: "old", TeamID: "1"}
	u := SignalUpdates{}
	u.Clear(SignalAccessToken).Set(SignalWebhookID, "wh")

	got := u.Apply(s)
	if got.AccessToken != "" {
		t.Errorf("expected access token cleared, got %q", got.AccessToken)
	}
	if got.WebhookID != "wh" {
		t.Errorf("expected webhook id set, got %q", got.WebhookID)
	}
	if got.TeamID != "1" {
		t.Errorf("untouched signal changed: %q", got.TeamID)
	}
	if s.AccessToken != "old" {
		t.Error("Apply must not mutate its input")
	}
}

func TestSignalUpdatesJSONMasksSecrets(t *testing.T) {
	u := SignalUpdates{}
	u.Set(SignalAccessToken, "tok-secret").Set(SignalTeamID, "123").Clear(SignalWebhookSecret)

	b, err := u.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	got := string(b)
	want := `{"accessToken":"[set]","teamId":"123","webhookSecret":null}`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSyncResultEmpty(t *testing.T) {
	if !(SyncResult{}).Empty() {
		t.Error("zero result should be empty")
	}
	if (SyncResult{NewStatus: StatusReady}).Empty() {
		t.Error("result with status should not be empty")
	}
}

func TestSensitive(t *testing.T) {
	for _, n := range []SignalName{SignalAccessToken, SignalClientSecret, SignalWebhookID, SignalWebhookSecret} {
		if !n.Sensitive() {
			t.Errorf("%s should be sensitive", n)
		}
	}
	if SignalTeamID.Sensitive() {
		t.Error("teamId is not sensitive")
	}
}
