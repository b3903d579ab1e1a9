package installation

import "time"

// Keys of the pending OAuth context held in transient storage.
const (
	KeyAccessToken   = "access_token"
	KeyOAuthComplete = "oauth_complete"
	KeyOAuthState    = "oauth_state"
)

// TransientKeys lists every pending OAuth key, cleared together on reset.
var TransientKeys = []string{KeyAccessToken, KeyOAuthComplete, KeyOAuthState}

// Prompt is a host-rendered call to action that redirects the user.
type Prompt struct {
	Key            string    `json:"key"`
	Label          string    `json:"label"`
	RedirectURL    string    `json:"redirectUrl"`
	RedirectMethod string    `json:"redirectMethod"`
	CreatedAt      time.Time `json:"createdAt"`
}

// AuthorizationPrompt builds the prompt that sends the user to startURL.
func AuthorizationPrompt(startURL string) Prompt {
	return Prompt{
		Key:            AuthPromptKey,
		Label:          AuthPromptLabel,
		RedirectURL:    startURL,
		RedirectMethod: "GET",
	}
}
