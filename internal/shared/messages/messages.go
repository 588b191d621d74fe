package messages

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// MessageText is the title and body of one alert. Both may contain
// {placeholders} that Render fills in.
type MessageText struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Render replaces every {key} in title and body with vars[key].
// Unknown placeholders are left as they are.
func (m MessageText) Render(vars map[string]string) (title, body string) {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	return r.Replace(m.Title), r.Replace(m.Body)
}

type Messages struct {
	SyncFailed       MessageText `json:"sync_failed"`
	DuplicateAccount MessageText `json:"duplicate_account"`
}

// Default returns the built-in alert texts.
func Default() *Messages {
	return &Messages{
		SyncFailed: MessageText{
			Title: "Sync failed",
			Body:  "{config}: {error}",
		},
		DuplicateAccount: MessageText{
			Title: "Possible duplicate account",
			Body:  "{account} looks like an account you already have. Merge it to keep its history.",
		},
	}
}

// Load reads a JSON messages file on top of the defaults. Texts missing from
// the file keep their default. An empty path returns the defaults.
func Load(path string) (*Messages, error) {
	msgs := Default()
	if path == "" {
		return msgs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages file: %w", err)
	}
	var file Messages
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse messages file: %w", err)
	}

	merge(&msgs.SyncFailed, file.SyncFailed)
	merge(&msgs.DuplicateAccount, file.DuplicateAccount)
	return msgs, nil
}

func merge(dst *MessageText, src MessageText) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Body != "" {
		dst.Body = src.Body
	}
}
