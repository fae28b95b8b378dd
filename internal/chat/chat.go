// Package chat holds the provider-neutral chat message shape exchanged
// with AI vendors.
package chat

const (
	ChatMessageRoleSystem    = "system"
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
)

type ChatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Transcript renders messages as "role: content" lines, used by the dry-run
// vendor and by debug logging.
func Transcript(msgs []*ChatCompletionMessage) string {
	var out string
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out += m.Role + ": " + m.Content + "\n"
	}
	return out
}
