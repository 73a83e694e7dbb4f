package engine

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single Chat call.
type Options struct {
	Temperature float32
	// JSON asks the backend for a JSON object reply.
	JSON bool
}

// PullProgress reports download progress for an Ollama model pull.
type PullProgress struct {
	Status    string `json:"status"`
	Total     int64  `json:"total,omitempty"`
	Completed int64  `json:"completed,omitempty"`
}
