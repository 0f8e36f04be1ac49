package ocr

// Result is the outcome of a single OCR exchange. It is created once per
// successful request and owned by the caller afterwards.
type Result struct {
	Text             string `json:"text"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// ServerStatus describes the outcome of one health probe. It is
// recomputed on every probe and never persisted.
type ServerStatus struct {
	Healthy     bool   `json:"healthy"`
	ModelLoaded bool   `json:"model_loaded"`
	Error       string `json:"error,omitempty"`
}

// OpenAI-compatible message format. Content is a plain string for the
// system message and a []contentPart for the multimodal user message.
type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// OpenAI-compatible chat completion request. These wire types live only
// for the duration of one HTTP exchange and are never handed to callers.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

// OpenAI-compatible chat completion response
type chatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage,omitempty"`
}

type choice struct {
	Index        int     `json:"index"`
	Message      message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// messageText extracts the text of a response message, handling both the
// plain string form and the content-part array some servers emit. An
// absent or unrecognized content yields the empty string.
func messageText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		for _, item := range v {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok && text != "" {
				return text
			}
		}
	}
	return ""
}
