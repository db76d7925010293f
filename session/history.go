package session

import "time"

// MaxHistory is the number of exchanges kept per call as short-term dialogue memory.
const MaxHistory = 12

// TruncateHistory truncates the conversation history based on token and message limits.
// It applies message limit first, then token limit, removing oldest messages as needed.
// A non-positive limit disables that bound.
func TruncateHistory(history []Message, tokenLimit, messageLimit int) []Message {
	if len(history) == 0 {
		return history
	}

	if messageLimit > 0 && len(history) > messageLimit {
		history = history[len(history)-messageLimit:]
	}

	if tokenLimit <= 0 {
		return history
	}

	totalTokens := 0
	for _, msg := range history {
		totalTokens += msg.TokenCount
	}

	for totalTokens > tokenLimit && len(history) > 0 {
		totalTokens -= history[0].TokenCount
		history = history[1:]
	}

	return history
}

// AddMessageToHistory appends a message to the conversation history with an estimated token count.
func AddMessageToHistory(history []Message, role, content string) []Message {
	message := Message{
		Role:       role,
		Content:    content,
		TokenCount: EstimateTokens(content),
		Timestamp:  time.Now(),
	}
	return append(history, message)
}

// RecordExchange appends one turn to the session history and keeps only the
// most recent MaxHistory entries. An empty user utterance (silence) is not
// recorded; the assistant reply always is.
func (s *Session) RecordExchange(user, assistant string) {
	if user != "" {
		s.History = AddMessageToHistory(s.History, RoleUser, user)
	}
	s.History = AddMessageToHistory(s.History, RoleAssistant, assistant)
	s.History = TruncateHistory(s.History, 0, MaxHistory)
	s.LastUtterance = assistant
}
