package convostore

import "context"

// tokenBoundedFit implements the C3 token-bounded fit: if the window
// already fits the budget, return it untouched. Otherwise split at the
// midpoint, try to replace the older half with a synthetic summary
// message, and if that still doesn't fit (or summarization fails), fall
// back to dropping the oldest messages one at a time.
func tokenBoundedFit(ctx context.Context, messages []Message, budget int, counter TokenCounter, summarize Summarizer) []Message {
	if totalTokens(messages, counter) <= budget {
		return messages
	}
	if len(messages) <= 1 {
		return messages
	}

	mid := len(messages) / 2
	older, newer := messages[:mid], messages[mid:]

	if summarize != nil {
		if summary, err := summarize(ctx, renderMessages(older)); err == nil {
			synthetic := Message{
				Role:    RoleUser,
				Content: "[earlier conversation summary: " + summary + "]",
			}
			combined := append([]Message{synthetic}, newer...)
			return trimToBudget(combined, budget, counter)
		}
		// Summarization failed (network, parse): fall through to trimming
		// the original, un-summarized window instead.
	}

	return trimToBudget(messages, budget, counter)
}

// trimToBudget drops the oldest message repeatedly until the window fits,
// always leaving at least the final message behind.
func trimToBudget(messages []Message, budget int, counter TokenCounter) []Message {
	for len(messages) > 1 && totalTokens(messages, counter) > budget {
		messages = messages[1:]
	}
	return messages
}

func totalTokens(messages []Message, counter TokenCounter) int {
	total := 0
	for _, m := range messages {
		total += counter(m.Content)
	}
	return total
}

func renderMessages(messages []Message) string {
	var out string
	for _, m := range messages {
		out += string(m.Role) + ": " + m.Content + "\n"
	}
	return out
}
