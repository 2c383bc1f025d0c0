package usecase

import (
	"github.com/carebridge/carechat/internal/core/domain"
)

// systemPrompt frames every model call. It is committed as the pinned
// first turn of each conversation so it survives context eviction.
const systemPrompt = "You are an expert oncology dietitian and clinical-support assistant. " +
	"Provide concise clinical summary, 3 suggested practical questions for next doctor visit (not diet), " +
	"and dietitian-level dietary advice (include clear 1-day sample menu separated by spacing). " +
	"Write in plain English."

// boundContext renders the committed turns as model messages under a rune
// budget. Pinned turns (system instruction, document context) always stay;
// unpinned history is dropped oldest first. The returned count is how many
// committed turns were left out.
func boundContext(turns []domain.Turn, maxChars int) ([]domain.ChatMessage, int) {
	if maxChars <= 0 {
		messages := make([]domain.ChatMessage, 0, len(turns))
		for _, turn := range turns {
			messages = append(messages, domain.ChatMessage{Role: turn.Role, Content: turn.Content})
		}
		return messages, 0
	}

	budget := maxChars
	for _, turn := range turns {
		if turn.Pinned {
			budget -= len([]rune(turn.Content))
		}
	}

	// Keep the newest contiguous run of unpinned turns that fits the budget.
	// Everything older goes as a block: an older turn is never kept while a
	// newer one is dropped, so the surviving history has no gaps.
	cut := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Pinned {
			continue
		}
		cost := len([]rune(turns[i].Content))
		if cost > budget {
			break
		}
		budget -= cost
		cut = i
	}

	evicted := 0
	messages := make([]domain.ChatMessage, 0, len(turns))
	for i, turn := range turns {
		if !turn.Pinned && i < cut {
			evicted++
			continue
		}
		messages = append(messages, domain.ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	return messages, evicted
}

// RenderTranscript formats the chat exchange for the report email. Pinned
// turns are context, not conversation: the system instruction and the raw
// document text never reach the recipient.
func RenderTranscript(turns []domain.Turn) string {
	var out []byte
	for _, turn := range turns {
		if turn.Pinned || turn.Role == domain.RoleSystem {
			continue
		}
		label := "AI"
		if turn.Role == domain.RoleUser {
			label = "You"
		}
		if len(out) > 0 {
			out = append(out, "\n\n"...)
		}
		out = append(out, label...)
		out = append(out, ": "...)
		out = append(out, turn.Content...)
	}
	return string(out)
}
