package services

import (
	"fmt"
	"strings"

	"github.com/yooventa/tubetalk/internal/models"
	"github.com/yooventa/tubetalk/internal/repositories/postgres"
)

// EstimateTokens is a cheap length-based token estimate (about 4 chars per
// token for English text). Used only for budget trimming, never billing.
func EstimateTokens(s string) int {
	return len(s) / 4
}

// BuildPrompt assembles the generation prompt from retrieved fragments and
// conversation history, newest-first trimming to stay under the token budget.
// The current user message and the system framing are never trimmed.
func BuildPrompt(history []models.PromptMessage, fragments []postgres.ScoredFragment, userMessage string, tokenBudget int) string {
	var ctxParts []string
	for _, f := range fragments {
		ctxParts = append(ctxParts, fmt.Sprintf("[video %s, part %d]\n%s", f.VideoID, f.ChunkIndex, f.Content))
	}
	contextBlock := strings.Join(ctxParts, "\n\n")

	header := "You are a helpful assistant answering questions about YouTube videos. " +
		"Answer using only the transcript excerpts below. " +
		"If the excerpts do not contain the answer, say so.\n\n" +
		"Transcript excerpts:\n" + contextBlock + "\n\nConversation:\n"
	tail := fmt.Sprintf("human: %s\nai:", userMessage)

	budget := tokenBudget - EstimateTokens(header) - EstimateTokens(tail)

	// walk history from the newest turn backwards, keeping what fits
	var kept []string
	for i := len(history) - 1; i >= 0; i-- {
		line := fmt.Sprintf("%s: %s\n", history[i].Role, history[i].Content)
		cost := EstimateTokens(line)
		if cost > budget {
			break
		}
		budget -= cost
		kept = append(kept, line)
	}
	var sb strings.Builder
	sb.WriteString(header)
	for i := len(kept) - 1; i >= 0; i-- {
		sb.WriteString(kept[i])
	}
	sb.WriteString(tail)
	return sb.String()
}

// BuildSummaryPrompt is the one-shot prompt for the background video summary.
func BuildSummaryPrompt(title, transcript string) string {
	const maxChars = 24000
	if len(transcript) > maxChars {
		transcript = transcript[:maxChars]
	}
	return fmt.Sprintf(
		"Summarize the following YouTube video transcript in 3-5 sentences. "+
			"Video title: %q\n\nTranscript:\n%s\n\nSummary:", title, transcript)
}
