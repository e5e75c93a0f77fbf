package slack

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

// BuildDigestMessage creates Block Kit blocks for an admin-fanout
// digest (spec.md §4.H): a debounced notification naming which
// moderation queues received new work since the last digest.
func BuildDigestMessage(categoryNames []string) []goslack.Block {
	text := fmt.Sprintf(":bell: Moderation queues with new work: %s", strings.Join(categoryNames, ", "))
	return []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncateForSlack(text), false, false),
			nil, nil,
		),
	}
}

func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "\n\n_... (truncated)_"
}
