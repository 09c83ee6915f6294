package slack

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

// BuildContradictionMessage creates Block Kit blocks for a high-severity
// contradiction alert.
func BuildContradictionMessage(userID, severity, resolution string) []goslack.Block {
	header := fmt.Sprintf(":warning: *Contradiction detected* (severity: %s)\nUser: `%s`", severity, userID)
	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, header, false, false),
			nil, nil,
		),
	}
	if resolution != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType,
				"*Suggested resolution:*\n"+truncateForSlack(resolution), false, false),
			nil, nil,
		))
	}
	return blocks
}

// BuildFailureMessage creates Block Kit blocks for a failed-tasks alert.
func BuildFailureMessage(userID string, failedTasks []string) []goslack.Block {
	text := fmt.Sprintf(":x: *Reasoning run had failed tasks*\nUser: `%s`\nFailed: `%s`",
		userID, strings.Join(failedTasks, "`, `"))
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
