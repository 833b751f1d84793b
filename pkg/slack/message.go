package slack

import (
	"fmt"
	"strings"

	goslack "github.com/slack-go/slack"

	"github.com/codeready-toolchain/buildscout/pkg/session"
)

const (
	maxBlockTextLength = 2900
	maxRequestLength   = 200
)

var statusEmoji = map[session.SessionStatus]string{
	session.StatusCompleted:        ":white_check_mark:",
	session.StatusFailed:           ":x:",
	session.StatusTimedOut:         ":hourglass:",
	session.StatusCanceled:         ":no_entry_sign:",
	session.StatusTurnLimitReached: ":warning:",
}

var statusLabel = map[session.SessionStatus]string{
	session.StatusCompleted:        "Investigation complete",
	session.StatusFailed:           "Investigation failed",
	session.StatusTimedOut:         "Investigation timed out",
	session.StatusCanceled:         "Investigation canceled",
	session.StatusTurnLimitReached: "Investigation stopped at the turn limit",
}

func investigationURL(sessionID, baseURL string) string {
	return fmt.Sprintf("%s/api/v1/investigations/%s", strings.TrimSuffix(baseURL, "/"), sessionID)
}

// FallbackText is the plain notification text of a run message. It always
// carries the session fingerprint.
func FallbackText(snap session.Snapshot) string {
	return fmt.Sprintf("%s (run %d): %s", sessionFingerprint(snap.ID), snap.Run, snap.Status)
}

// BuildRunMessage creates Block Kit blocks for a finished run.
func BuildRunMessage(snap session.Snapshot, baseURL string) []goslack.Block {
	emoji := statusEmoji[snap.Status]
	if emoji == "" {
		emoji = ":question:"
	}
	label := statusLabel[snap.Status]
	if label == "" {
		label = "Investigation " + string(snap.Status)
	}

	header := fmt.Sprintf("%s *%s*\n>%s", emoji, label, truncate(snap.Request, maxRequestLength))
	blocks := []goslack.Block{markdownSection(header)}

	switch {
	case snap.Status == session.StatusCompleted && snap.FinalText != "":
		blocks = append(blocks, markdownSection(truncate(snap.FinalText, maxBlockTextLength)))
	case snap.Error != "":
		blocks = append(blocks, markdownSection("*Error:*\n"+truncate(snap.Error, maxBlockTextLength)))
	}

	footer := fmt.Sprintf("%s · run %d · %d turns · %d tokens",
		sessionFingerprint(snap.ID), snap.Run, snap.Turns, snap.Tokens.TotalTokens)
	blocks = append(blocks, goslack.NewContextBlock("",
		goslack.NewTextBlockObject(goslack.MarkdownType, footer, false, false)))

	if baseURL != "" {
		btn := goslack.NewButtonBlockElement("", "",
			goslack.NewTextBlockObject(goslack.PlainTextType, "View investigation", false, false))
		btn.URL = investigationURL(snap.ID, baseURL)
		blocks = append(blocks, goslack.NewActionBlock("", btn))
	}
	return blocks
}

func markdownSection(text string) *goslack.SectionBlock {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
		nil, nil,
	)
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "\n_... (truncated)_"
}
