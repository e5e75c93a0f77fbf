package slack

import (
	"testing"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDigestMessageListsEveryCategory(t *testing.T) {
	blocks := BuildDigestMessage([]string{"profile name (human)", "process reports"})
	require.Len(t, blocks, 1)

	section, ok := blocks[0].(*goslack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, section.Text.Text, "profile name (human)")
	assert.Contains(t, section.Text.Text, "process reports")
}

func TestTruncateForSlackLeavesShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "short", truncateForSlack("short"))
}

func TestTruncateForSlackCutsLongText(t *testing.T) {
	long := make([]byte, maxBlockTextLength+500)
	for i := range long {
		long[i] = 'a'
	}
	out := truncateForSlack(string(long))
	assert.Less(t, len(out), len(long))
	assert.Contains(t, out, "truncated")
}
