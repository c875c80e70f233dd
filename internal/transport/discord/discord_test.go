package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestStripMentionRemovesBothForms(t *testing.T) {
	assert.Equal(t, " hello", stripMention("<@123> hello", "123"))
	assert.Equal(t, " hello", stripMention("<@!123> hello", "123"))
	assert.Equal(t, "hello <@999> world", stripMention("hello <@999> world", "123"))
}

func TestResolveDisplayNamePrefersNickname(t *testing.T) {
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author: &discordgo.User{Username: "user1", GlobalName: "GlobalName"},
		Member: &discordgo.Member{Nick: "Nickname"},
	}}
	assert.Equal(t, "Nickname", resolveDisplayName(m))
}

func TestResolveDisplayNameFallsBackToGlobalName(t *testing.T) {
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author: &discordgo.User{Username: "user1", GlobalName: "GlobalName"},
	}}
	assert.Equal(t, "GlobalName", resolveDisplayName(m))
}

func TestResolveDisplayNameFallsBackToUsername(t *testing.T) {
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Author: &discordgo.User{Username: "user1"},
	}}
	assert.Equal(t, "user1", resolveDisplayName(m))
}

func TestIsMentionedDetectsBotInMentions(t *testing.T) {
	tr := &Transport{botUserID: "bot1"}
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Mentions: []*discordgo.User{{ID: "bot1"}},
	}}
	assert.True(t, tr.isMentioned(m))
}

func TestIsMentionedFalseWhenNotMentioned(t *testing.T) {
	tr := &Transport{botUserID: "bot1"}
	m := &discordgo.MessageCreate{Message: &discordgo.Message{
		Mentions: []*discordgo.User{{ID: "other"}},
	}}
	assert.False(t, tr.isMentioned(m))
}
