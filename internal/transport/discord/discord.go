// Package discord implements the Discord side of the Transport interface
// (§6): mention/DM filtering, mention stripping, chunked delivery, and
// thread-opening for long replies.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/a9lim/shannon/internal/bus"
	"github.com/a9lim/shannon/internal/chunker"
)

// threadChunkThreshold is the number of outgoing chunks beyond which the
// transport opens a thread instead of posting every chunk to the channel
// directly.
const threadChunkThreshold = 5

// Config carries the §6 `discord` configuration section.
type Config struct {
	Token         string
	GuildIDs      []string
	CommandPrefix string
	ChunkLimit    int
}

// Transport connects to Discord via the bot gateway and bridges events to
// and from the shared bus.
type Transport struct {
	cfg       Config
	session   *discordgo.Session
	bus       *bus.Bus
	botUserID string

	mu      sync.Mutex
	threads map[string]string // originating channel ID -> opened thread ID
}

// New builds a Transport. It does not open the gateway connection; call
// Start for that.
func New(cfg Config, b *bus.Bus) (*Transport, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	t := &Transport{cfg: cfg, session: session, bus: b, threads: make(map[string]string)}
	return t, nil
}

// Start opens the gateway connection, registers the message handler, and
// subscribes to outgoing events for delivery.
func (t *Transport) Start(ctx context.Context) error {
	t.session.AddHandler(t.handleMessageCreate)

	if err := t.session.Open(); err != nil {
		return fmt.Errorf("discord: open session: %w", err)
	}

	user, err := t.session.User("@me")
	if err != nil {
		t.session.Close()
		return fmt.Errorf("discord: fetch bot identity: %w", err)
	}
	t.botUserID = user.ID

	t.bus.Subscribe(bus.KindMessageOutgoing, func(ev bus.Event) {
		out, ok := ev.Payload.(bus.OutgoingMessage)
		if !ok || out.Transport != "discord" {
			return
		}
		if err := t.send(out); err != nil {
			slog.Error("discord: send failed", "channel", out.Channel, "err", err)
		}
	})

	slog.Info("discord transport connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the gateway connection.
func (t *Transport) Stop(ctx context.Context) error {
	return t.session.Close()
}

// send chunks and delivers an outgoing message, opening a thread when the
// reply would otherwise require more than threadChunkThreshold messages.
func (t *Transport) send(out bus.OutgoingMessage) error {
	limit := t.cfg.ChunkLimit
	if limit <= 0 {
		limit = 2000
	}
	chunks := chunker.Split(out.Content, limit, chunker.DefaultMinChunk)

	destChannel := out.Channel
	if len(chunks) > threadChunkThreshold {
		threadID, err := t.openThread(out.Channel, out.ReplyToID)
		if err != nil {
			slog.Warn("discord: thread open failed, posting to channel", "channel", out.Channel, "err", err)
		} else {
			destChannel = threadID
		}
	}

	for _, chunk := range chunks {
		if _, err := t.session.ChannelMessageSend(destChannel, chunk); err != nil {
			return fmt.Errorf("discord: send message: %w", err)
		}
	}
	return nil
}

// openThread starts (or reuses) a thread off the triggering message so a
// long reply doesn't flood the parent channel.
func (t *Transport) openThread(channelID, replyToID string) (string, error) {
	t.mu.Lock()
	if id, ok := t.threads[channelID]; ok {
		t.mu.Unlock()
		return id, nil
	}
	t.mu.Unlock()

	startMessage := replyToID
	if startMessage == "" {
		msg, err := t.session.ChannelMessageSend(channelID, "Continuing in a thread below:")
		if err != nil {
			return "", err
		}
		startMessage = msg.ID
	}

	thread, err := t.session.MessageThreadStartComplex(channelID, startMessage, &discordgo.ThreadStart{
		Name:                "Response",
		AutoArchiveDuration: 60,
	})
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	t.threads[channelID] = thread.ID
	t.mu.Unlock()
	return thread.ID, nil
}

// handleMessageCreate filters and normalizes an incoming Discord message
// into bus.IncomingMessage, publishing it as message.incoming.
func (t *Transport) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == t.botUserID || m.Author.Bot {
		return
	}

	isDM := m.GuildID == ""
	mentioned := t.isMentioned(m)

	if !isDM && !mentioned {
		return
	}

	content := m.Content
	if mentioned {
		content = stripMention(content, t.botUserID)
	}
	content = strings.TrimSpace(content)

	attachments := make([]bus.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, bus.Attachment{Filename: a.Filename, URL: a.URL, Size: a.Size})
	}

	t.bus.Publish(bus.KindMessageIncoming, bus.IncomingMessage{
		Transport:       "discord",
		Channel:         m.ChannelID,
		UserID:          m.Author.ID,
		UserDisplayName: resolveDisplayName(m),
		Content:         content,
		MessageID:       m.ID,
		GroupID:         m.GuildID,
		Attachments:     attachments,
	})
}

func (t *Transport) isMentioned(m *discordgo.MessageCreate) bool {
	for _, u := range m.Mentions {
		if u.ID == t.botUserID {
			return true
		}
	}
	return false
}

// stripMention removes every "<@id>"/"<@!id>" mention of botUserID from
// content.
func stripMention(content, botUserID string) string {
	content = strings.ReplaceAll(content, "<@"+botUserID+">", "")
	content = strings.ReplaceAll(content, "<@!"+botUserID+">", "")
	return content
}

func resolveDisplayName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
