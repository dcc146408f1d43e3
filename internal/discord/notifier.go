package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// messageSender is the slice of the discordgo session the notifier needs.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts messages to the campaign's lore channel. It implements the
// confirmation channel the reconciliation resolver prompts through.
type Notifier struct {
	sender messageSender
}

// NewNotifier wraps a connected session.
func NewNotifier(sender messageSender) *Notifier {
	return &Notifier{sender: sender}
}

// PostMessage sends content to the channel and returns the created message's
// ID, the key replies reference back to.
func (n *Notifier) PostMessage(_ context.Context, channelID, content string) (string, error) {
	msg, err := n.sender.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", fmt.Errorf("discord: post message: %w", err)
	}
	return msg.ID, nil
}

// PostReply sends content as a threaded reply to an earlier message.
func (n *Notifier) PostReply(_ context.Context, channelID, content, replyToID string) (string, error) {
	msg, err := n.sender.ChannelMessageSendReply(channelID, content, &discordgo.MessageReference{
		MessageID: replyToID,
		ChannelID: channelID,
	})
	if err != nil {
		return "", fmt.Errorf("discord: post reply: %w", err)
	}
	return msg.ID, nil
}
