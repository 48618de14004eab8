package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/notifier"
	"github.com/slack-go/slack"
)

const channelName = "slack"

// slackClient is an interface that contains the methods from the slack.Client that we use.
// This allows for easy mocking in tests.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// directory resolves a member to their Slack user.
type directory interface {
	GetMember(ctx context.Context, memberID string) (*ledger.Member, error)
}

var _ notifier.Notifier = &Notifier{}

// Notifier posts broadcasts to the club channel and sends members direct messages.
type Notifier struct {
	api       slackClient
	channelID string
	members   directory
	metrics   metrics.Metrics
	dryRun    bool
}

// NewNotifier creates a new Notifier.
func NewNotifier(token, channelID string, members directory, metrics metrics.Metrics, dryRun bool) *Notifier {
	return NewNotifierWithAPI(slack.New(token), channelID, members, metrics, dryRun)
}

// NewNotifierWithAPI creates a new Notifier with a specific slack.Client instance.
// Useful for tests that need to intercept API calls.
func NewNotifierWithAPI(api slackClient, channelID string, members directory, metrics metrics.Metrics, dryRun bool) *Notifier {
	return &Notifier{
		api:       api,
		channelID: channelID,
		members:   members,
		metrics:   metrics,
		dryRun:    dryRun,
	}
}

// Notify sends a direct message. Members without a linked Slack user are skipped.
func (s *Notifier) Notify(ctx context.Context, memberID string, msg notifier.Message) error {
	member, err := s.members.GetMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("failed to resolve slack user: %w", err)
	}
	if member.SlackUserID == "" {
		log.Debug("Member has no slack user, skipping DM", "memberID", memberID)
		return nil
	}
	_, _, err = s.sendMessage(ctx, member.SlackUserID, FormatMessage(msg))
	return err
}

// Broadcast posts to the club channel. Room-scoped messages are live updates
// for connected viewers and are not posted.
func (s *Notifier) Broadcast(ctx context.Context, msg notifier.Message) error {
	if msg.Room != "" {
		return nil
	}
	_, _, err := s.sendMessage(ctx, s.channelID, FormatMessage(msg))
	return err
}

func (s *Notifier) sendMessage(ctx context.Context, channelID string, message slack.Message) (string, string, error) {
	if s.dryRun {
		jsonMsg, _ := json.MarshalIndent(message, "", "  ")
		log.Info("[Dry Run] Would send Slack message", "channel", channelID, "message", string(jsonMsg))
		return "dry-run-channel", "dry-run-ts", nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	channel, timestamp, err := s.api.PostMessageContext(
		ctx,
		channelID,
		slack.MsgOptionBlocks(message.Blocks.BlockSet...),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		s.metrics.IncNotifFailed(channelName)
		log.Error("Failed to send Slack message", "error", err, "channel", channelID)
		return "", "", fmt.Errorf("failed to post message: %w", err)
	}

	s.metrics.IncNotifSent(channelName)
	log.Info("Successfully sent Slack message", "channel", channel, "timestamp", timestamp)
	return channel, timestamp, nil
}

func levelEmoji(level notifier.Level) string {
	switch level {
	case notifier.LevelSuccess:
		return ":white_check_mark:"
	case notifier.LevelWarning:
		return ":warning:"
	default:
		return ":information_source:"
	}
}

// FormatMessage renders a notification as a single section block.
func FormatMessage(msg notifier.Message) slack.Message {
	text := fmt.Sprintf("%s %s", levelEmoji(msg.Level), msg.Text)
	if msg.Link != "" {
		text += fmt.Sprintf("\n<%s|Open>", msg.Link)
	}
	return slack.NewBlockMessage(
		slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", text, false, false), nil, nil),
	)
}

// FormatLeaderboard creates a Slack message ranking members by lifetime deposits.
func FormatLeaderboard(members []ledger.Member) slack.Message {
	blocks := make([]slack.Block, 0)

	headerText := slack.NewTextBlockObject("plain_text", ":trophy: Club Leaderboard :trophy:", true, false)
	blocks = append(blocks, slack.NewHeaderBlock(headerText))

	if len(members) == 0 {
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", "No members yet.", true, false), nil, nil))
		return slack.NewBlockMessage(blocks...)
	}

	for i, m := range members {
		rank := i + 1
		var medal string
		switch rank {
		case 1:
			medal = ":first_place_medal:"
		case 2:
			medal = ":second_place_medal:"
		case 3:
			medal = ":third_place_medal:"
		}
		line := fmt.Sprintf("%d. %s %s\n> Tier: %s | Deposited: %s | Rank: %.2f",
			rank, medal, m.Name, m.Tier, m.TotalDeposit.StringFixed(0), m.RankLevel)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject("plain_text", line, true, false), nil, nil))
	}
	return slack.NewBlockMessage(blocks...)
}

// FormatBalance creates a Slack message with a member's wallet summary.
func FormatBalance(m *ledger.Member) slack.Message {
	text := fmt.Sprintf("*%s*\nBalance: %s\nTier: %s\nTotal spent: %s",
		m.Name, m.Balance.StringFixed(2), m.Tier, m.TotalSpent.StringFixed(2))
	return slack.NewBlockMessage(
		slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", text, false, false), nil, nil),
	)
}

// FormatMemberNotFound creates a Slack message for an unlinked Slack user.
func FormatMemberNotFound(slackUserID string) slack.Message {
	text := fmt.Sprintf("No club member is linked to <@%s>.", slackUserID)
	return slack.NewBlockMessage(
		slack.NewSectionBlock(slack.NewTextBlockObject("mrkdwn", text, false, false), nil, nil),
	)
}
