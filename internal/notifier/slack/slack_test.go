package slack

import (
	"context"
	"errors"
	"testing"

	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/notifier"
	"github.com/shopspring/decimal"
	slackapi "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSlackAPI is a mock implementation of the parts of the slack.Client that we use.
type mockSlackAPI struct {
	postMessageContextFunc func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
	channels               []string
}

func (m *mockSlackAPI) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.channels = append(m.channels, channelID)
	if m.postMessageContextFunc != nil {
		return m.postMessageContextFunc(ctx, channelID, options...)
	}
	return channelID, "123456789.12345", nil
}

type fakeDirectory map[string]*ledger.Member

func (d fakeDirectory) GetMember(ctx context.Context, memberID string) (*ledger.Member, error) {
	if m, ok := d[memberID]; ok {
		return m, nil
	}
	return nil, apperr.NotFoundf("member %s", memberID)
}

var members = fakeDirectory{
	"m1": {ID: "m1", Name: "Linked", SlackUserID: "U111"},
	"m2": {ID: "m2", Name: "Unlinked"},
}

func TestSendMessage_DryRun(t *testing.T) {
	metrics := metrics.NewMock()
	// Pass nil for the api, as it shouldn't be called in dry-run mode.
	n := NewNotifierWithAPI(nil, "C123", members, metrics, true)

	_, _, err := n.sendMessage(context.Background(), "C123", slackapi.NewBlockMessage())
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.NotifSent("slack"))
}

func TestSendMessage_Failure(t *testing.T) {
	expectedErr := errors.New("slack API is down")
	api := &mockSlackAPI{
		postMessageContextFunc: func(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
			return "", "", expectedErr
		},
	}
	metrics := metrics.NewMock()
	n := NewNotifierWithAPI(api, "C123", members, metrics, false)

	err := n.Broadcast(context.Background(), notifier.Message{Text: "court freed"})
	require.Error(t, err)
	assert.ErrorIs(t, err, expectedErr)
	assert.Equal(t, 0, metrics.NotifSent("slack"))
	assert.Equal(t, 1, metrics.NotifFailed("slack"))
}

func TestNotify_DirectMessage(t *testing.T) {
	api := &mockSlackAPI{}
	metrics := metrics.NewMock()
	n := NewNotifierWithAPI(api, "C123", members, metrics, false)
	ctx := context.Background()

	require.NoError(t, n.Notify(ctx, "m1", notifier.Message{Text: "You have a new challenge"}))
	require.NoError(t, n.Notify(ctx, "m2", notifier.Message{Text: "skipped"}))
	assert.Error(t, n.Notify(ctx, "missing", notifier.Message{Text: "unknown"}))

	assert.Equal(t, []string{"U111"}, api.channels)
	assert.Equal(t, 1, metrics.NotifSent("slack"))
}

func TestBroadcast_SkipsRoomMessages(t *testing.T) {
	api := &mockSlackAPI{}
	n := NewNotifierWithAPI(api, "C123", members, metrics.NewMock(), false)
	ctx := context.Background()

	require.NoError(t, n.Broadcast(ctx, notifier.Message{Text: "3-1", Room: "match:1"}))
	require.NoError(t, n.Broadcast(ctx, notifier.Message{Text: "Tournament finished"}))
	assert.Equal(t, []string{"C123"}, api.channels)
}

func TestFormatLeaderboard(t *testing.T) {
	msg := FormatLeaderboard(nil)
	require.Len(t, msg.Blocks.BlockSet, 2)

	msg = FormatLeaderboard([]ledger.Member{
		{Name: "Ben", Tier: ledger.TierGold, TotalDeposit: decimal.NewFromInt(5_000_000), RankLevel: 3.5},
		{Name: "Anna", Tier: ledger.TierStandard, TotalDeposit: decimal.NewFromInt(200), RankLevel: 3},
	})
	require.Len(t, msg.Blocks.BlockSet, 3)
	section, ok := msg.Blocks.BlockSet[1].(*slackapi.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, section.Text.Text, "Ben")
	assert.Contains(t, section.Text.Text, "GOLD")
}
