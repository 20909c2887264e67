package notify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/skincare-storefront/internal/notify"
)

func TestFeed_RecentNewestFirst(t *testing.T) {
	feed := notify.NewFeed(3)

	notify.Info(feed, "one", "")
	notify.Success(feed, "two", "")

	got := feed.Recent()
	require.Len(t, got, 2)
	assert.Equal(t, "two", got[0].Title)
	assert.Equal(t, notify.LevelSuccess, got[0].Level)
	assert.Equal(t, "one", got[1].Title)
}

func TestFeed_WrapsAround(t *testing.T) {
	feed := notify.NewFeed(2)

	notify.Info(feed, "one", "")
	notify.Info(feed, "two", "")
	notify.Error(feed, "three", "boom")

	got := feed.Recent()
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Title)
	assert.Equal(t, "boom", got[0].Message)
	assert.Equal(t, "two", got[1].Title)
}

func TestSend_NilNotifier(t *testing.T) {
	assert.NotPanics(t, func() {
		notify.Success(nil, "ignored", "")
	})
}
