package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFederationTransitions(t *testing.T) {
	allowed := map[[2]FederationStatus]bool{
		{FederationLocal, FederationQueued}:     true,
		{FederationQueued, FederationDelivered}: true,
		{FederationQueued, FederationFailed}:    true,
		{FederationFailed, FederationQueued}:    true,
	}
	all := []FederationStatus{FederationLocal, FederationQueued, FederationDelivered, FederationFailed}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]FederationStatus{from, to}], from.CanTransition(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, FederationStatus("sent").Valid())
}

func TestReportTransitions(t *testing.T) {
	assert.True(t, ReportPending.CanTransition(ReportResolved))
	assert.True(t, ReportPending.CanTransition(ReportDismissed))
	assert.False(t, ReportPending.CanTransition(ReportPending))
	for _, closed := range []ReportStatus{ReportResolved, ReportDismissed} {
		assert.True(t, closed.Terminal())
		for _, to := range []ReportStatus{ReportPending, ReportResolved, ReportDismissed} {
			assert.False(t, closed.CanTransition(to))
		}
	}
	assert.False(t, ReportTarget("comment").Valid())
}

func TestPostTarget(t *testing.T) {
	name := "golang"
	p := &Post{Kind: PostKindChannel, ChannelName: &name}
	assert.True(t, p.IsChannelPost())
	assert.False(t, p.IsUserPost())
	assert.Equal(t, ChannelTarget("  GoLang "), p.Target())

	u := &Post{Kind: PostKindUser}
	assert.Equal(t, UserTarget(), u.Target())
}

func TestVisibility(t *testing.T) {
	assert.True(t, VisibilityReadOnly.Valid())
	assert.False(t, Visibility("secret").Valid())
	assert.Equal(t, "golang", NormalizeChannelName(" GoLang "))
}

func TestReactionKind(t *testing.T) {
	assert.True(t, ReactionLike.Valid())
	assert.True(t, ReactionShare.Valid())
	assert.False(t, ReactionKind("comment").Valid())
	assert.Equal(t, "likes", ReactionLike.Column())
	assert.Equal(t, "shares", ReactionShare.Column())
}
