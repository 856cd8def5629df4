package app

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/careerlab/overseer/internal/signal"
)

func setupRelay(t *testing.T) (*Registry, *Relay) {
	t.Helper()
	reg := NewRegistry(false, nil)
	return reg, NewRelay(reg, nil)
}

func TestRequestConnectionOfflineTargetDropsSilently(t *testing.T) {
	_, rl := setupRelay(t)

	observer := newFakeConn("obs-1")
	rl.RequestConnection(observer, "EMP-2")

	// The observer gets no response at all: a stall is its only signal.
	require.Empty(t, observer.types())
	// But it is remembered as a watcher for when the target shows up.
	require.Equal(t, 1, rl.WatcherCount("EMP-2"))
}

func TestRequestConnectionOnlineTargetGetsRequestOffer(t *testing.T) {
	reg, rl := setupRelay(t)

	target := newFakeConn("agent-1")
	reg.Register("EMP-1", target)

	observer := newFakeConn("obs-1")
	rl.RequestConnection(observer, "EMP-1")

	require.Equal(t, []string{"request-offer"}, target.types())

	var req signal.RequestOffer
	require.NoError(t, json.Unmarshal(target.lastFrame(), &req))
	require.Equal(t, "obs-1", req.Observer)
}

func TestRelayOfferFansOutToAllWatchers(t *testing.T) {
	reg, rl := setupRelay(t)

	target := newFakeConn("agent-1")
	reg.Register("EMP-3", target)

	obs1 := newFakeConn("obs-1")
	obs2 := newFakeConn("obs-2")
	rl.RequestConnection(obs1, "EMP-3")
	rl.RequestConnection(obs2, "EMP-3")

	rl.RelayOffer("EMP-3", signal.Offer{SDP: "v=0 offer"})

	for _, obs := range []*fakeConn{obs1, obs2} {
		require.Equal(t, []string{"offer"}, obs.types())
		var offer signal.Offer
		require.NoError(t, json.Unmarshal(obs.lastFrame(), &offer))
		require.Equal(t, "EMP-3", offer.Target)
		require.Equal(t, "v=0 offer", offer.SDP)
	}
	// The target never sees its own offer back.
	require.Equal(t, []string{"request-offer", "request-offer"}, target.types())
}

func TestRelayAnswerIsPointToPoint(t *testing.T) {
	reg, rl := setupRelay(t)

	target := newFakeConn("agent-1")
	reg.Register("EMP-1", target)

	obs1 := newFakeConn("obs-1")
	obs2 := newFakeConn("obs-2")
	rl.RequestConnection(obs1, "EMP-1")
	rl.RequestConnection(obs2, "EMP-1")

	rl.RelayAnswer(obs1, "EMP-1", signal.Answer{SDP: "v=0 answer"})

	var answer signal.Answer
	require.NoError(t, json.Unmarshal(target.lastFrame(), &answer))
	require.Equal(t, "answer", string(answer.Type))
	require.Equal(t, "obs-1", answer.Observer)

	// Only the target received it; the other observer saw nothing.
	require.Empty(t, obs2.types())
}

func TestRelayAnswerOfflineTargetDropped(t *testing.T) {
	_, rl := setupRelay(t)
	obs := newFakeConn("obs-1")
	rl.RelayAnswer(obs, "EMP-1", signal.Answer{SDP: "x"})
	require.Empty(t, obs.types())
}

func TestRelayCandidateRoutesByDirection(t *testing.T) {
	reg, rl := setupRelay(t)

	target := newFakeConn("agent-1")
	reg.Register("EMP-1", target)

	obs := newFakeConn("obs-1")
	rl.RequestConnection(obs, "EMP-1")
	target.frames = nil

	// From the bound connection: goes to the watchers.
	rl.RelayCandidate(target, "EMP-1", signal.Candidate{Candidate: "cand-a"})
	require.Equal(t, []string{"candidate"}, obs.types())
	require.Empty(t, target.types())

	// From the observer: goes to the bound connection, stamped.
	rl.RelayCandidate(obs, "EMP-1", signal.Candidate{Candidate: "cand-b"})
	require.Equal(t, []string{"candidate"}, target.types())
	var cand signal.Candidate
	require.NoError(t, json.Unmarshal(target.lastFrame(), &cand))
	require.Equal(t, "obs-1", cand.Observer)
}

func TestCheckStatusReplies(t *testing.T) {
	reg, rl := setupRelay(t)

	obs := newFakeConn("obs-1")
	rl.CheckStatus(obs, "EMP-1")

	var st signal.Status
	require.NoError(t, json.Unmarshal(obs.lastFrame(), &st))
	require.Equal(t, "EMP-1", st.Identity)
	require.False(t, st.Online)

	reg.Register("EMP-1", newFakeConn("agent-1"))
	rl.CheckStatus(obs, "EMP-1")
	require.NoError(t, json.Unmarshal(obs.lastFrame(), &st))
	require.True(t, st.Online)
}

func TestNotifyPresenceReachesWatchers(t *testing.T) {
	reg, rl := setupRelay(t)
	reg.Subscribe(rl.NotifyPresence)

	obs := newFakeConn("obs-1")
	rl.RequestConnection(obs, "EMP-1")

	agent := newFakeConn("agent-1")
	reg.Register("EMP-1", agent)
	reg.Unregister(agent)

	var seen []bool
	for _, fr := range obs.frames {
		var st signal.Status
		require.NoError(t, json.Unmarshal(fr, &st))
		if st.Type == signal.TypeStatus {
			seen = append(seen, st.Online)
		}
	}
	require.Equal(t, []bool{true, false}, seen)
}

func TestDropWatcherStopsDelivery(t *testing.T) {
	reg, rl := setupRelay(t)

	target := newFakeConn("agent-1")
	reg.Register("EMP-1", target)

	obs := newFakeConn("obs-1")
	rl.RequestConnection(obs, "EMP-1")
	require.Equal(t, 1, rl.WatcherCount("EMP-1"))

	rl.DropWatcher(obs)
	require.Equal(t, 0, rl.WatcherCount("EMP-1"))

	rl.RelayOffer("EMP-1", signal.Offer{SDP: "x"})
	require.Empty(t, obs.types())
}
