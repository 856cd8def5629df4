// The observer requests live observation of one target identity and
// drives the negotiation state machine until the media path is up.
// Its whole UI surface is three states: offline, connecting, live.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/adapters/rtc"
	"github.com/careerlab/overseer/internal/client"
	"github.com/careerlab/overseer/internal/domain"
	"github.com/careerlab/overseer/internal/negotiator"
	sigmsg "github.com/careerlab/overseer/internal/signal"
)

func main() {
	target := flag.String("target", "", "identity to observe")
	server := flag.String("server", "ws://localhost:8080/api/ws/signal", "signaling endpoint")
	retryInterval := flag.Duration("retry-interval", 5*time.Second, "negotiation retry window")
	maxRetries := flag.Int("max-retries", 0, "retry cap, 0 = unbounded")
	stun := flag.String("stun", "", "comma-separated STUN server URLs, empty for the default")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	id, err := domain.ParseIdentity(*target)
	if err != nil {
		log.Fatal().Err(err).Msg("-target is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		drv *negotiator.Driver
		cli *client.Client
	)

	cli, err = client.Dial(ctx, *server, client.Handlers{
		OnOffer: func(msg sigmsg.Offer) {
			// Offers fan out to every watcher; skip ones addressed
			// to another observer when the tag is present.
			if msg.Observer != "" && msg.Observer != cli.Handle() {
				return
			}
			drv.Offer(msg.SDP)
		},
		OnCandidate: func(msg sigmsg.Candidate) {
			drv.Candidate(webrtc.ICECandidateInit{
				Candidate:     msg.Candidate,
				SDPMid:        msg.SDPMid,
				SDPMLineIndex: msg.SDPMLineIndex,
			})
		},
		OnStatus: func(identity string, online bool) {
			if identity == string(id) {
				drv.TargetStatus(online)
			}
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("dial signaling endpoint")
	}

	rtcCfg := rtc.Config(stunList(*stun))
	factory := func(h negotiator.PeerHooks) (negotiator.Peer, error) {
		return rtc.NewPeer(rtcCfg, rtc.Hooks{
			OnTrack:        h.OnTrack,
			OnICECandidate: h.OnICECandidate,
			OnFailure:      h.OnFailure,
		})
	}

	drv = negotiator.NewDriver(id, cli, factory, negotiator.Options{
		RetryInterval: *retryInterval,
		MaxRetries:    *maxRetries,
		OnState: func(s negotiator.State) {
			log.Info().Str("target", string(id)).Str("state", ui(s)).Msg("observation")
		},
	})

	// Prime the display: the status reply lands before the first offer
	// round trip and settles the offline/connecting split immediately.
	if err := cli.CheckStatus(id); err != nil {
		log.Warn().Err(err).Msg("initial status check failed")
	}

	go func() {
		if err := cli.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("signaling connection lost")
		}
		cancel()
	}()

	drv.Run(ctx)
	cli.Close()
}

func stunList(s string) []string {
	var urls []string
	for _, u := range strings.Split(s, ",") {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// ui collapses the machine states into the three the observer surface
// distinguishes.
func ui(s negotiator.State) string {
	switch s {
	case negotiator.StateLive:
		return "live"
	case negotiator.StateIdle, negotiator.StateTerminated:
		return "offline"
	}
	return "connecting"
}
