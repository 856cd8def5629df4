// The agent runs on a monitored machine: it registers its identity on
// the signaling channel and answers every request-offer with a fresh
// peer negotiation, one peer per requesting observer.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/adapters/rtc"
	"github.com/careerlab/overseer/internal/client"
	"github.com/careerlab/overseer/internal/domain"
	sigmsg "github.com/careerlab/overseer/internal/signal"
)

const (
	reconnectDelay = 5 * time.Second
	pingPeriod     = 54 * time.Second
)

type agent struct {
	identity domain.Identity
	rtcCfg   webrtc.Configuration

	mu    sync.Mutex
	peers map[string]*rtc.Peer // keyed by observer handle
	cli   *client.Client
}

func main() {
	identity := flag.String("identity", "", "monitored identity to register")
	server := flag.String("server", "ws://localhost:8080/api/ws/signal", "signaling endpoint")
	stun := flag.String("stun", "", "comma-separated STUN server URLs, empty for the default")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	id, err := domain.ParseIdentity(*identity)
	if err != nil {
		log.Fatal().Err(err).Msg("-identity is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &agent{
		identity: id,
		rtcCfg:   rtc.Config(stunList(*stun)),
		peers:    make(map[string]*rtc.Peer),
	}

	for ctx.Err() == nil {
		if err := a.session(ctx, *server); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("session ended, reconnecting")
		}
		select {
		case <-ctx.Done():
		case <-time.After(reconnectDelay):
		}
	}
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

// session runs one connection lifetime: dial, register, serve requests.
func (a *agent) session(ctx context.Context, url string) error {
	cli, err := client.Dial(ctx, url, client.Handlers{
		OnRequestOffer: a.produceOffer,
		OnAnswer:       a.applyAnswer,
		OnCandidate:    a.addCandidate,
	})
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.cli = cli
	a.mu.Unlock()
	defer a.closePeers()

	if err := cli.Register(a.identity); err != nil {
		cli.Close()
		return err
	}
	log.Info().Str("identity", string(a.identity)).Msg("registered")

	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if cli.Ping() != nil {
					return
				}
			}
		}
	}()

	return cli.Run(ctx)
}

func (a *agent) produceOffer(observer string) {
	a.mu.Lock()
	if old, ok := a.peers[observer]; ok {
		old.Close()
		delete(a.peers, observer)
	}
	cli := a.cli
	a.mu.Unlock()

	peer, err := rtc.NewPeer(a.rtcCfg, rtc.Hooks{
		OnICECandidate: func(ci webrtc.ICECandidateInit) {
			if err := cli.SendCandidate(a.identity, ci); err != nil {
				log.Warn().Err(err).Msg("candidate send failed")
			}
		},
		OnFailure: func() { a.dropPeer(observer) },
	})
	if err != nil {
		log.Error().Err(err).Msg("peer create failed")
		return
	}

	sdp, err := peer.CreateOffer()
	if err != nil {
		log.Error().Err(err).Msg("create offer failed")
		peer.Close()
		return
	}

	a.mu.Lock()
	a.peers[observer] = peer
	a.mu.Unlock()

	if err := cli.SendOffer(a.identity, observer, sdp); err != nil {
		log.Error().Err(err).Msg("offer send failed")
		a.dropPeer(observer)
		return
	}
	log.Info().Str("observer", observer).Msg("offer produced")
}

func (a *agent) applyAnswer(msg sigmsg.Answer) {
	a.mu.Lock()
	peer := a.peers[msg.Observer]
	a.mu.Unlock()
	if peer == nil {
		log.Warn().Str("observer", msg.Observer).Msg("answer for unknown peer")
		return
	}
	if err := peer.ApplyAnswer(msg.SDP); err != nil {
		log.Error().Err(err).Str("observer", msg.Observer).Msg("apply answer failed")
		a.dropPeer(msg.Observer)
	}
}

func (a *agent) addCandidate(msg sigmsg.Candidate) {
	a.mu.Lock()
	peer := a.peers[msg.Observer]
	a.mu.Unlock()
	if peer == nil {
		return
	}
	ci := webrtc.ICECandidateInit{
		Candidate:     msg.Candidate,
		SDPMid:        msg.SDPMid,
		SDPMLineIndex: msg.SDPMLineIndex,
	}
	if err := peer.AddICECandidate(ci); err != nil {
		log.Warn().Err(err).Str("observer", msg.Observer).Msg("candidate rejected")
	}
}

func (a *agent) dropPeer(observer string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if peer, ok := a.peers[observer]; ok {
		peer.Close()
		delete(a.peers, observer)
	}
}

func (a *agent) closePeers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for observer, peer := range a.peers {
		peer.Close()
		delete(a.peers, observer)
	}
}
