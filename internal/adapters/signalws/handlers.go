package signalws

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/domain"
	"github.com/careerlab/overseer/internal/signal"
)

func (ctl *Controller) handleRegister(c *wsConn, data []byte) {
	var p signal.Register
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signalws").Msg("bad register payload")
		return
	}
	id, err := domain.ParseIdentity(p.Identity)
	if err != nil {
		log.Warn().Err(err).Str("module", "signalws").Str("handle", string(c.id)).Msg("register rejected")
		return
	}
	ctl.Registry.Register(id, c)
}

func (ctl *Controller) handleRequestConnection(c *wsConn, data []byte) {
	var p signal.RequestConnection
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signalws").Msg("bad request-connection payload")
		return
	}
	target, err := domain.ParseIdentity(p.Target)
	if err != nil {
		log.Warn().Err(err).Str("module", "signalws").Str("handle", string(c.id)).Msg("request rejected")
		return
	}
	ctl.Relay.RequestConnection(c, target)
}

func (ctl *Controller) handleOffer(c *wsConn, data []byte) {
	var p signal.Offer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signalws").Msg("bad offer payload")
		return
	}
	target, err := domain.ParseIdentity(p.Target)
	if err != nil {
		log.Warn().Err(err).Str("module", "signalws").Str("handle", string(c.id)).Msg("offer rejected")
		return
	}
	ctl.Relay.RelayOffer(target, p)
}

func (ctl *Controller) handleAnswer(c *wsConn, data []byte) {
	var p signal.Answer
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signalws").Msg("bad answer payload")
		return
	}
	target, err := domain.ParseIdentity(p.Target)
	if err != nil {
		log.Warn().Err(err).Str("module", "signalws").Str("handle", string(c.id)).Msg("answer rejected")
		return
	}
	ctl.Relay.RelayAnswer(c, target, p)
}

func (ctl *Controller) handleCandidate(c *wsConn, data []byte) {
	var p signal.Candidate
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signalws").Msg("bad candidate payload")
		return
	}
	target, err := domain.ParseIdentity(p.Target)
	if err != nil {
		log.Warn().Err(err).Str("module", "signalws").Str("handle", string(c.id)).Msg("candidate rejected")
		return
	}
	ctl.Relay.RelayCandidate(c, target, p)
}

func (ctl *Controller) handleCheckStatus(c *wsConn, data []byte) {
	var p signal.CheckStatus
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signalws").Msg("bad check-status payload")
		return
	}
	id, err := domain.ParseIdentity(p.Identity)
	if err != nil {
		log.Warn().Err(err).Str("module", "signalws").Str("handle", string(c.id)).Msg("check-status rejected")
		return
	}
	ctl.Relay.CheckStatus(c, id)
}
