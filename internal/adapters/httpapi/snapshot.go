package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/app"
	"github.com/careerlab/overseer/internal/core"
	"github.com/careerlab/overseer/internal/domain"
)

// snapshotAPI exposes current presence and ledger rows to dashboards.
// Strictly read-only.
type snapshotAPI struct {
	registry *app.Registry
	ledger   core.Ledger
}

type statusResponse struct {
	Identity string `json:"identity"`
	Online   bool   `json:"online"`
}

func (s snapshotAPI) status(c *gin.Context) {
	id, err := domain.ParseIdentity(c.Param("identity"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identity"})
		return
	}
	c.JSON(http.StatusOK, statusResponse{Identity: string(id), Online: s.registry.IsOnline(id)})
}

func (s snapshotAPI) presence(c *gin.Context) {
	online := s.registry.Snapshot()
	out := make([]statusResponse, 0, len(online))
	for _, id := range online {
		out = append(out, statusResponse{Identity: string(id), Online: true})
	}
	c.JSON(http.StatusOK, gin.H{"online": out, "count": len(out)})
}

func (s snapshotAPI) attendance(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		date = domain.DateOf(time.Now())
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return
	}

	rows, err := s.ledger.ListDate(c.Request.Context(), date)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.httpapi").Str("date", date).Msg("attendance query")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date, "records": rows})
}
