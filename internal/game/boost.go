package game

import (
	"encoding/json"
	"time"

	"github.com/blockparty/server/internal/domain"
)

// UseBoost grants a timed power-up. It is mode-independent, so it sits
// alongside the per-mode dispatch tables rather than inside one.
func UseBoost(p *domain.Player, data json.RawMessage) (map[string]any, bool) {
	var req struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &req)
	if req.Type == "" {
		req.Type = "boost"
	}
	pu := domain.PowerUp{Type: req.Type, ExpiresAt: time.Now().Add(BoostDuration)}
	p.PowerUps = append(p.PowerUps, pu)
	return map[string]any{
		"playerId":  p.ID,
		"type":      pu.Type,
		"expiresAt": pu.ExpiresAt,
	}, true
}
