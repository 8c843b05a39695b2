package exposure

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/bastion/internal/modules/portfolio"
)

// GroupResolver supplies dynamic, matrix-derived correlation groups. The
// portfolio engine implements it; ok=false means the caller should fall back
// to the static asset-class table.
type GroupResolver interface {
	ResolveGroup(symbol string) (group string, ok bool)
}

// Config holds exposure controller configuration.
type Config struct {
	MaxGroupExposurePct float64 // fraction of account balance, default 0.40
}

// DefaultConfig returns the canonical controller configuration.
func DefaultConfig() Config {
	return Config{MaxGroupExposurePct: 0.40}
}

// Decision is the outcome of an exposure check.
type Decision struct {
	Approved         bool    `json:"approved"`
	Reason           string  `json:"reason"`
	Group            string  `json:"group"`
	GroupSource      string  `json:"group_source"` // "dynamic" or "static"
	GroupExposurePct float64 `json:"group_exposure_pct"`
	LimitPct         float64 `json:"limit_pct"`
}

// Controller caps exposure per correlated-asset group. It is pure and
// synchronous: group membership comes from the resolver (single source of
// truth) or the static table, positions and balance from the caller.
type Controller struct {
	cfg      Config
	resolver GroupResolver // nil disables dynamic groups
	log      zerolog.Logger
}

// NewController creates an exposure controller. resolver may be nil, in
// which case only the static asset-class table is consulted.
func NewController(cfg Config, resolver GroupResolver, log zerolog.Logger) *Controller {
	return &Controller{
		cfg:      cfg,
		resolver: resolver,
		log:      log.With().Str("component", "exposure_controller").Logger(),
	}
}

// Check decides whether a proposed position keeps its correlation group
// within the exposure cap. Degenerate inputs reject immediately.
func (c *Controller) Check(symbol string, proposedSizeUSD float64, positions []portfolio.PositionExposure, accountBalance float64) Decision {
	d := Decision{LimitPct: c.cfg.MaxGroupExposurePct}

	if accountBalance <= 0 {
		d.Reason = "account balance must be positive"
		return d
	}
	if proposedSizeUSD <= 0 {
		d.Reason = "proposed size must be positive"
		return d
	}

	d.Group, d.GroupSource = c.groupFor(symbol)

	groupSize := proposedSizeUSD
	for _, p := range positions {
		group, _ := c.groupFor(p.Symbol)
		if group == d.Group {
			groupSize += p.SizeUSD
		}
	}
	d.GroupExposurePct = groupSize / accountBalance

	if d.GroupExposurePct > c.cfg.MaxGroupExposurePct {
		d.Reason = fmt.Sprintf(
			"group %s exposure %.1f%% exceeds cap %.1f%%",
			d.Group, d.GroupExposurePct*100, c.cfg.MaxGroupExposurePct*100)
		c.log.Debug().
			Str("symbol", symbol).
			Str("group", d.Group).
			Float64("exposure_pct", d.GroupExposurePct).
			Msg("Exposure check rejected")
		return d
	}

	d.Approved = true
	return d
}

// groupFor resolves a symbol's group: dynamic when the resolver trusts its
// matrix, static asset class otherwise.
func (c *Controller) groupFor(symbol string) (group, source string) {
	if c.resolver != nil {
		if g, ok := c.resolver.ResolveGroup(symbol); ok {
			return g, "dynamic"
		}
	}
	return StaticGroup(symbol), "static"
}
