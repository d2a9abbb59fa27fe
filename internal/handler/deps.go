package handler

import (
	"golang.org/x/time/rate"

	"swiftchat/internal/app/relay"
	"swiftchat/internal/app/user"
	"swiftchat/internal/configs"
	"swiftchat/internal/pkg/limiter"
)

const (
	CreateRate   = 0.5
	CreateBurst  = 10
	ConnectRate  = 5
	ConnectBurst = 50
)

// AppDeps holds everything the relay's handlers share.
type AppDeps struct {
	Hub    *relay.Hub
	Users  *user.Directory
	Config *configs.AppConfig

	CreateLimiter  *limiter.IPRateLimiter
	ConnectLimiter *limiter.IPRateLimiter
}

// NewAppDeps wires an empty in-memory relay. bcryptCost 0 selects the bcrypt default.
func NewAppDeps(cfg *configs.AppConfig, bcryptCost int) *AppDeps {
	return &AppDeps{
		Hub:            relay.NewHub(),
		Users:          user.NewDirectory(bcryptCost),
		Config:         cfg,
		CreateLimiter:  limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst),
		ConnectLimiter: limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst),
	}
}

// Close shuts the hub down and stops the limiter janitors.
func (d *AppDeps) Close() {
	d.Hub.Shutdown()
	d.CreateLimiter.Close()
	d.ConnectLimiter.Close()
}
