package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/renewal/internal/app/api/server"
	"github.com/fatflowers/renewal/internal/app/service/alert"
	"github.com/fatflowers/renewal/internal/app/service/changestate"
	"github.com/fatflowers/renewal/internal/app/service/feed"
	"github.com/fatflowers/renewal/internal/app/service/intake"
	"github.com/fatflowers/renewal/internal/app/service/paymentlog"
	"github.com/fatflowers/renewal/internal/app/service/planchange"
	"github.com/fatflowers/renewal/internal/app/service/subscription"
	"github.com/fatflowers/renewal/internal/platform/db"
	"github.com/fatflowers/renewal/internal/platform/redis"
	"github.com/fatflowers/renewal/pkg/config"
	"github.com/fatflowers/renewal/pkg/logger"
	"github.com/fatflowers/renewal/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 40 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	redis.Module,
	changestate.Module,
	subscription.Module,
	planchange.Module,
	paymentlog.Module,
	alert.Module,
	feed.Module,
	intake.Module,
	server.Module,
)
