package intake

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/renewal/internal/app/service/alert"
	"github.com/fatflowers/renewal/internal/app/service/changestate"
	"github.com/fatflowers/renewal/internal/app/service/planchange"
	"github.com/fatflowers/renewal/pkg/metrics"
)

// Service accepts executor reports. Every mutation runs under the wallet lock.
type Service struct {
	db       *gorm.DB
	state    changestate.Store
	policy   *planchange.BackoffPolicy
	notifier alert.Notifier
	log      *zap.SugaredLogger
	metrics  *metrics.Business
	now      func() time.Time
}

func NewService(db *gorm.DB, state changestate.Store, policy *planchange.BackoffPolicy, notifier alert.Notifier, log *zap.SugaredLogger, m *metrics.Business) *Service {
	return &Service{db: db, state: state, policy: policy, notifier: notifier, log: log, metrics: m, now: time.Now}
}

// SetClock replaces the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }
