package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/medcenter-kg/booking-core/internal/service"
)

// LazyRegen запускает регенерацию слотов при чтении списков врачей и
// слотов: горизонт продлевается лениво, не дожидаясь периодического
// обхода. Прогон идемпотентен, поэтому гонка с тикером безопасна;
// minInterval защищает от прогона на каждый запрос.
type LazyRegen struct {
	gen         *service.GenerationService
	log         zerolog.Logger
	minInterval time.Duration

	mu      sync.Mutex
	lastRun time.Time
}

func NewLazyRegen(gen *service.GenerationService, log zerolog.Logger, minInterval time.Duration) *LazyRegen {
	if minInterval <= 0 {
		minInterval = time.Minute
	}
	return &LazyRegen{gen: gen, log: log, minInterval: minInterval}
}

func (l *LazyRegen) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.shouldRun() {
			if _, err := l.gen.RegenerateDue(c.Request.Context()); err != nil {
				// Частичный сбой обхода не должен ломать чтение.
				l.log.Error().Err(err).Msg("lazy slot regeneration")
			}
		}
		c.Next()
	}
}

func (l *LazyRegen) shouldRun() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Since(l.lastRun) < l.minInterval {
		return false
	}
	l.lastRun = time.Now()
	return true
}
