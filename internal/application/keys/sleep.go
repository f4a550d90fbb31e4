package keys

import (
	"time"

	"github.com/turtacn/clusterkeys/internal/domain/models"
	"github.com/turtacn/clusterkeys/pkg/constants"
)

// HowMuchSleepNeedFor returns the delay before the next refresh cycle.
//
// When no known key is still valid at currentTime the short error interval is
// returned so the refresher keeps polling until a valid key appears. Otherwise
// the delay is the rotation interval capped at MaxRefreshWaitTime; the time
// left until latestExpiredAt is deliberately not taken into account.
func HowMuchSleepNeedFor(currentTime, latestExpiredAt models.LogicalTime, interval time.Duration) time.Duration {
	if !latestExpiredAt.After(currentTime) {
		return constants.RefreshIntervalIfErrored
	}
	if interval > constants.MaxRefreshWaitTime {
		return constants.MaxRefreshWaitTime
	}
	return interval
}
