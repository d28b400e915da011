package config

import (
	"time"

	"github.com/adhocore/gronx"
)

// NextMaintenanceTick returns the next time after 'after' that
// cfg.MaintenanceCron fires, for the daemon's maintenance loop
// (purge_useless_deputies) to sleep until — gronx does the
// cron math rather than a hand-rolled scheduler.
func (cfg DaemonConfig) NextMaintenanceTick(after time.Time) (time.Time, error) {
	return gronx.NextTickAfter(cfg.MaintenanceCron, after, false)
}
