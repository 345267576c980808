package economy

import (
	"time"

	"sodmax/internal/domain"
)

// SyncMissions makes state cover every catalog entry and moves daily missions into the
// current period, dropping their old progress. It reports whether state changed.
func SyncMissions(state *domain.MissionState, catalog []domain.MissionTemplate, now time.Time, loc *time.Location) bool {
	changed := false
	for _, t := range catalog {
		start := PeriodStart(t.Period, now, loc)
		i := state.Find(t.ID)
		if i < 0 {
			state.Missions = append(state.Missions, domain.NewMission(t, start))
			changed = true
			continue
		}
		if t.Period == domain.PeriodDaily && state.Missions[i].PeriodStart.Before(start) {
			state.Missions[i] = domain.NewMission(t, start)
			changed = true
		}
	}
	return changed
}

// Advance counts one qualifying event against every matching open mission, capped at
// target, and returns the missions that became completable with this event.
func Advance(state *domain.MissionState, event domain.MissionEvent, now time.Time) []domain.Mission {
	var ready []domain.Mission
	for i := range state.Missions {
		m := &state.Missions[i]
		if m.Type != event || m.Claimed || m.Progress >= m.Target {
			continue
		}
		m.Progress++
		if m.Progress == m.Target {
			at := now
			m.CompletedAt = &at
			ready = append(ready, *m)
		}
	}
	return ready
}

// MissionKey is the idempotency key of a mission payout within its period
func MissionKey(m *domain.Mission) string {
	return "mission:" + m.ID + ":" + m.PeriodStart.UTC().Format("2006-01-02")
}
