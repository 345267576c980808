package domain

import "time"

// MissionEvent is the kind of ledger activity that advances missions
type MissionEvent string

const (
	EventManualMine      MissionEvent = "manual_mine"
	EventUpgrade         MissionEvent = "upgrade"
	EventBoost           MissionEvent = "boost"
	EventReferralInvite  MissionEvent = "referral_invite"
	EventReferralConfirm MissionEvent = "referral_confirm"
)

// MissionPeriod decides when progress rolls over
type MissionPeriod string

const (
	PeriodOneTime MissionPeriod = "one_time"
	PeriodDaily   MissionPeriod = "daily"
)

// MissionTemplate is a catalog entry; every user gets one Mission per template
type MissionTemplate struct {
	ID     string        `json:"id"`
	Type   MissionEvent  `json:"type"`
	Title  string        `json:"title"`
	Period MissionPeriod `json:"period"`
	Target int           `json:"target"`
	Reward int64         `json:"reward"`
}

// Mission is a user's progress on one template
type Mission struct {
	ID          string        `json:"id"`
	Type        MissionEvent  `json:"type"`
	Title       string        `json:"title"`
	Period      MissionPeriod `json:"period"`
	Progress    int           `json:"progress"`
	Target      int           `json:"target"`
	Reward      int64         `json:"reward"`
	Claimed     bool          `json:"claimed"`
	PeriodStart time.Time     `json:"period_start"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	ClaimedAt   *time.Time    `json:"claimed_at,omitempty"`
}

// NewMission instantiates a template for the period starting at periodStart
func NewMission(t MissionTemplate, periodStart time.Time) Mission {
	return Mission{
		ID:          t.ID,
		Type:        t.Type,
		Title:       t.Title,
		Period:      t.Period,
		Target:      t.Target,
		Reward:      t.Reward,
		PeriodStart: periodStart,
	}
}

// Completable reports whether the reward can be claimed now
func (m *Mission) Completable() bool {
	return !m.Claimed && m.Progress >= m.Target
}

// Percent returns progress in percent (0-100)
func (m *Mission) Percent() int {
	if m.Target <= 0 {
		return 100
	}
	p := (m.Progress * 100) / m.Target
	if p > 100 {
		return 100
	}
	return p
}

// MissionState is everything the tracker persists for one user
type MissionState struct {
	UserID   int64     `json:"user_id"`
	Missions []Mission `json:"missions"`
}

// Find returns the index of the mission with id, or -1
func (s *MissionState) Find(id string) int {
	for i := range s.Missions {
		if s.Missions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *MissionState) Clone() *MissionState {
	if s == nil {
		return nil
	}
	c := &MissionState{UserID: s.UserID, Missions: make([]Mission, len(s.Missions))}
	for i, m := range s.Missions {
		if m.CompletedAt != nil {
			t := *m.CompletedAt
			m.CompletedAt = &t
		}
		if m.ClaimedAt != nil {
			t := *m.ClaimedAt
			m.ClaimedAt = &t
		}
		c.Missions[i] = m
	}
	return c
}
