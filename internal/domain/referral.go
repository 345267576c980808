package domain

import "time"

type ReferralStatus string

const (
	ReferralPending ReferralStatus = "pending"
	ReferralActive  ReferralStatus = "active"
)

// Referral is an invite sent by the account owner. BonusIssued guards the payout.
type Referral struct {
	ID          string         `json:"id"`
	InviteeRef  string         `json:"invitee_ref"`
	Status      ReferralStatus `json:"status"`
	BonusIssued bool           `json:"bonus_issued"`
	CreatedAt   time.Time      `json:"created_at"`
	ActivatedAt *time.Time     `json:"activated_at,omitempty"`
}

type ReferralState struct {
	UserID    int64      `json:"user_id"`
	Referrals []Referral `json:"referrals"`
}

func (s *ReferralState) Find(id string) int {
	for i := range s.Referrals {
		if s.Referrals[i].ID == id {
			return i
		}
	}
	return -1
}

// HasInvitee reports whether ref was already invited
func (s *ReferralState) HasInvitee(ref string) bool {
	for i := range s.Referrals {
		if s.Referrals[i].InviteeRef == ref {
			return true
		}
	}
	return false
}

// Pending counts invites not yet confirmed
func (s *ReferralState) Pending() int {
	n := 0
	for i := range s.Referrals {
		if s.Referrals[i].Status == ReferralPending {
			n++
		}
	}
	return n
}

func (s *ReferralState) Clone() *ReferralState {
	if s == nil {
		return nil
	}
	c := &ReferralState{UserID: s.UserID, Referrals: make([]Referral, len(s.Referrals))}
	for i, r := range s.Referrals {
		if r.ActivatedAt != nil {
			t := *r.ActivatedAt
			r.ActivatedAt = &t
		}
		c.Referrals[i] = r
	}
	return c
}
