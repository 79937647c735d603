// Package domain defines the persistence models for gatherings, participants,
// credit records, and ratings. These types are mapped with GORM and form the
// core data layer of the group-formation engine.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// GatheringStatus is the lifecycle state of a gathering. A gathering starts
// out recruiting; once the join deadline passes it resolves to confirmed or
// cancelled and never leaves that state again.
type GatheringStatus string

const (
	// StatusRecruiting means the join window is still open.
	StatusRecruiting GatheringStatus = "recruiting"
	// StatusConfirmed means the window closed with enough joined participants.
	StatusConfirmed GatheringStatus = "confirmed"
	// StatusCancelled means the window closed below the minimum head count.
	StatusCancelled GatheringStatus = "cancelled"
)

// Terminal reports whether the status can never change again.
func (s GatheringStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Participant roles and membership states. Participant rows are append-only:
// leaving flips Status to "left" instead of deleting the row, so the join
// history stays auditable.
const (
	RoleCreator = "creator"
	RoleMember  = "member"

	MembershipJoined = "joined"
	MembershipLeft   = "left"
)

// TasteProfile captures a user's food preferences. It is stored as a JSON
// column, both on the user profile (mutable) and on each gathering as an
// immutable snapshot taken at creation time.
type TasteProfile struct {
	// SpiceLevel is the spice tolerance on a 0-5 scale.
	SpiceLevel int `json:"spice_level"`
	// Avoid lists disliked ingredients.
	Avoid []string `json:"avoid"`
	// Diet lists dietary tags (e.g. "vegetarian", "halal").
	Diet []string `json:"diet"`
	// BudgetPP is the per-person budget.
	BudgetPP int `json:"budget_pp"`
	// Notes is free text.
	Notes string `json:"notes"`
}

// UserProfile is the profile of a device/session user. Created on first use,
// mutated by profile edits, never deleted.
type UserProfile struct {
	ID          string       `json:"id"           gorm:"type:char(36);primaryKey"`
	DisplayName string       `json:"display_name" gorm:"type:varchar(64);not null;default:''"`
	Taste       TasteProfile `json:"taste"        gorm:"serializer:json;type:text"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string { return "user_profiles" }

// Gathering is a time-boxed, capacity-bounded group-formation request.
//
// Fields worth calling out:
//   - JoinDeadline: fixed at creation (created_at + join window), never moves.
//   - Status: derived state; only the resolver transitions it out of
//     "recruiting", and confirmed/cancelled are terminal.
//   - TasteSnapshot: the creator's TasteProfile frozen at creation time,
//     independent of later profile edits.
//   - Participants: append-only membership log (see Participant).
//
// Gatherings are never physically deleted; terminal status stands in for
// removal and the row is retained for history and rating purposes.
type Gathering struct {
	ID            string          `json:"id"            gorm:"type:char(36);primaryKey"`
	CreatorID     string          `json:"creator_id"    gorm:"type:char(36);not null;index:idx_creator_gatherings"`
	Title         string          `json:"title"         gorm:"type:varchar(255);not null"`
	Cuisine       string          `json:"cuisine"       gorm:"type:varchar(64);not null;index"`
	StartTime     time.Time       `json:"start_time"    gorm:"not null;index"`
	LocationName  string          `json:"location_name" gorm:"type:varchar(255);not null;default:''"`
	Lat           *float64        `json:"lat,omitempty"`
	Lng           *float64        `json:"lng,omitempty"`
	MinPeople     int             `json:"min_people"    gorm:"not null"`
	MaxPeople     int             `json:"max_people"    gorm:"not null"`
	JoinDeadline  time.Time       `json:"join_deadline" gorm:"not null"`
	Status        GatheringStatus `json:"status"        gorm:"type:varchar(16);not null;default:'recruiting';check:status IN ('recruiting','confirmed','cancelled');index"`
	TasteSnapshot TasteProfile    `json:"creator_taste_snapshot" gorm:"serializer:json;type:text"`
	Notes         string          `json:"notes"         gorm:"type:text;not null;default:''"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `json:"-"             gorm:"index"`

	// Participants is the append-only membership log, oldest first.
	Participants []Participant `json:"participants" gorm:"foreignKey:GatheringID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Gathering.
func (Gathering) TableName() string { return "gatherings" }

// JoinedCount returns the number of participants currently joined. Capacity
// and quorum checks count only "joined" rows; "left" rows are history.
func (g *Gathering) JoinedCount() int {
	n := 0
	for _, p := range g.Participants {
		if p.Status == MembershipJoined {
			n++
		}
	}
	return n
}

// JoinedParticipant returns the user's current "joined" row, or nil. A user
// has at most one joined row per gathering at any time.
func (g *Gathering) JoinedParticipant(userID string) *Participant {
	for i := range g.Participants {
		if g.Participants[i].UserID == userID && g.Participants[i].Status == MembershipJoined {
			return &g.Participants[i]
		}
	}
	return nil
}

// Participant is one entry in a gathering's membership log.
//
// The log has append-only semantics: joining appends a "joined" row, leaving
// flips that row to "left", and re-joining appends a fresh "joined" row. No
// entry is ever removed, which keeps the history auditable and prevents
// join/leave cycling from hiding a prior join.
type Participant struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	GatheringID string    `json:"gathering_id" gorm:"type:char(36);not null;index:idx_gathering_participants,priority:1"`
	UserID      string    `json:"user_id"      gorm:"type:char(36);not null;index"`
	Role        string    `json:"role"         gorm:"type:varchar(16);not null;check:role IN ('creator','member')"`
	Status      string    `json:"status"       gorm:"type:varchar(16);not null;default:'joined';check:status IN ('joined','left')"`
	JoinedAt    time.Time `json:"joined_at"    gorm:"not null;index:idx_gathering_participants,priority:2"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for Participant.
func (Participant) TableName() string { return "participants" }

// CreditRecord is the derived reputation of one user: a running weighted
// average of peer ratings expressed on a 100-point scale. One row per user,
// created lazily on first reference.
type CreditRecord struct {
	UserID      string    `json:"user_id"      gorm:"type:char(36);primaryKey"`
	Score       int       `json:"score"        gorm:"not null;default:80"`
	RatingCount int       `json:"rating_count" gorm:"not null;default:0"`
	Tags        []string  `json:"tags"         gorm:"serializer:json;type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for CreditRecord.
func (CreditRecord) TableName() string { return "credit_records" }

// RatingRecord is one entry in the append-only rating audit log. The log is
// globally capped (oldest evicted first); the cap is a retention policy, not
// a business rule.
type RatingRecord struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	GatheringID string    `json:"gathering_id" gorm:"type:char(36);not null;index"`
	RaterID     string    `json:"rater_id"     gorm:"type:char(36);not null;index"`
	RateeID     string    `json:"ratee_id"     gorm:"type:char(36);not null;index"`
	Score       int       `json:"score"        gorm:"not null;check:score BETWEEN 1 AND 5"`
	CreatedAt   time.Time `json:"created_at"   gorm:"index"`
}

// TableName returns the database table name for RatingRecord.
func (RatingRecord) TableName() string { return "rating_records" }
