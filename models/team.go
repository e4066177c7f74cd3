package models

import (
	"time"

	"gorm.io/gorm"
)

// Team represents a workspace users collaborate in
type Team struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// Relations
	Members     []TeamMember     `gorm:"foreignKey:TeamID" json:"members,omitempty"`
	Invitations []TeamInvitation `gorm:"foreignKey:TeamID" json:"invitations,omitempty"`
	Projects    []Project        `gorm:"foreignKey:TeamID" json:"projects,omitempty"`
}

// TeamMember represents team members and their roles. At most one member
// per team carries IsSuperAdmin; the membership operations maintain that.
type TeamMember struct {
	gorm.Model
	TeamID uint `gorm:"not null;index;uniqueIndex:idx_team_user" json:"team_id"`
	UserID uint `gorm:"not null;index;uniqueIndex:idx_team_user" json:"user_id"`

	Role         Role `gorm:"default:'member'" json:"role"` // member, admin
	IsSuperAdmin bool `gorm:"default:false" json:"is_super_admin"`

	// Relations
	Team Team `json:"-"`
	User User `json:"user,omitempty"`
}

// Invitation statuses
const (
	InvitationPending   = "pending"
	InvitationAccepted  = "accepted"
	InvitationRejected  = "rejected"
	InvitationExpired   = "expired"
	InvitationCancelled = "cancelled"
)

// TeamInvitation represents a single-use offer of team membership bound
// to an email address
type TeamInvitation struct {
	gorm.Model
	TeamID    uint      `gorm:"not null;index" json:"team_id"`
	Email     string    `gorm:"not null;index" json:"email"`
	Role      Role      `gorm:"default:'member'" json:"role"`
	InvitedBy uint      `gorm:"not null" json:"invited_by"`
	Token     string    `gorm:"uniqueIndex;not null" json:"-"`
	Status    string    `gorm:"default:'pending';index" json:"status"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`

	// Relations
	Team    Team `json:"team,omitempty"`
	Inviter User `gorm:"foreignKey:InvitedBy" json:"inviter,omitempty"`
}

// IsExpired reports whether the invitation's expiry has passed
func (i *TeamInvitation) IsExpired() bool {
	return time.Now().After(i.ExpiresAt)
}
