// Package domain contains persistence models for organizations and their
// members. Membership CRUD itself is owned by the account collaborator;
// the credit engine reads these rows for plan resolution and allocation
// joins, and the trial sweeper writes the plan field on downgrade.
package domain

import (
	"time"

	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
)

type Organization struct {
	ID        snowflake.ID    `gorm:"primaryKey"`
	Name      string          `gorm:"type:text;not null"`
	Plan      plandomain.Tier `gorm:"type:text;not null"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Organization) TableName() string { return "organizations" }

type OrganizationMember struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrgID       snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_members_org_user,priority:1"`
	UserID      snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_members_org_user,priority:2"`
	Role        string       `gorm:"type:text;not null"`
	DisplayName string       `gorm:"type:text;not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrganizationMember) TableName() string { return "organization_members" }
