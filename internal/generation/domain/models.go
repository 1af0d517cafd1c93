// Package domain contains the conversation surface the generation
// recorder owns during a streamed AI response. Conversation CRUD itself
// belongs to the chat collaborator; generation status, the pending
// checkpoint, and the stored error are written only here.
package domain

import (
	"context"
	"errors"
	"time"

	plandomain "github.com/Tao119/eurekode-sub004/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
)

// GenerationStatus is the per-conversation stream state machine.
type GenerationStatus string

const (
	GenerationStatusGenerating GenerationStatus = "generating"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

type Conversation struct {
	ID     snowflake.ID     `gorm:"primaryKey"`
	UserID snowflake.ID     `gorm:"not null;index"`
	Title  string           `gorm:"type:text"`
	Mode   plandomain.Model `gorm:"type:text;not null"`

	GenerationStatus GenerationStatus `gorm:"type:text;not null"`
	PendingContent   string           `gorm:"type:text"`
	GenerationError  string           `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Conversation) TableName() string { return "conversations" }

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

type Message struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	ConversationID snowflake.ID `gorm:"not null;index"`
	Role           MessageRole  `gorm:"type:text;not null"`
	Content        string       `gorm:"type:text;not null"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Message) TableName() string { return "messages" }

// RecoveryState tells the chat UI how to surface an interrupted stream.
type RecoveryState struct {
	Status          GenerationStatus `json:"status"`
	PendingContent  string           `json:"pending_content,omitempty"`
	GenerationError string           `json:"generation_error,omitempty"`
	// OfferRegenerate is set for both unresolved interruptions (still
	// "generating" on load) and recorded failures.
	OfferRegenerate bool `json:"offer_regenerate"`
}

type Service interface {
	Recovery(ctx context.Context, conversationID snowflake.ID) (RecoveryState, error)
}

var (
	ErrConversationNotFound = errors.New("conversation_not_found")
	ErrInvalidConversation  = errors.New("invalid_conversation")
	ErrModelNotPermitted    = errors.New("model_not_permitted")
	ErrRunFinalized         = errors.New("generation_run_finalized")
)
