// Package model defines the core memory data types.
package model

import "time"

// Sector classifies a memory as durable or transient.
type Sector string

const (
	// SectorSemantic holds durable facts about the owner: preferences,
	// identity, standing instructions.
	SectorSemantic Sector = "semantic"
	// SectorEpisodic holds a record of what happened in one exchange.
	SectorEpisodic Sector = "episodic"
)

// MaxContentLength is the upper bound on stored content, in characters.
const MaxContentLength = 512

// Memory represents a stored memory entry.
type Memory struct {
	ID         int64     `json:"id"`
	Owner      string    `json:"owner"`
	Content    string    `json:"content"`
	Sector     Sector    `json:"sector"`
	Salience   float64   `json:"salience"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
	TopicKey   string    `json:"topic_key,omitempty"`
}

// ValidSectors are the allowed memory sectors.
var ValidSectors = map[Sector]bool{
	SectorSemantic: true,
	SectorEpisodic: true,
}

// OwnerSettings holds per-owner toggles.
type OwnerSettings struct {
	Owner     string    `json:"owner"`
	VoiceMode bool      `json:"voice_mode"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
