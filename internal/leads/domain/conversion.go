package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversionStatus is the economic outcome of a lead.
type ConversionStatus string

const (
	ConversionWon  ConversionStatus = "won"
	ConversionLost ConversionStatus = "lost"
)

// Conversion is the terminal outcome record written by an operator.
type Conversion struct {
	ID        uuid.UUID        `validate:"required"`
	LeadID    uuid.UUID        `validate:"required"`
	DealValue float64          `validate:"gte=0"`
	Status    ConversionStatus `validate:"oneof=won lost"`
	CreatedAt time.Time
}

// LeadStatus returns the terminal lead status the conversion implies.
func (c Conversion) LeadStatus() LeadStatus {
	if c.Status == ConversionWon {
		return StatusWon
	}
	return StatusLost
}

// DraftWithLead is a draft joined with the lead fields the queue and sender need.
type DraftWithLead struct {
	Draft
	BusinessName   string
	Email          string
	Tier           Tier
	ManualOverride bool
}
