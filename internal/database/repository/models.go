package repository

import "time"

// Party is a node on the demo network, keyed by its X.500-style name.
type Party struct {
	Name         string
	Organisation string
	CreatedAt    time.Time
}

// Demand represents a demand row. Dates stay nil until the platform lead
// prices the demand.
type Demand struct {
	ID              string
	Description     string
	Amount          int64
	StartDate       *time.Time
	EndDate         *time.Time
	Sponsor         string
	PlatformLead    string
	ApprovalParties []string
	TxID            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Project represents a project row created from an approved demand.
type Project struct {
	ID            string
	ProjectCode   string
	AllocationKey string
	Description   string
	Budget        int64
	StartDate     time.Time
	EndDate       time.Time
	Sponsor       string
	PlatformLead  string
	CIO           string
	COO           string
	DemandID      string
	TxID          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Allocation represents a slice of a project budget given to a delivery team.
type Allocation struct {
	ID            string
	ProjectID     string
	ProjectCode   string
	AllocationKey string
	Description   string
	PlatformLead  string
	DeliveryTeam  string
	Amount        int64
	StartDate     time.Time
	EndDate       time.Time
	TxID          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
