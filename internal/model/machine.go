package model

import "time"

// MachineStatus is the health state of one lab machine.
type MachineStatus string

const (
	StatusOnline      MachineStatus = "ONLINE"
	StatusOffline     MachineStatus = "OFFLINE"
	StatusError       MachineStatus = "ERROR"
	StatusMaintenance MachineStatus = "MAINTENANCE"
)

// MachineLog is the latest fault/maintenance detail attached to a
// machine record. It is replaced wholesale on every update.
type MachineLog struct {
	Issues      []string `json:"issues"`
	Note        string   `json:"note"`
	UpdatedBy   string   `json:"updatedBy"`
	LastUpdated string   `json:"lastUpdated"`
}

// MachineRecord is the current-state document for one machine.
// The key is "{labId}_{machineNumber}" and is immutable once created.
type MachineRecord struct {
	ID            string        `gorm:"primaryKey;size:64" json:"id"`
	LabID         string        `gorm:"index;size:32;not null" json:"labId"`
	MachineNumber int           `gorm:"not null" json:"machineNumber"`
	Status        MachineStatus `gorm:"size:16;not null" json:"status"`
	Log           *MachineLog   `gorm:"serializer:json" json:"log,omitempty"`
	UpdatedAt     time.Time     `json:"updatedAt"`

	// Associations
	Subscriptions []*PushSubscription `gorm:"many2many:subscription_machine_mapping;" json:"-"`
}

// MachineHistoryEntry is one immutable snapshot appended whenever a
// machine record is updated. Timestamp orders the list; FormattedDate
// is the locale-formatted string shown to operators. The two are kept
// separate so display formatting cannot affect sort order.
type MachineHistoryEntry struct {
	ID            string        `gorm:"primaryKey;size:64" json:"id"`
	MachineID     string        `gorm:"index;size:64;not null" json:"-"`
	Status        MachineStatus `gorm:"size:16;not null" json:"status"`
	Issues        []string      `gorm:"serializer:json" json:"issues"`
	Note          string        `json:"note"`
	UpdatedBy     string        `gorm:"size:128" json:"updatedBy"`
	Timestamp     time.Time     `gorm:"index;not null" json:"timestamp"`
	FormattedDate string        `gorm:"size:64" json:"formattedDate"`
}
