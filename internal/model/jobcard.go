package model

import (
	"fmt"
	"time"
)

// JobStatus is a job card's position in the repair workflow.
type JobStatus string

const (
	JobReceived         JobStatus = "Received"
	JobDiagnosing       JobStatus = "Diagnosing"
	JobAwaitingApproval JobStatus = "AwaitingApproval"
	JobInRepair         JobStatus = "InRepair"
	JobReady            JobStatus = "Ready"
	JobDelivered        JobStatus = "Delivered"
	JobCancelled        JobStatus = "Cancelled"
)

// jobTransitions maps each status to the statuses it may move to.
// Delivered and Cancelled are terminal; Cancelled is reachable from every
// non-terminal status.
var jobTransitions = map[JobStatus][]JobStatus{
	JobReceived:         {JobDiagnosing, JobCancelled},
	JobDiagnosing:       {JobAwaitingApproval, JobInRepair, JobCancelled},
	JobAwaitingApproval: {JobInRepair, JobCancelled},
	JobInRepair:         {JobReady, JobCancelled},
	JobReady:            {JobDelivered, JobCancelled},
	JobDelivered:        nil,
	JobCancelled:        nil,
}

// CanTransition reports whether a job card may move from one status to another.
func CanTransition(from, to JobStatus) bool {
	for _, next := range jobTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WorkLogEntry is one line of a job card's free-text work log.
// The log is ordered and append-only.
type WorkLogEntry struct {
	At   time.Time `json:"at"`
	Note string    `json:"note"`
}

// JobCard tracks a repair ticket from device intake through delivery.
type JobCard struct {
	ID            string         `json:"id"`
	CustomerName  string         `json:"customerName"`
	CustomerPhone string         `json:"customerPhone,omitempty"`
	Device        string         `json:"device"`
	Complaints    []string       `json:"complaints,omitempty"`
	Diagnosis     string         `json:"diagnosis,omitempty"`
	PartsEstimate float64        `json:"partsEstimate,omitempty"`
	LaborEstimate float64        `json:"laborEstimate,omitempty"`
	AdvancePaid   float64        `json:"advancePaid,omitempty"`
	Status        JobStatus      `json:"status"`
	Photos        []string       `json:"photos,omitempty"`
	WorkLog       []WorkLogEntry `json:"workLog,omitempty"`
	InvoiceID     string         `json:"invoiceId,omitempty"` // linked sale, set on delivery
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// RecordID implements store.Record.
func (j JobCard) RecordID() string { return j.ID }

// Validate checks the job card has usable field values.
func (j JobCard) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("id is required")
	}
	if j.CustomerName == "" {
		return fmt.Errorf("customerName is required")
	}
	if j.Device == "" {
		return fmt.Errorf("device is required")
	}
	if _, ok := jobTransitions[j.Status]; !ok {
		return fmt.Errorf("unknown status %q", j.Status)
	}
	return nil
}

// Terminal reports whether the job card has reached a final status.
func (j JobCard) Terminal() bool {
	return j.Status == JobDelivered || j.Status == JobCancelled
}

// EstimateTotal returns the quoted parts plus labor cost.
func (j JobCard) EstimateTotal() float64 {
	return j.PartsEstimate + j.LaborEstimate
}
