// Package model defines the core domain types for the library administration
// back-end: identifier ranges, space bookings and reviewed requests.
package model

import (
	"fmt"
	"time"
)

// NumberType is the identifier family a range issues.
type NumberType string

const (
	NumberISBN NumberType = "isbn"
	NumberISSN NumberType = "issn"
	NumberISMN NumberType = "ismn"
)

// ParseNumberType validates a number type coming from a URL or payload.
func ParseNumberType(s string) (NumberType, error) {
	switch t := NumberType(s); t {
	case NumberISBN, NumberISSN, NumberISMN:
		return t, nil
	}
	return "", fmt.Errorf("unknown number type %q", s)
}

// RangeKind distinguishes a block reserved to one requester from the
// institution's shared pool.
type RangeKind string

const (
	RangeReserved RangeKind = "reserved"
	RangeShared   RangeKind = "shared"
)

// RangeStatus is the lifecycle state of a range.
type RangeStatus string

const (
	RangeActive    RangeStatus = "active"
	RangeExhausted RangeStatus = "exhausted"
)

// NumberRange is a tranche of ISBN/ISSN/ISMN values. Shared ranges have no
// requester and advance CurrentPosition sequentially.
type NumberRange struct {
	ID              string      `json:"id"`
	Kind            RangeKind   `json:"kind"`
	NumberType      NumberType  `json:"number_type"`
	RequesterName   string      `json:"requester_name,omitempty"`
	RequesterEmail  string      `json:"requester_email,omitempty"`
	RangeStart      string      `json:"range_start"`
	RangeEnd        string      `json:"range_end"`
	UsedNumbersList []string    `json:"used_numbers_list"`
	TotalNumbers    int         `json:"total_numbers"`
	UsedNumbers     int         `json:"used_numbers"`
	CurrentPosition string      `json:"current_position,omitempty"`
	Status          RangeStatus `json:"status"`
	Version         int64       `json:"version"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Remaining returns the number of identifiers still issuable.
func (r *NumberRange) Remaining() int {
	return r.TotalNumbers - r.UsedNumbers
}

// IsExhausted returns true when the quota is consumed.
func (r *NumberRange) IsExhausted() bool {
	return r.UsedNumbers >= r.TotalNumbers
}

// IsUsed reports whether value has already been issued from this range.
func (r *NumberRange) IsUsed(value string) bool {
	for _, u := range r.UsedNumbersList {
		if u == value {
			return true
		}
	}
	return false
}

// RangeFilter narrows the range list; zero fields match everything.
type RangeFilter struct {
	Kind       RangeKind
	NumberType NumberType
	Status     RangeStatus
}

// Space is a rentable room of the institution.
type Space struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Capacity    int     `json:"capacity"`
	HourlyRate  float64 `json:"hourly_rate"`
	HalfDayRate float64 `json:"half_day_rate"`
	FullDayRate float64 `json:"full_day_rate"`
}

// Booking is one reserved slot of a space on a calendar day. Times are
// zero-padded HH:MM labels and Date is YYYY-MM-DD.
type Booking struct {
	ID              string     `json:"id"`
	SpaceID         string     `json:"space_id"`
	Date            string     `json:"date"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	OrganizerName   string     `json:"organizer_name"`
	OrganizerEmail  string     `json:"organizer_email"`
	EventTitle      string     `json:"event_title"`
	Hours           float64    `json:"hours"`
	TotalPrice      float64    `json:"total_price"`
	Status          Status     `json:"status"`
	ReviewedBy      string     `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	InfoRequest     string     `json:"info_request,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Status is the review state shared by requests and bookings.
type Status string

const (
	StatusPending       Status = "pending"
	StatusValidated     Status = "validated"
	StatusRejected      Status = "rejected"
	StatusArchived      Status = "archived"
	StatusInfoRequested Status = "info_requested"
)

// ParseStatus validates a status filter value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusValidated, StatusRejected, StatusArchived, StatusInfoRequested:
		return st, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// RequestKind names a family of submissions an administrator reviews.
type RequestKind string

const (
	KindProfessional RequestKind = "professional-registrations"
	KindISSN         RequestKind = "issn-requests"
	KindPartnership  RequestKind = "partnerships"
	KindCultural     RequestKind = "cultural-proposals"
	KindRestoration  RequestKind = "restoration-requests"
	KindLegalDeposit RequestKind = "legal-deposits"
)

// RequestKinds lists every reviewable kind.
var RequestKinds = []RequestKind{
	KindProfessional, KindISSN, KindPartnership, KindCultural, KindRestoration, KindLegalDeposit,
}

// ParseRequestKind validates a kind taken from the URL.
func ParseRequestKind(s string) (RequestKind, error) {
	for _, k := range RequestKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown request kind %q", s)
}

// Request is a submission awaiting administrative review.
type Request struct {
	ID              string         `json:"id"`
	Kind            RequestKind    `json:"kind"`
	Reference       string         `json:"reference"`
	ApplicantName   string         `json:"applicant_name"`
	ApplicantEmail  string         `json:"applicant_email"`
	Title           string         `json:"title"`
	Details         map[string]any `json:"details,omitempty"`
	Status          Status         `json:"status"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	InfoRequest     string         `json:"info_request,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// StatusChange is the review metadata written alongside a new status.
type StatusChange struct {
	Status          Status
	ReviewedBy      string
	ReviewedAt      time.Time
	RejectionReason string
	InfoRequest     string
}

// Activity is one audit-log row.
type Activity struct {
	ID          string         `json:"id"`
	EntityType  string         `json:"entity_type"`
	EntityID    string         `json:"entity_id"`
	ActionType  string         `json:"action_type"`
	PerformedBy string         `json:"performed_by"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// RequestDetail is a request with its audit trail.
type RequestDetail struct {
	Request  *Request   `json:"request"`
	Activity []Activity `json:"activity"`
}

// TransitionResult reports a status change and whether its side effects
// (audit row, e-mail) went through. The status write stands either way.
type TransitionResult[T any] struct {
	Entity      *T   `json:"entity"`
	AuditLogged bool `json:"audit_logged"`
	Notified    bool `json:"notified"`
}

// Notification is the payload handed to the backend for e-mail dispatch.
type Notification struct {
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Payload   map[string]any `json:"payload"`
}

// ListFilter narrows, sorts and paginates a collection view.
type ListFilter struct {
	Status    Status
	Query     string
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}

// Page is one page of a collection view.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// CreateRangeRequest is the payload for reserving a range.
type CreateRangeRequest struct {
	Kind           RangeKind  `json:"kind"`
	NumberType     NumberType `json:"number_type"`
	RequesterName  string     `json:"requester_name"`
	RequesterEmail string     `json:"requester_email"`
	RangeStart     string     `json:"range_start"`
	RangeEnd       string     `json:"range_end"`
}

// AllocateRequest optionally carries a manual override value.
type AllocateRequest struct {
	Custom string `json:"custom"`
}

// Allocation is the outcome of confirming an identifier.
type Allocation struct {
	Value string       `json:"value"`
	Range *NumberRange `json:"range"`
}

// QuoteRequest asks for the price of a slot.
type QuoteRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Quote is the priced duration of a slot.
type Quote struct {
	Hours float64 `json:"hours"`
	Tier  string  `json:"tier"`
	Total float64 `json:"total"`
}

// CreateBookingRequest is the payload for booking a space.
type CreateBookingRequest struct {
	Date           string `json:"date"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	OrganizerName  string `json:"organizer_name"`
	OrganizerEmail string `json:"organizer_email"`
	EventTitle     string `json:"event_title"`
}

// Availability lists the free start times of a day and, when a start was
// chosen, the admissible end times.
type Availability struct {
	Date   string   `json:"date"`
	Starts []string `json:"starts"`
	Start  string   `json:"start,omitempty"`
	Ends   []string `json:"ends,omitempty"`
}

// TransitionRequest carries the reason or message of a review action.
type TransitionRequest struct {
	Note string `json:"note"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
