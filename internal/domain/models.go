package domain

import "time"

type ListingType string

const (
	Offer   ListingType = "Offer"
	Request ListingType = "Request"
)

func (t ListingType) Valid() bool { return t == Offer || t == Request }

type ListingStatus string

const (
	StatusAvailable  ListingStatus = "Available"
	StatusInProgress ListingStatus = "In Progress"
	StatusCompleted  ListingStatus = "Completed"
	StatusFulfilled  ListingStatus = "Fulfilled"
	StatusClosed     ListingStatus = "Closed"
)

var (
	offerStatuses   = []ListingStatus{StatusAvailable, StatusInProgress, StatusCompleted}
	requestStatuses = []ListingStatus{StatusAvailable, StatusFulfilled, StatusClosed}
)

// AllowedStatuses returns the status set a listing of type t may hold.
func AllowedStatuses(t ListingType) []ListingStatus {
	if t == Offer {
		return offerStatuses
	}
	return requestStatuses
}

func StatusAllowed(t ListingType, s ListingStatus) bool {
	for _, v := range AllowedStatuses(t) {
		if v == s {
			return true
		}
	}
	return false
}

// DoneStatus is the terminal status reached by markCompleted.
func DoneStatus(t ListingType) ListingStatus {
	if t == Offer {
		return StatusCompleted
	}
	return StatusFulfilled
}

// OwnerSettable reports whether the owner may move a listing to s with a status-only edit.
func OwnerSettable(t ListingType, s ListingStatus) bool {
	if s == StatusAvailable {
		return true
	}
	return t == Request && s == StatusClosed
}

type Tag struct {
	ID       int64    `db:"id" json:"id"`
	Category Category `db:"category" json:"category"`
	Name     string   `db:"name" json:"name"`
}

type Listing struct {
	ID              int64         `db:"id" json:"id"`
	CreatorID       int64         `db:"creator_id" json:"creator_id"`
	Category        Category      `db:"category" json:"category"`
	Title           string        `db:"title" json:"title"`
	Description     string        `db:"description" json:"description"`
	Image           string        `db:"image" json:"image,omitempty"`
	Type            ListingType   `db:"listing_type" json:"listing_type"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	Status          ListingStatus `db:"status" json:"status"`
	PostedAt        time.Time     `db:"posted_at" json:"posted_at"`
	EditedAt        time.Time     `db:"edited_at" json:"edited_at"`
}

// ListingView is the materialized form returned to callers.
type ListingView struct {
	Listing
	Creator       string   `json:"creator"`
	CategoryLabel string   `json:"category_label"`
	Tags          []string `json:"tags"`
	TagIDs        []int64  `json:"tag_ids"`
}

type Availability struct {
	ID        int64     `db:"id" json:"id"`
	ListingID int64     `db:"listing_id" json:"listing_id"`
	From      time.Time `db:"from_time" json:"from_time"`
	To        time.Time `db:"to_time" json:"to_time"`
}

type ApplicationStatus int

const (
	AppPending  ApplicationStatus = 1
	AppAccepted ApplicationStatus = 2
	AppRejected ApplicationStatus = 3
)

func (s ApplicationStatus) String() string {
	switch s {
	case AppPending:
		return "Pending"
	case AppAccepted:
		return "Accepted"
	case AppRejected:
		return "Rejected"
	}
	return "Unknown"
}

type Application struct {
	ID          int64             `db:"id" json:"id"`
	ListingID   int64             `db:"listing_id" json:"listing_id"`
	ApplicantID int64             `db:"applicant_id" json:"applicant_id"`
	Applicant   string            `db:"applicant" json:"applicant,omitempty"`
	Message     string            `db:"message" json:"message"`
	Status      ApplicationStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

type TransactionStatus string

const (
	TxPending   TransactionStatus = "Pending"
	TxCompleted TransactionStatus = "Completed"
	TxCancelled TransactionStatus = "Cancelled"
)

type Transaction struct {
	ID              int64             `db:"id" json:"id"`
	ListingID       *int64            `db:"listing_id" json:"listing_id,omitempty"`
	ProviderID      int64             `db:"provider_id" json:"provider_id"`
	RequesterID     int64             `db:"requester_id" json:"requester_id"`
	DurationMinutes int               `db:"duration_minutes" json:"duration_minutes"`
	Multiplier      float64           `db:"multiplier" json:"multiplier"`
	Status          TransactionStatus `db:"status" json:"status"`
	FeedbackGiven   bool              `db:"feedback_given" json:"feedback_given"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
	CompletedAt     *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
}

type Feedback struct {
	ID            int64     `db:"id" json:"id"`
	TransactionID int64     `db:"transaction_id" json:"transaction_id"`
	ProviderID    int64     `db:"provider_id" json:"provider_id"`
	RequesterID   int64     `db:"requester_id" json:"requester_id"`
	Rating        int       `db:"rating" json:"rating"`
	Comment       string    `db:"comment" json:"comment,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

type Notification struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Message   string    `db:"message" json:"message"`
	URL       string    `db:"url" json:"url"`
	IsRead    bool      `db:"is_read" json:"is_read"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ListingDraft is the caller-supplied content of a new listing.
type ListingDraft struct {
	Category        Category
	Title           string
	Description     string
	Type            ListingType
	DurationMinutes int
	TagIDs          []int64
	Image           string
}

// ListingPatch carries the fields an edit changes; nil means unchanged.
type ListingPatch struct {
	Title           *string
	Description     *string
	Category        *Category
	Type            *ListingType
	DurationMinutes *int
	TagIDs          *[]int64
	Image           *string
	Status          *ListingStatus
}

// Substantive reports whether the patch touches anything besides status.
func (p ListingPatch) Substantive() bool {
	return p.Title != nil || p.Description != nil || p.Category != nil || p.Type != nil ||
		p.DurationMinutes != nil || p.TagIDs != nil || p.Image != nil
}

func (p ListingPatch) Empty() bool { return !p.Substantive() && p.Status == nil }
