package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MessageType classifies a system message. Real reviews carry an empty type.
type MessageType string

const (
	MessageAPILimitation      MessageType = "api_limitation"
	MessageNoReviewsFound     MessageType = "no_reviews_found"
	MessageNoAccountAccess    MessageType = "no_account_access"
	MessageAccountError       MessageType = "account_error"
	MessageFetchError         MessageType = "fetch_error"
	MessageNoReviewsAvailable MessageType = "no_reviews_available"
)

// SystemReviewerName is the reviewer shown on system messages.
const SystemReviewerName = "System"

// AnonymousReviewer is used when the upstream omits the reviewer's display name.
const AnonymousReviewer = "anonymous"

// reviewNamespace seeds deterministic review IDs.
var reviewNamespace = uuid.MustParse("6f1c3a52-8d4e-4c36-9a57-2b0f5d3e9c11")

// Review is a normalized customer review or a system message describing why a
// store could not be read. Rating 0 means no usable rating.
type Review struct {
	ID              string      `json:"id"`
	StoreID         string      `json:"store_id"`
	StoreName       string      `json:"store_name"`
	Rating          int         `json:"rating"`
	Text            string      `json:"text"`
	ReviewerName    string      `json:"reviewer_name"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Replied         bool        `json:"replied"`
	ReplyText       string      `json:"reply_text,omitempty"`
	IsRealData      bool        `json:"is_real_data"`
	IsSystemMessage bool        `json:"is_system_message"`
	MessageType     MessageType `json:"message_type,omitempty"`
}

// IsUnreplied reports whether r is a genuine review still waiting for an answer.
func (r Review) IsUnreplied() bool {
	return !r.IsSystemMessage && !r.Replied && r.IsRealData
}

// ReviewID derives a stable ID for an upstream review so the same review keeps
// its ID across requests. When the upstream sent no ID the creation time and
// reviewer name stand in for it.
func ReviewID(storeID, upstreamID string, createdAt time.Time, reviewer string) string {
	key := storeID + "/" + upstreamID
	if upstreamID == "" {
		key = fmt.Sprintf("%s/%d/%s", storeID, createdAt.UnixNano(), reviewer)
	}
	return uuid.NewSHA1(reviewNamespace, []byte(key)).String()
}

// NewSystemMessage builds the feed entry reported in place of a store's reviews.
func NewSystemMessage(store Store, kind MessageType, text string, now time.Time) Review {
	now = now.UTC()
	return Review{
		ID:              fmt.Sprintf("system-%s-%s-%d", kind, store.ID, now.UnixNano()),
		StoreID:         store.ID,
		StoreName:       store.DisplayName,
		Rating:          0,
		Text:            text,
		ReviewerName:    SystemReviewerName,
		CreatedAt:       now,
		UpdatedAt:       now,
		IsRealData:      false,
		IsSystemMessage: true,
		MessageType:     kind,
	}
}
