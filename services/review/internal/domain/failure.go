package domain

import (
	"fmt"
	"time"
)

// FailureKind classifies why one store could not be read.
type FailureKind int

const (
	FailureAccessRestricted FailureKind = iota + 1
	FailureNotFound
	FailureNoReviews
	FailureNoAccount
	FailureAccountUnavailable
	FailureTransient
)

var failureMessages = map[FailureKind]struct {
	kind MessageType
	text string
}{
	FailureAccessRestricted:   {MessageAPILimitation, "Reviews for this location are restricted by the directory's privacy settings."},
	FailureNotFound:           {MessageNoReviewsFound, "The directory has no review listing for this location."},
	FailureNoReviews:          {MessageNoReviewsAvailable, "This location has no reviews yet."},
	FailureNoAccount:          {MessageNoAccountAccess, "The connected business account has no accessible locations."},
	FailureAccountUnavailable: {MessageAccountError, "Could not resolve the connected business account."},
	FailureTransient:          {MessageFetchError, "Reviews could not be fetched."},
}

// FetchFailure is a per-store failure recovered into the feed as a system message.
type FetchFailure struct {
	Kind FailureKind
	Err  error
}

func (f *FetchFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.MessageType(), f.Err)
	}
	return string(f.MessageType())
}

func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// MessageType returns the system message type reported for this failure.
func (f *FetchFailure) MessageType() MessageType {
	return failureMessages[f.Kind].kind
}

// SystemMessage renders the failure as a feed entry for store. Transient
// failures and account errors carry the underlying error text.
func (f *FetchFailure) SystemMessage(store Store, now time.Time) Review {
	text := failureMessages[f.Kind].text
	if f.Err != nil && (f.Kind == FailureTransient || f.Kind == FailureAccountUnavailable) {
		text = text + " " + f.Err.Error()
	}
	return NewSystemMessage(store, f.MessageType(), text, now)
}
