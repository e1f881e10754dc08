package model

import "time"

type FeedbackType string

const (
	FeedbackBugReport        FeedbackType = "BUG_REPORT"
	FeedbackLocationHistory  FeedbackType = "LOCATION_HISTORY_REQUEST"
	FeedbackFeatureRequest   FeedbackType = "FEATURE_REQUEST"
	FeedbackGeneralFeedback  FeedbackType = "GENERAL_FEEDBACK"
	FeedbackGeneral          FeedbackType = "GENERAL"
	FeedbackAccountIssue     FeedbackType = "ACCOUNT_ISSUE"
	FeedbackTechnicalSupport FeedbackType = "TECHNICAL_SUPPORT"
)

func (f FeedbackType) Valid() bool {
	switch f {
	case FeedbackBugReport, FeedbackLocationHistory, FeedbackFeatureRequest,
		FeedbackGeneralFeedback, FeedbackGeneral, FeedbackAccountIssue, FeedbackTechnicalSupport:
		return true
	}
	return false
}

type HelpRequest struct {
	ID              int64        `json:"id"`
	UserID          int64        `json:"user_id"`
	UserEmail       string       `json:"user_email"`
	FeedbackType    FeedbackType `json:"feedback_type"`
	ErrorDetails    string       `json:"error_details"`
	AdditionalNotes string       `json:"additional_notes"`
	Status          string       `json:"status"`
	AppVersion      string       `json:"app_version"`
	DeviceInfo      string       `json:"device_info"`
	CreatedAt       time.Time    `json:"created_at"`
}
