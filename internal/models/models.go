package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// FlexString decodes from either a JSON string or a JSON number. The backend
// reports identifiers and durations in both shapes depending on the endpoint.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// String returns the raw value.
func (f FlexString) String() string { return string(f) }

// User represents the authenticated account as reported by the backend.
type User struct {
	ID         FlexString `json:"id"`
	Email      string     `json:"email"`
	Name       string     `json:"name"`
	AvatarURL  string     `json:"avatarUrl,omitempty"`
	Provider   string     `json:"provider,omitempty"`
	ProviderID string     `json:"providerId,omitempty"`
	Credits    int        `json:"credits"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// AuthResult is returned by the signup and login endpoints.
type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// SubmissionStatus is the processing state of a submitted video.
type SubmissionStatus string

const (
	StatusPending      SubmissionStatus = "pending"
	StatusProcessing   SubmissionStatus = "processing"
	StatusDownloaded   SubmissionStatus = "downloaded"
	StatusTranscribing SubmissionStatus = "transcribing"
	StatusCompleted    SubmissionStatus = "completed"
	StatusFailed       SubmissionStatus = "failed"
)

// Terminal reports whether no further status transitions are expected.
func (s SubmissionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// SummaryMetric is a labelled figure extracted from a video.
type SummaryMetric struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Summary is the condensed description of a processed video.
type Summary struct {
	Text     string          `json:"text"`
	Metrics  []SummaryMetric `json:"metrics"`
	Topics   []string        `json:"topics,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// TranscriptBlock is a timestamped transcript fragment.
type TranscriptBlock struct {
	Time string `json:"time"`
	Text string `json:"text"`
}

// InsightChip is a short tag displayed above the insight sections.
type InsightChip struct {
	Label   string `json:"label"`
	Variant string `json:"variant"`
}

// InsightItem is one finding inside an insight section.
type InsightItem struct {
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence,omitempty"`
	Key        bool     `json:"key,omitempty"`
	Quote      bool     `json:"quote,omitempty"`
}

// InsightSection groups related findings.
type InsightSection struct {
	Title string        `json:"title"`
	Icon  string        `json:"icon,omitempty"`
	Items []InsightItem `json:"items"`
}

// Insights is the analysis payload of a processed video.
type Insights struct {
	Chips    []InsightChip    `json:"chips"`
	Sections []InsightSection `json:"sections"`
	Topics   []string         `json:"topics,omitempty"`
	Summary  string           `json:"summary,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// MindMapBranch is a first-level node of the mind map.
type MindMapBranch struct {
	Label    string `json:"label"`
	Children []struct {
		Label string `json:"label"`
	} `json:"children"`
}

// MindMap is an optional hierarchical view of the insights.
type MindMap struct {
	Root     string          `json:"root"`
	Branches []MindMapBranch `json:"branches"`
}

// Submission is a video the user submitted for analysis.
type Submission struct {
	ID            FlexString        `json:"id"`
	VideoURL      string            `json:"videoUrl,omitempty"`
	Title         string            `json:"title"`
	Status        SubmissionStatus  `json:"status"`
	Thumbnail     string            `json:"thumbnail,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     *time.Time        `json:"updatedAt,omitempty"`
	Duration      FlexString        `json:"duration"`
	Platform      string            `json:"platform,omitempty"`
	Summary       Summary           `json:"summary"`
	Transcript    []TranscriptBlock `json:"transcript,omitempty"`
	Transcription string            `json:"transcription,omitempty"`
	Insights      Insights          `json:"insights"`
	MindMap       *MindMap          `json:"mindMap,omitempty"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
}

// VideoList is the payload of GET /video.
type VideoList struct {
	Videos []Submission `json:"videos"`
}

// SubmitResult is the payload of POST /video.
type SubmitResult struct {
	ID      FlexString       `json:"id"`
	Status  SubmissionStatus `json:"status"`
	Message string           `json:"message,omitempty"`
}

// StatusProbe is the payload of GET /video/{id}/status.
type StatusProbe struct {
	Status   SubmissionStatus `json:"status"`
	Progress *int             `json:"progress,omitempty"`
}

// Platform identifies the host of a pasted video URL.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformVimeo     Platform = "vimeo"
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
	PlatformUnknown   Platform = "unknown"
)

// VideoMetadata is the ephemeral preview shown before a submission.
type VideoMetadata struct {
	Platform    Platform `json:"platform"`
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Duration    string   `json:"duration,omitempty"`
	Thumbnail   string   `json:"thumbnail,omitempty"`
	Channel     string   `json:"channel,omitempty"`
	Author      string   `json:"author,omitempty"`
	PublishedAt string   `json:"publishedAt,omitempty"`
}

// TransactionType classifies a wallet movement.
type TransactionType string

const (
	TransactionSpend    TransactionType = "spend"
	TransactionPurchase TransactionType = "purchase"
	TransactionRefund   TransactionType = "refund"
)

// Transaction is a single wallet movement.
type Transaction struct {
	ID            FlexString      `json:"id"`
	Amount        int             `json:"amount"`
	Type          TransactionType `json:"type"`
	Status        string          `json:"status"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"createdAt"`
	ReferenceID   string          `json:"referenceId,omitempty"`
	ReferenceType string          `json:"referenceType,omitempty"`
	TokensUsed    int             `json:"tokensUsed,omitempty"`
}

// Pagination describes the window of transactions returned.
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// CreditsPage is the payload of GET /credits.
type CreditsPage struct {
	Credits      int           `json:"credits"`
	Transactions []Transaction `json:"transactions"`
	Pagination   Pagination    `json:"pagination"`
}

// FormatSeconds renders a duration in seconds as m:ss or h:mm:ss.
func FormatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return strconv.Itoa(h) + ":" + pad2(m) + ":" + pad2(s)
	}
	return strconv.Itoa(m) + ":" + pad2(s)
}

func pad2(v int) string {
	if v < 10 {
		return "0" + strconv.Itoa(v)
	}
	return strconv.Itoa(v)
}
