package entity

import "net/netip"

// -----------------------------------------------------------------------------
// Gateway payloads
// -----------------------------------------------------------------------------

// Hello is the payload the gateway sends upon connection.
type Hello struct {
	HeartbeatInterval int             `json:"heartbeat_interval"` // Milliseconds between pings
	InstanceInfo      InstanceInfo    `json:"instance_info"`
	PandemoniumInfo   PandemoniumConf `json:"pandemonium_info"`
}

// RatelimitData is sent when the gateway rate-limits the client.
type RatelimitData struct {
	Wait int `json:"wait"` // Milliseconds until the limit wears off
}

// Authenticated is sent once the AUTHENTICATE token has been accepted.
type Authenticated struct {
	User  User   `json:"user"`
	Users []User `json:"users"` // Online users relevant to User
}

// PresenceUpdate reports a status change for a user.
type PresenceUpdate struct {
	UserID uint64 `json:"user_id"`
	Status Status `json:"status"`
}

// Message is a chat message.
type Message struct {
	Author  User   `json:"author"`
	Content string `json:"content"`
}

// -----------------------------------------------------------------------------
// Instance configuration
// -----------------------------------------------------------------------------

// InstanceInfo describes the connected instance.
type InstanceInfo struct {
	InstanceName       string              `json:"instance_name"`
	Description        *string             `json:"description"`
	Version            string              `json:"version"`
	MessageLimit       int                 `json:"message_limit"`
	OprishURL          string              `json:"oprish_url"`      // REST api
	PandemoniumURL     string              `json:"pandemonium_url"` // Gateway
	EffisURL           string              `json:"effis_url"`       // CDN
	FileSize           int64               `json:"file_size"`
	AttachmentFileSize int64               `json:"attachment_file_size"`
	RateLimits         *InstanceRatelimits `json:"rate_limits,omitempty"`
}

// PandemoniumConf is the gateway configuration of the instance.
type PandemoniumConf struct {
	URL       string        `json:"url"`
	RateLimit RatelimitConf `json:"rate_limit"`
}

// RatelimitConf allows Limit requests per ResetAfter seconds.
type RatelimitConf struct {
	ResetAfter int `json:"reset_after"`
	Limit      int `json:"limit"`
}

// EffisRatelimitConf additionally bounds the uploaded bytes per window.
type EffisRatelimitConf struct {
	RatelimitConf
	FileSizeLimit int64 `json:"file_size_limit"`
}

// InstanceRatelimits holds every rate limit of the instance.
type InstanceRatelimits struct {
	Oprish      OprishRatelimits `json:"oprish"`
	Pandemonium RatelimitConf    `json:"pandemonium"`
	Effis       EffisRatelimits  `json:"effis"`
}

// OprishRatelimits holds per-route REST limits.
type OprishRatelimits struct {
	Info          RatelimitConf `json:"info"`
	MessageCreate RatelimitConf `json:"message_create"`
	Ratelimits    RatelimitConf `json:"ratelimits"`
}

// EffisRatelimits holds per-route CDN limits.
type EffisRatelimits struct {
	Assets      EffisRatelimitConf `json:"assets"`
	Attachments EffisRatelimitConf `json:"attachments"`
	FetchFile   RatelimitConf      `json:"fetch_file"`
}

// -----------------------------------------------------------------------------
// Users and sessions
// -----------------------------------------------------------------------------

// StatusType is the presence of a user.
type StatusType string

const (
	StatusOnline  StatusType = "ONLINE"
	StatusOffline StatusType = "OFFLINE"
	StatusIdle    StatusType = "IDLE"
	StatusBusy    StatusType = "BUSY"
)

// Status is a presence plus optional text.
type Status struct {
	Type StatusType `json:"type"`
	Text *string    `json:"text,omitempty"`
}

// User is a user on the instance.
//
// Email and Verified are only present for the authenticated user.
type User struct {
	ID           uint64  `json:"id"`
	Username     string  `json:"username"`
	DisplayName  *string `json:"display_name,omitempty"`
	SocialCredit int     `json:"social_credit"`
	Status       Status  `json:"status"`
	Bio          *string `json:"bio,omitempty"`
	Avatar       *uint64 `json:"avatar,omitempty"`
	Banner       *uint64 `json:"banner,omitempty"`
	Badges       uint64  `json:"badges"`
	Permissions  uint64  `json:"permissions"`
	Email        *string `json:"email,omitempty"`
	Verified     *bool   `json:"verified,omitempty"`
}

// Session is an authenticated session.
type Session struct {
	ID       uint64     `json:"id"`
	UserID   uint64     `json:"user_id"`
	Platform string     `json:"platform"`
	Client   string     `json:"client"`
	IP       netip.Addr `json:"ip"`
}

// -----------------------------------------------------------------------------
// Files
// -----------------------------------------------------------------------------

// FileMetadata describes a stored file. Width and Height are only set for
// images and videos.
type FileMetadata struct {
	Type   string `json:"type"` // "text", "image", "video" or "other"
	Width  *int   `json:"width,omitempty"`
	Height *int   `json:"height,omitempty"`
}

// FileData is a file stored on the CDN.
type FileData struct {
	ID       uint64       `json:"id"`
	Name     string       `json:"name"`
	Bucket   string       `json:"bucket"`
	Spoiler  bool         `json:"spoiler"`
	Metadata FileMetadata `json:"metadata"`
}
