// Package store implements C1: key-addressed persistent state for
// sessions, provider bindings, the conversation log, cron jobs and
// history, peers, access grants, and API keys. Adapted from goclaw's
// internal/store package (SessionStore interface shape, Save's
// atomic-write discipline) and internal/sessions/manager.go.
package store

import "time"

// ChannelRef identifies the originating channel of a conversation entry or
// session, per spec §3.
type ChannelRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// ProviderBinding pins a session to a provider and fallback chain.
type ProviderBinding struct {
	Name     string                 `json:"name"`
	Model    string                 `json:"model,omitempty"`
	Fallback []string               `json:"fallback,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// Session is the durable conversation container (spec §3).
type Session struct {
	Name            string           `json:"name"`
	ID              string           `json:"id"`
	Created         time.Time        `json:"created"`
	Context         string           `json:"context,omitempty"`
	ProviderBinding *ProviderBinding `json:"providerBinding,omitempty"`
	Channel         *ChannelRef      `json:"channel,omitempty"`
}

// EntryType enumerates ConversationEntry.Type (spec §3).
type EntryType string

const (
	EntryContext    EntryType = "context"
	EntryMessage    EntryType = "message"
	EntryResponse   EntryType = "response"
	EntryMiddleware EntryType = "middleware"
)

// FinishReason marks how a response entry concluded.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishCancelled FinishReason = "cancelled"
)

// ConversationEntry is one append-only log line for a session (spec §3).
type ConversationEntry struct {
	Ts           time.Time    `json:"ts"`
	From         string       `json:"from"`
	SenderID     string       `json:"senderId,omitempty"`
	Content      string       `json:"content"`
	Type         EntryType    `json:"type"`
	Channel      *ChannelRef  `json:"channel,omitempty"`
	FinishReason FinishReason `json:"finishReason,omitempty"`
	PromptTokens int          `json:"promptTokens,omitempty"`
	CompletionTokens int      `json:"completionTokens,omitempty"`
	CostUsd      float64      `json:"costUsd,omitempty"`
}

// Script is one cron-job script step (spec §3).
type Script struct {
	Name    string `json:"name"`
	Command string `json:"command"`
	Cwd     string `json:"cwd,omitempty"`
	Timeout string `json:"timeout,omitempty"` // Go duration string
}

// CronJob is a scheduled or one-shot injection (spec §3).
type CronJob struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"` // 5-field expr, or the original one-shot string when Once is set
	Session   string     `json:"session"`
	Message   string     `json:"message"`
	Scripts   []Script   `json:"scripts,omitempty"`
	Once      bool       `json:"once,omitempty"`
	RunAt     *time.Time `json:"runAt,omitempty"`
	CreatedBy string     `json:"createdBy,omitempty"` // session that created it, for cross.inject gating
	// CreatorCapabilities snapshots the creator's granted capabilities at
	// creation time, so the fire-time cross.inject recheck evaluates the
	// grant actually held then rather than a reconstructed stand-in.
	CreatorCapabilities []string `json:"creatorCapabilities,omitempty"`
}

// CronHistoryEntry records the outcome of one cron fire (spec §3).
type CronHistoryEntry struct {
	Ts         time.Time `json:"ts"`
	Name       string    `json:"name"`
	Session    string    `json:"session"`
	Message    string    `json:"message"`
	Success    bool      `json:"success"`
	DurationMs int64     `json:"durationMs"`
	Error      string    `json:"error,omitempty"`
}

// Identity is the daemon's single signing/encryption keypair (spec §3).
type Identity struct {
	SignPub      string     `json:"signPub"`
	SignPriv     string     `json:"signPriv"`
	EncryptPub   string     `json:"encryptPub"`
	EncryptPriv  string     `json:"encryptPriv"`
	Created      time.Time  `json:"created"`
	RotatedFrom  string     `json:"rotatedFrom,omitempty"`
	RotatedAt    *time.Time `json:"rotatedAt,omitempty"`
}

// Peer is a known P2P counterpart (spec §3, §6.3).
type Peer struct {
	PublicKey   string    `json:"publicKey"`
	Label       string    `json:"label,omitempty"`
	TrustLevel  string    `json:"trustLevel"`
	AddedAt     time.Time `json:"addedAt"`
}

// AccessGrant overrides trust/capabilities for a specific source (spec §3, §4.1).
type AccessGrant struct {
	ID           string     `json:"id"`
	PublicKey    string     `json:"publicKey,omitempty"`
	ApiKeyID     string     `json:"apiKeyId,omitempty"`
	TrustLevel   string     `json:"trustLevel"`
	Capabilities []string   `json:"capabilities"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

// ApiKeyScope enumerates ApiKey.Scope (spec §3).
type ApiKeyScope string

const (
	ScopeFull     ApiKeyScope = "full"
	ScopeReadOnly ApiKeyScope = "read-only"
)

// ApiKey is a management-surface credential (spec §3).
type ApiKey struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Scope        ApiKeyScope `json:"scope"`
	Prefix       string      `json:"prefix"`
	HashedSecret string      `json:"hashedSecret"`
	Salt         string      `json:"salt"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastUsedAt   *time.Time  `json:"lastUsedAt,omitempty"`
	Revoked      bool        `json:"revoked,omitempty"`
}
