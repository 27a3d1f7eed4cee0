// Package state holds the agent's persistent state document and its on-disk
// store. The whole state is one JSON file. Actions and alerts are bounded
// logs so the file cannot grow without limit.
package state

import "time"

// maxLogEntries bounds the actions and alerts logs. Every append trims the
// log to the newest entries.
const maxLogEntries = 200

// Action kinds and alert levels appearing in the document.
const (
	ActionRestart      = "restart"
	ActionAllowlistSet = "allowlist_set"

	LevelError    = "error"
	LevelCritical = "critical"
)

// ContainerInfo is one container snapshot taken during a tick.
type ContainerInfo struct {
	ID     string   `json:"id"`
	Names  []string `json:"names"`
	Image  string   `json:"image"`
	State  string   `json:"state"`
	Status string   `json:"status"`
}

// RoleInfo identifies the container currently filling a role. Both fields
// are null when no container matches.
type RoleInfo struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// Intel is the observation section, refreshed on every successful container
// listing and preserved as-is when a listing fails.
type Intel struct {
	Containers []ContainerInfo     `json:"containers"`
	Roles      map[string]RoleInfo `json:"roles"`
}

// Action records something the agent did.
type Action struct {
	TS      int64          `json:"ts"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details"`
}

// Alert records something an operator should see.
type Alert struct {
	TS    int64          `json:"ts"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	Meta  map[string]any `json:"meta"`
}

// Document is the whole state file. LastRun is null until the first fully
// successful tick.
type Document struct {
	LastRun *int64   `json:"last_run"`
	Intel   Intel    `json:"intel"`
	Actions []Action `json:"actions"`
	Alerts  []Alert  `json:"alerts"`
}

// NewDocument returns an empty document with all collections initialized so
// the JSON encoding uses empty arrays and objects instead of null.
func NewDocument() *Document {
	return &Document{
		Intel: Intel{
			Containers: []ContainerInfo{},
			Roles:      map[string]RoleInfo{},
		},
		Actions: []Action{},
		Alerts:  []Alert{},
	}
}

// normalize fills in nil collections after decoding a sparse or older file.
func (d *Document) normalize() {
	if d.Intel.Containers == nil {
		d.Intel.Containers = []ContainerInfo{}
	}
	if d.Intel.Roles == nil {
		d.Intel.Roles = map[string]RoleInfo{}
	}
	if d.Actions == nil {
		d.Actions = []Action{}
	}
	if d.Alerts == nil {
		d.Alerts = []Alert{}
	}
}

// PushAction appends a pre-built action entry and trims the log to
// maxLogEntries. Use this when the entry was stamped before the document
// was loaded.
func (d *Document) PushAction(a Action) {
	if a.Details == nil {
		a.Details = map[string]any{}
	}
	d.Actions = append(d.Actions, a)
	if n := len(d.Actions); n > maxLogEntries {
		d.Actions = d.Actions[n-maxLogEntries:]
	}
}

// AppendAction appends an action entry stamped with the current time.
func (d *Document) AppendAction(kind string, details map[string]any) {
	d.PushAction(Action{TS: time.Now().Unix(), Kind: kind, Details: details})
}

// PushAlert appends a pre-built alert entry and trims the log to
// maxLogEntries.
func (d *Document) PushAlert(a Alert) {
	if a.Meta == nil {
		a.Meta = map[string]any{}
	}
	d.Alerts = append(d.Alerts, a)
	if n := len(d.Alerts); n > maxLogEntries {
		d.Alerts = d.Alerts[n-maxLogEntries:]
	}
}

// AppendAlert appends an alert entry stamped with the current time.
func (d *Document) AppendAlert(level, msg string, meta map[string]any) {
	d.PushAlert(Alert{TS: time.Now().Unix(), Level: level, Msg: msg, Meta: meta})
}

// SetLastRun records a completed tick at the given unix timestamp.
func (d *Document) SetLastRun(ts int64) {
	d.LastRun = &ts
}
