package app

import (
	"sort"
	"strings"
	"sync"
)

// Sport opcodes understood by the robot's sport service.
const (
	APIDamp          = 1001
	APIBalanceStand  = 1002
	APIStopMove      = 1003
	APIStandUp       = 1004
	APIStandDown     = 1005
	APIRecoveryStand = 1006
	APISit           = 1009
	APIRiseSit       = 1010
	APIHello         = 1016
	APIStretch       = 1017
	APIWiggleHips    = 1033
)

// APISetMotionMode is the motion switcher's "set mode" opcode.
const APISetMotionMode = 1002

// ModeNormal is the mode requested after every connect and by keepalive pings.
const ModeNormal = "normal"

// CommandSpec describes one named command.
type CommandSpec struct {
	Name  string `json:"name"`
	APIID int    `json:"api_id"`

	// Tolerated lists non-zero status codes that still count as success.
	Tolerated []int `json:"tolerated,omitempty"`

	// Keepalive commands start the motion keepalive watchdog on success.
	Keepalive bool `json:"keepalive"`

	// Disengage commands always stop the keepalive watchdog.
	Disengage bool `json:"disengage"`
}

var defaultCommands = []CommandSpec{
	{Name: "damp", APIID: APIDamp, Disengage: true},
	{Name: "balance_stand", APIID: APIBalanceStand, Keepalive: true},
	{Name: "stop_move", APIID: APIStopMove},
	{Name: "stand_up", APIID: APIStandUp, Keepalive: true},
	{Name: "stand_down", APIID: APIStandDown},
	{Name: "recovery_stand", APIID: APIRecoveryStand, Keepalive: true},
	// The sit firmware answers -1 even when the robot sits down.
	{Name: "sit", APIID: APISit, Tolerated: []int{-1}},
	{Name: "rise_sit", APIID: APIRiseSit},
	{Name: "hello", APIID: APIHello},
	{Name: "stretch", APIID: APIStretch},
	{Name: "wiggle_hips", APIID: APIWiggleHips},
}

var commandAliases = map[string]string{
	"crouch": "stand_down",
	"shake":  "hello",
	"wiggle": "wiggle_hips",
}

var motionModes = map[string]bool{
	"normal": true,
	"ai":     true,
	"mcf":    true,
}

// CommandTable maps command names to opcodes and success tolerances.
// Tolerances are data: overrides can be swapped at runtime without
// touching the dispatch path.
type CommandTable struct {
	mu        sync.RWMutex
	specs     map[string]CommandSpec
	overrides map[string][]int
}

// NewCommandTable builds the default table with tolerance overrides applied.
func NewCommandTable(overrides map[string][]int) *CommandTable {
	t := &CommandTable{specs: make(map[string]CommandSpec, len(defaultCommands))}
	for _, spec := range defaultCommands {
		t.specs[spec.Name] = spec
	}
	t.SetTolerances(overrides)
	return t
}

// Resolve returns the canonical name for name or one of its aliases.
func (t *CommandTable) Resolve(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := commandAliases[name]; ok {
		return canonical
	}
	return name
}

// Lookup returns the spec for name with its effective tolerances.
func (t *CommandTable) Lookup(name string) (CommandSpec, bool) {
	name = t.Resolve(name)

	t.mu.RLock()
	defer t.mu.RUnlock()
	spec, ok := t.specs[name]
	if !ok {
		return CommandSpec{}, false
	}
	spec.Tolerated = append([]int(nil), t.tolerated(spec)...)
	return spec, true
}

// Succeeded reports whether code counts as success for the named command.
func (t *CommandTable) Succeeded(name string, code int) bool {
	if code == 0 {
		return true
	}
	name = t.Resolve(name)

	t.mu.RLock()
	defer t.mu.RUnlock()
	spec, ok := t.specs[name]
	if !ok {
		return false
	}
	for _, c := range t.tolerated(spec) {
		if c == code {
			return true
		}
	}
	return false
}

// tolerated must be called with mu held.
func (t *CommandTable) tolerated(spec CommandSpec) []int {
	if codes, ok := t.overrides[spec.Name]; ok {
		return codes
	}
	return spec.Tolerated
}

// SetTolerances replaces the override table. Commands absent from
// overrides fall back to their built-in tolerances.
func (t *CommandTable) SetTolerances(overrides map[string][]int) {
	next := make(map[string][]int, len(overrides))
	for name, codes := range overrides {
		next[t.Resolve(name)] = append([]int(nil), codes...)
	}

	t.mu.Lock()
	t.overrides = next
	t.mu.Unlock()
}

// Commands returns all specs sorted by name.
func (t *CommandTable) Commands() []CommandSpec {
	t.mu.RLock()
	out := make([]CommandSpec, 0, len(t.specs))
	for _, spec := range t.specs {
		spec.Tolerated = append([]int(nil), t.tolerated(spec)...)
		out = append(out, spec)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidMode reports whether mode is a motion mode the robot accepts.
func ValidMode(mode string) bool {
	return motionModes[mode]
}
