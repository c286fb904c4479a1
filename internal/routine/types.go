// Package routine defines the routine quest domain: users, routines and
// their ordered steps.
//
// Fields that hold one of a fixed set of values (step type, difficulty,
// user tier) are typed string enums. Every value crossing a boundary goes
// through the matching Parse function, so unrecognized values are rejected
// before they reach storage.
package routine

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ErrInvalid is wrapped by every validation failure in this package.
var ErrInvalid = errors.New("invalid input")

// --- Step type enum ---

// StepType classifies how a step is completed.
type StepType string

const (
	StepAction StepType = "action" // a plain action: drink water, stretch
	StepTimer  StepType = "timer"  // time boxed: meditate 5 minutes
	StepCheck  StepType = "check"  // a yes/no check: journal written
	StepHabit  StepType = "habit"  // a recurring habit: brush teeth
)

var validStepTypes = map[StepType]bool{
	StepAction: true,
	StepTimer:  true,
	StepCheck:  true,
	StepHabit:  true,
}

// StepTypeValues lists the accepted step types in display order.
func StepTypeValues() []string {
	return []string{string(StepAction), string(StepTimer), string(StepCheck), string(StepHabit)}
}

// ParseStepType converts s to a StepType. An empty string yields the
// default, StepAction.
func ParseStepType(s string) (StepType, error) {
	if s == "" {
		return StepAction, nil
	}
	t := StepType(strings.ToLower(strings.TrimSpace(s)))
	if !validStepTypes[t] {
		return "", fmt.Errorf("step type %q must be one of: %s: %w", s, strings.Join(StepTypeValues(), ", "), ErrInvalid)
	}
	return t, nil
}

// --- Difficulty enum ---

// Difficulty is the expected effort of a step.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"   // 30s to 2 minutes
	DifficultyMedium Difficulty = "medium" // 2 to 10 minutes
	DifficultyHard   Difficulty = "hard"   // more than 10 minutes
)

var validDifficulties = map[Difficulty]bool{
	DifficultyEasy:   true,
	DifficultyMedium: true,
	DifficultyHard:   true,
}

// DifficultyValues lists the accepted difficulties in display order.
func DifficultyValues() []string {
	return []string{string(DifficultyEasy), string(DifficultyMedium), string(DifficultyHard)}
}

// ParseDifficulty converts s to a Difficulty. An empty string yields
// DifficultyEasy.
func ParseDifficulty(s string) (Difficulty, error) {
	if s == "" {
		return DifficultyEasy, nil
	}
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !validDifficulties[d] {
		return "", fmt.Errorf("difficulty %q must be one of: %s: %w", s, strings.Join(DifficultyValues(), ", "), ErrInvalid)
	}
	return d, nil
}

// --- Tier enum ---

// Tier is a user's subscription level.
type Tier string

const (
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
	TierTeam  Tier = "team"
)

var validTiers = map[Tier]bool{
	TierFree:  true,
	TierBasic: true,
	TierPro:   true,
	TierTeam:  true,
}

// TierValues lists the accepted tiers in ascending order.
func TierValues() []string {
	return []string{string(TierFree), string(TierBasic), string(TierPro), string(TierTeam)}
}

// ParseTier converts s to a Tier. An empty string yields TierFree.
func ParseTier(s string) (Tier, error) {
	if s == "" {
		return TierFree, nil
	}
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !validTiers[t] {
		return "", fmt.Errorf("tier %q must be one of: %s: %w", s, strings.Join(TierValues(), ", "), ErrInvalid)
	}
	return t, nil
}

// Limits caps how much a tier may create. Zero means unlimited.
type Limits struct {
	MaxRoutines        int
	MaxStepsPerRoutine int
}

// LimitsFor returns the creation limits of tier. Free accounts get one
// routine with up to five steps; paid tiers are unlimited.
func LimitsFor(t Tier) Limits {
	if t == TierFree {
		return Limits{MaxRoutines: 1, MaxStepsPerRoutine: 5}
	}
	return Limits{}
}

// --- Core data structures ---

// User is an account that owns routines.
type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Tier        Tier   `json:"tier"`
	Timezone    string `json:"timezone"`
	Streak      int    `json:"streak"`
	GraceTokens int    `json:"grace_tokens"`
	TotalXP     int    `json:"total_xp"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Routine is a named, ordered collection of steps owned by a user.
type Routine struct {
	ID                int64  `json:"id"`
	UserID            int64  `json:"-"`
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	Icon              string `json:"icon"`
	Color             string `json:"color"`
	IsPublic          bool   `json:"is_public"`
	IsActive          bool   `json:"is_active"`
	TodayDisplay      bool   `json:"today_display"`
	Version           int    `json:"version"`
	TotalCompletions  int    `json:"total_completions"`
	SuccessRate       int    `json:"success_rate"`
	AvgCompletionTime int    `json:"avg_completion_time"`
	CreatedAt         string `json:"created_at"`
	UpdatedAt         string `json:"updated_at"`
	LastChangedAt     string `json:"last_changed_at"`
	Steps             []Step `json:"steps"`
}

// Step is a single ordered action within a routine.
type Step struct {
	ID              int64      `json:"id"`
	RoutineID       int64      `json:"-"`
	Position        int        `json:"order"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Type            StepType   `json:"type"`
	Difficulty      Difficulty `json:"difficulty"`
	TRefSec         int        `json:"t_ref_sec"`
	IsOptional      bool       `json:"is_optional"`
	XPReward        int        `json:"xp_reward"`
	CompletionCount int        `json:"completion_count"`
	SkipCount       int        `json:"skip_count"`
	AvgTimeSpent    int        `json:"avg_time_spent"`
	CreatedAt       string     `json:"created_at"`
	UpdatedAt       string     `json:"updated_at"`
}

// Stats is the summary view of a routine.
type Stats struct {
	RoutineID         int64   `json:"routine_id"`
	Title             string  `json:"title"`
	TotalCompletions  int     `json:"total_completions"`
	SuccessRate       int     `json:"success_rate"`
	AvgCompletionTime int     `json:"avg_completion_time"`
	TotalSteps        int     `json:"total_steps"`
	CreatedAt         string  `json:"created_at"`
	LastCompleted     *string `json:"last_completed"`
}

// --- Defaults ---

const (
	DefaultIcon     = "🎯"
	DefaultColor    = "#6366F1"
	DefaultTRefSec  = 120
	DefaultXPReward = 10
	DefaultTimezone = "Asia/Seoul"
	MaxTitleLength  = 200
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required: %w", ErrInvalid)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title exceeds %d characters: %w", MaxTitleLength, ErrInvalid)
	}
	return nil
}

func validateColor(color string) error {
	if !colorPattern.MatchString(color) {
		return fmt.Errorf("color %q must be a hex color like #6366F1: %w", color, ErrInvalid)
	}
	return nil
}
