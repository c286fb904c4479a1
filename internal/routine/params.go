package routine

import (
	"fmt"
	"net/mail"
	"strings"
)

// NewUserParams holds the input for creating a user.
type NewUserParams struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Tier        Tier   `json:"tier,omitempty"`
}

// Normalize applies defaults and validates the parameters.
func (p *NewUserParams) Normalize() error {
	addr, err := mail.ParseAddress(strings.TrimSpace(p.Email))
	if err != nil {
		return fmt.Errorf("email %q: %w", p.Email, ErrInvalid)
	}
	p.Email = strings.ToLower(addr.Address)
	tier, err := ParseTier(string(p.Tier))
	if err != nil {
		return err
	}
	p.Tier = tier
	return nil
}

// NewStepParams holds the input for creating a step. A nil Position
// appends the step after the current last one.
type NewStepParams struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Position    *int       `json:"order,omitempty"`
	Type        StepType   `json:"type,omitempty"`
	Difficulty  Difficulty `json:"difficulty,omitempty"`
	TRefSec     *int       `json:"t_ref_sec,omitempty"`
	IsOptional  bool       `json:"is_optional,omitempty"`
	XPReward    *int       `json:"xp_reward,omitempty"`
}

// Normalize applies defaults and validates the parameters.
func (p *NewStepParams) Normalize() error {
	if err := validateTitle(p.Title); err != nil {
		return err
	}

	typ, err := ParseStepType(string(p.Type))
	if err != nil {
		return err
	}
	p.Type = typ

	diff, err := ParseDifficulty(string(p.Difficulty))
	if err != nil {
		return err
	}
	p.Difficulty = diff

	if p.TRefSec == nil {
		v := DefaultTRefSec
		p.TRefSec = &v
	}
	if *p.TRefSec <= 0 {
		return fmt.Errorf("t_ref_sec must be positive, got %d: %w", *p.TRefSec, ErrInvalid)
	}

	if p.XPReward == nil {
		v := DefaultXPReward
		p.XPReward = &v
	}
	if *p.XPReward < 0 {
		return fmt.Errorf("xp_reward must not be negative, got %d: %w", *p.XPReward, ErrInvalid)
	}
	return nil
}

// NewRoutineParams holds the input for creating a routine together with
// its initial steps.
type NewRoutineParams struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Icon        string          `json:"icon,omitempty"`
	Color       string          `json:"color,omitempty"`
	IsPublic    bool            `json:"is_public,omitempty"`
	Steps       []NewStepParams `json:"steps,omitempty"`
}

// Normalize applies defaults and validates the routine and every step.
func (p *NewRoutineParams) Normalize() error {
	if err := validateTitle(p.Title); err != nil {
		return err
	}
	if p.Icon == "" {
		p.Icon = DefaultIcon
	}
	if p.Color == "" {
		p.Color = DefaultColor
	}
	if err := validateColor(p.Color); err != nil {
		return err
	}
	for i := range p.Steps {
		if err := p.Steps[i].Normalize(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// UpdateRoutineParams holds partial update fields for a routine.
// Nil fields are left unchanged.
type UpdateRoutineParams struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Color       *string `json:"color,omitempty"`
	IsPublic    *bool   `json:"is_public,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// Empty reports whether no field is set.
func (p UpdateRoutineParams) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Icon == nil &&
		p.Color == nil && p.IsPublic == nil && p.IsActive == nil
}

// Validate checks the fields that are set.
func (p UpdateRoutineParams) Validate() error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Color != nil {
		if err := validateColor(*p.Color); err != nil {
			return err
		}
	}
	if p.Icon != nil && *p.Icon == "" {
		return fmt.Errorf("icon must not be empty: %w", ErrInvalid)
	}
	return nil
}

// UpdateStepParams replaces the content fields of a step.
//
// Position is accepted so a body shaped like NewStepParams decodes, but it
// is ignored: a step only moves through a reorder.
type UpdateStepParams struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Position    *int       `json:"order,omitempty"`
	Type        StepType   `json:"type,omitempty"`
	Difficulty  Difficulty `json:"difficulty,omitempty"`
	TRefSec     *int       `json:"t_ref_sec,omitempty"`
	IsOptional  bool       `json:"is_optional,omitempty"`
	XPReward    *int       `json:"xp_reward,omitempty"`
}

// Normalize applies defaults and validates the parameters.
func (p *UpdateStepParams) Normalize() error {
	np := NewStepParams{
		Title:       p.Title,
		Description: p.Description,
		Type:        p.Type,
		Difficulty:  p.Difficulty,
		TRefSec:     p.TRefSec,
		IsOptional:  p.IsOptional,
		XPReward:    p.XPReward,
	}
	if err := np.Normalize(); err != nil {
		return err
	}
	p.Type, p.Difficulty, p.TRefSec, p.XPReward = np.Type, np.Difficulty, np.TRefSec, np.XPReward
	return nil
}

// StepPatch changes only the step fields that are set.
type StepPatch struct {
	Title       *string
	Description *string
	Type        *StepType
	Difficulty  *Difficulty
	TRefSec     *int
	IsOptional  *bool
	XPReward    *int
}

// Apply merges the patch over cur and returns the full replacement.
func (p StepPatch) Apply(cur Step) UpdateStepParams {
	u := UpdateStepParams{
		Title:       cur.Title,
		Description: cur.Description,
		Type:        cur.Type,
		Difficulty:  cur.Difficulty,
		TRefSec:     &cur.TRefSec,
		IsOptional:  cur.IsOptional,
		XPReward:    &cur.XPReward,
	}
	if p.Title != nil {
		u.Title = *p.Title
	}
	if p.Description != nil {
		u.Description = *p.Description
	}
	if p.Type != nil {
		u.Type = *p.Type
	}
	if p.Difficulty != nil {
		u.Difficulty = *p.Difficulty
	}
	if p.TRefSec != nil {
		u.TRefSec = p.TRefSec
	}
	if p.IsOptional != nil {
		u.IsOptional = *p.IsOptional
	}
	if p.XPReward != nil {
		u.XPReward = p.XPReward
	}
	return u
}
