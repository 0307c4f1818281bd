// internal/rules/compile.go
package rules

import (
	"github.com/solatis/linewarden/internal/types"
)

/*
 * Check compilation.
 *
 * Compiles configuration descriptors into a closed set of check variants.
 * Each variant carries only what its strategy needs; Evaluate switches over
 * the variants exhaustively.
 *
 * Compilation never rejects a descriptor for an unknown validation type or
 * strategy name. Those become UnknownCheck or fail at evaluation time, so a
 * bad descriptor costs one failed check and never the whole configuration.
 * The only compile error is a descriptor without an id.
 *
 * Duplicate ids within a set: the last descriptor wins, and the set total
 * counts distinct ids.
 */

// Check is a compiled check descriptor.
type Check interface {
	CheckID() string
	isCheck()
}

// PresenceCheck tests for the existence of an asset.
type PresenceCheck struct {
	ID       string
	Strategy string
}

// StatusCheck compares a typed bundle field with an expected value.
type StatusCheck struct {
	ID       string
	Field    string
	Expected any
}

// ChargesCheck validates the charge pair of one or more assets.
type ChargesCheck struct {
	ID        string
	Strategy  string
	AllowZero bool
}

// CustomCheck runs a registered custom strategy.
type CustomCheck struct {
	ID       string
	Logic    string
	Field    string
	Expected any
}

// UnknownCheck is a descriptor with an unrecognized validation type.
type UnknownCheck struct {
	ID   string
	Type string
}

func (c PresenceCheck) CheckID() string { return c.ID }
func (c StatusCheck) CheckID() string   { return c.ID }
func (c ChargesCheck) CheckID() string  { return c.ID }
func (c CustomCheck) CheckID() string   { return c.ID }
func (c UnknownCheck) CheckID() string  { return c.ID }

func (PresenceCheck) isCheck() {}
func (StatusCheck) isCheck()   {}
func (ChargesCheck) isCheck()  {}
func (CustomCheck) isCheck()   {}
func (UnknownCheck) isCheck()  {}

// CheckSet is an ordered list of compiled checks with distinct ids.
type CheckSet []Check

// Compile converts one descriptor. allow_zero defaults to true.
func Compile(d types.CheckDescriptor) (Check, error) {
	if d.ID == "" {
		return nil, types.NewConfigError("rules", "check descriptor without id (type %q)", d.ValidationType)
	}

	switch d.ValidationType {
	case types.ValidationPresence:
		return PresenceCheck{ID: d.ID, Strategy: d.Logic}, nil
	case types.ValidationStatus:
		return StatusCheck{ID: d.ID, Field: d.Field, Expected: d.ExpectedValue}, nil
	case types.ValidationCharges:
		allowZero := true
		if d.AllowZero != nil {
			allowZero = *d.AllowZero
		}
		return ChargesCheck{ID: d.ID, Strategy: d.Logic, AllowZero: allowZero}, nil
	case types.ValidationCustom:
		return CustomCheck{ID: d.ID, Logic: d.Logic, Field: d.Field, Expected: d.ExpectedValue}, nil
	default:
		return UnknownCheck{ID: d.ID, Type: string(d.ValidationType)}, nil
	}
}

// CompileSet compiles descriptors in order. A later descriptor replaces an
// earlier one with the same id, keeping the earlier position.
func CompileSet(descs []types.CheckDescriptor) (CheckSet, error) {
	set := make(CheckSet, 0, len(descs))
	index := make(map[string]int, len(descs))

	for _, d := range descs {
		c, err := Compile(d)
		if err != nil {
			return nil, err
		}
		if i, ok := index[c.CheckID()]; ok {
			set[i] = c
			continue
		}
		index[c.CheckID()] = len(set)
		set = append(set, c)
	}
	return set, nil
}
