// Package assets rebuilds the asset hierarchy of one subscriber.
package assets

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/solatis/linewarden/internal/orders"
	"github.com/solatis/linewarden/internal/query"
	"github.com/solatis/linewarden/internal/source"
	"github.com/solatis/linewarden/internal/types"
)

/*
 * Asset assembly.
 *
 * Three sequential lookups per MSISDN; each needs the previous result:
 *   1. latest active line asset for the MSISDN
 *   2. device asset linked to the line's asset reference
 *   3. line children (line root item) and device children (device root item)
 *
 * A missing line or device ends assembly with a lookup error recorded on the
 * Assembly. Source failures are returned as errors. Both children lookups
 * always run once a device is found, even when either returns nothing.
 */

// Raw keeps the unnormalized records for rendering.
type Raw struct {
	Line           source.Record   `json:"line"`
	Device         source.Record   `json:"device"`
	LineChildren   []source.Record `json:"line_children"`
	DeviceChildren []source.Record `json:"device_children"`
}

// Assembly is the outcome of assembling one MSISDN.
// Error is set when a mandatory asset is missing; Bundle then holds whatever
// was found before the failing step.
type Assembly struct {
	MSISDN string            `json:"msisdn"`
	Bundle types.AssetBundle `json:"bundle"`
	Raw    Raw               `json:"raw"`
	Err    error             `json:"-"`
	Error  string            `json:"error,omitempty"`

	// Populated by AssembleWithHistory.
	History      []types.Order `json:"history,omitempty"`
	Reasons      []string      `json:"reasons,omitempty"`
	LatestStatus string        `json:"latest_status,omitempty"`
	Organized    *Organized    `json:"organized,omitempty"`
}

// Failed reports whether a mandatory lookup came back empty.
func (a *Assembly) Failed() bool {
	return a.Err != nil
}

func (a *Assembly) fail(err error) *Assembly {
	a.Err = err
	a.Error = err.Error()
	return a
}

// Assembler runs the lookups against a record source.
type Assembler struct {
	src       source.RecordSource
	templates query.Templates
	logger    *logrus.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(src source.RecordSource, templates query.Templates, logger *logrus.Logger) *Assembler {
	return &Assembler{src: src, templates: templates, logger: logger}
}

// Assemble builds the asset bundle for one MSISDN.
func (a *Assembler) Assemble(ctx context.Context, msisdn string) (*Assembly, error) {
	log := a.logger.WithField("msisdn", msisdn)
	asm := &Assembly{
		MSISDN: msisdn,
		Bundle: types.AssetBundle{LineChildren: []types.Asset{}, DeviceChildren: []types.Asset{}},
		Raw:    Raw{LineChildren: []source.Record{}, DeviceChildren: []source.Record{}},
	}

	// Step 1: line
	lineTmpl, err := a.templates.Get(query.LatestLineForMSISDN)
	if err != nil {
		return nil, err
	}
	if lineTmpl.OrderBy == "" {
		lineTmpl.OrderBy = "CreatedDate DESC"
	}
	lineTmpl.Limit = 1

	lineRec, err := a.first(ctx, lineTmpl, map[string]string{"msisdn": query.Quote(msisdn)})
	if err != nil {
		return nil, fmt.Errorf("line lookup for %s: %w", msisdn, err)
	}
	if lineRec == nil {
		log.Warn("no active line found")
		return asm.fail(types.ErrNoActiveLine), nil
	}
	line := Normalize(lineRec)
	asm.Raw.Line = lineRec
	asm.Bundle.Line = &line

	// Step 2: device
	deviceTmpl, err := a.templates.Get(query.DeviceForLine)
	if err != nil {
		return nil, err
	}
	deviceRec, err := a.first(ctx, deviceTmpl, map[string]string{"asset_reference_id": query.Quote(line.AssetReference)})
	if err != nil {
		return nil, fmt.Errorf("device lookup for %s: %w", msisdn, err)
	}
	if deviceRec == nil {
		log.WithField("asset_reference", line.AssetReference).Warn("no device found for line")
		return asm.fail(types.ErrNoDevice), nil
	}
	device := Normalize(deviceRec)
	asm.Raw.Device = deviceRec
	asm.Bundle.Device = &device

	// Step 3: children
	lineChildren, err := a.children(ctx, query.ChildrenForRootItem, line.RootItemID)
	if err != nil {
		return nil, fmt.Errorf("line children lookup for %s: %w", msisdn, err)
	}
	deviceChildren, err := a.children(ctx, query.DeviceChildren, device.RootItemID)
	if err != nil {
		return nil, fmt.Errorf("device children lookup for %s: %w", msisdn, err)
	}
	asm.Raw.LineChildren = lineChildren
	asm.Raw.DeviceChildren = deviceChildren
	asm.Bundle.LineChildren = NormalizeAll(lineChildren)
	asm.Bundle.DeviceChildren = NormalizeAll(deviceChildren)

	log.WithFields(logrus.Fields{
		"line":            line.ID,
		"device":          device.ID,
		"line_children":   len(lineChildren),
		"device_children": len(deviceChildren),
	}).Debug("assets assembled")
	return asm, nil
}

// AssembleWithHistory assembles the bundle and adds order history, the
// reasons extracted from it, and the organized children. History is skipped
// when a mandatory asset is missing.
func (a *Assembler) AssembleWithHistory(ctx context.Context, msisdn string) (*Assembly, error) {
	asm, err := a.Assemble(ctx, msisdn)
	if err != nil || asm.Failed() {
		return asm, err
	}

	tmpl, err := a.templates.Get(query.OrderHistoryForMSISDN)
	if err != nil {
		return nil, err
	}
	if tmpl.Limit <= 0 || tmpl.Limit > MaxReasons {
		tmpl.Limit = MaxReasons
	}
	res, err := a.src.ExecuteQuery(ctx, query.Build(tmpl, map[string]string{"msisdn": query.Quote(msisdn)}))
	if err != nil {
		return nil, fmt.Errorf("order history for %s: %w", msisdn, err)
	}

	history := make([]types.Order, 0, len(res.Records))
	for _, rec := range res.Records {
		history = append(history, orders.FromRecord(rec))
	}
	asm.History = history
	asm.Reasons = ExtractReasons(history)
	asm.LatestStatus = LatestStatus(history)

	children := append(append([]types.Asset{}, asm.Bundle.LineChildren...), asm.Bundle.DeviceChildren...)
	org := Organize(children)
	asm.Organized = &org
	return asm, nil
}

func (a *Assembler) first(ctx context.Context, tmpl types.QueryTemplate, bindings map[string]string) (source.Record, error) {
	res, err := a.src.ExecuteQuery(ctx, query.Build(tmpl, bindings))
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, nil
	}
	return res.Records[0], nil
}

func (a *Assembler) children(ctx context.Context, name, rootItemID string) ([]source.Record, error) {
	tmpl, err := a.templates.Get(name)
	if err != nil {
		return nil, err
	}
	res, err := a.src.ExecuteQuery(ctx, query.Build(tmpl, map[string]string{"root_item_id": query.Quote(rootItemID)}))
	if err != nil {
		return nil, err
	}
	if res.Records == nil {
		return []source.Record{}, nil
	}
	return res.Records, nil
}
