// Package api runs the single-subscriber validation pipeline and exposes it
// as the Validator gRPC service.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/linewarden/internal/assets"
	"github.com/solatis/linewarden/internal/core/rpc"
	"github.com/solatis/linewarden/internal/rules"
	"github.com/solatis/linewarden/internal/types"
	"github.com/solatis/linewarden/internal/verdict"
)

// ValidatorService assembles, evaluates and renders one subscriber.
// It is safe for concurrent use and doubles as the in-process transport for
// bulk runs.
type ValidatorService struct {
	assembler *assets.Assembler
	engine    *rules.Engine
	logger    *logrus.Logger
}

// NewValidatorService creates service instance with dependencies.
func NewValidatorService(assembler *assets.Assembler, engine *rules.Engine, logger *logrus.Logger) (*ValidatorService, error) {
	if assembler == nil {
		return nil, fmt.Errorf("assembler cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &ValidatorService{assembler: assembler, engine: engine, logger: logger}, nil
}

// Validate returns the verdict for msisdn. Missing assets and source failures
// come back as an error envelope with a nil error; a non-nil error means the
// request itself could not run (bad configuration, cancelled context).
func (s *ValidatorService) Validate(ctx context.Context, msisdn string, order *types.ClassifiedOrder) (verdict.Result, error) {
	log := s.logger.WithField("msisdn", msisdn)

	asm, err := s.assembler.AssembleWithHistory(ctx, msisdn)
	if err != nil {
		if errors.Is(err, types.ErrInvalidConfig) {
			return verdict.Result{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return verdict.Result{}, ctxErr
		}
		log.WithField("error", err.Error()).Warn("assembly failed")
		return verdict.Error(&types.LookupError{MSISDN: msisdn, Err: err}), nil
	}
	if asm.Failed() {
		return verdict.Error(asm.Err), nil
	}

	reasons := asm.Reasons
	if order != nil && order.Reason != nil && *order.Reason != "" {
		reasons = append([]string{*order.Reason}, reasons...)
	}

	ev := s.engine.Evaluate(asm.Bundle, reasons)
	entry := verdict.BuildEntry(asm, ev, order)

	log.WithFields(logrus.Fields{
		"status":       entry.ValidationStatus,
		"success_rate": entry.Summary.SuccessRate,
		"warnings":     len(ev.Warnings),
	}).Debug("validation complete")
	return verdict.Success(entry), nil
}

// Handler adapts ValidatorService to rpc.ValidatorServer.
type Handler struct {
	svc *ValidatorService
}

// NewHandler creates the gRPC handler.
func NewHandler(svc *ValidatorService) *Handler {
	return &Handler{svc: svc}
}

// Validate implements rpc.ValidatorServer.
func (h *Handler) Validate(ctx context.Context, req *rpc.ValidateRequest) (*verdict.Result, error) {
	msisdn := strings.TrimSpace(req.MSISDN)
	if msisdn == "" {
		return nil, status.Error(codes.InvalidArgument, "msisdn is required")
	}
	res, err := h.svc.Validate(ctx, msisdn, req.Order)
	if err != nil {
		return nil, toStatus(err)
	}
	return &res, nil
}
