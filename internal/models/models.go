// Package models defines the core data structures for BrandOS.
//
// It includes the onboarding enums, the session state and its snapshot, demo notifications
// and the JSON envelope shared by the API.
package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every layer. Compare with errors.Is.
var (
	// ErrUnknownValue is matched by every enum parse failure.
	ErrUnknownValue = errors.New("unknown value")

	ErrUnknownCompanyType  = fmt.Errorf("%w: company type", ErrUnknownValue)
	ErrUnknownCompanyStage = fmt.Errorf("%w: company stage", ErrUnknownValue)
	ErrUnknownFlowType     = fmt.Errorf("%w: flow type", ErrUnknownValue)
	ErrUnknownPlanType     = fmt.Errorf("%w: plan type", ErrUnknownValue)
	ErrUnknownActiveView   = fmt.Errorf("%w: active view", ErrUnknownValue)
	ErrUnknownFilter       = fmt.Errorf("%w: notification filter", ErrUnknownValue)
	ErrStageOwnerMismatch  = errors.New("company stage does not belong to company type")
	ErrInvalidPhase        = errors.New("invalid phase")

	ErrSessionNotFound = errors.New("session not found")
	ErrAddonRequired   = errors.New("document add-on not purchased")
	ErrEmptyMessage    = errors.New("message is empty")
)
