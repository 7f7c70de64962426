// Package view projects application state onto the dashboard and turns user intents into
// orchestrated transactions.
package view

import (
	"errors"
	"fmt"
	"math/big"

	"earn_usdc/internal/config"
	"earn_usdc/internal/pkg/utils"
)

var (
	// ErrInvalidAmount is returned for input that is not a non-negative fixed-point number at
	// the token scale.
	ErrInvalidAmount = errors.New(config.ErrInvalidAmount)
	// ErrBelowMinimum is returned for amounts that parse but are under the minimum.
	ErrBelowMinimum = errors.New(config.ErrMinimumAmount)
)

// Validator checks amounts typed by the user against the token scale and the minimum.
type Validator struct {
	decimals int32
	minimum  *big.Int
}

// NewValidator creates a Validator for the token in scope.
func NewValidator() *Validator {
	return &Validator{decimals: config.USDCDecimals, minimum: config.MinDeposit()}
}

// Parse converts s into smallest units. It fails when s is not a non-negative fixed-point
// number at the token scale or is below the minimum.
func (v *Validator) Parse(s string) (*big.Int, error) {
	amount, err := utils.ParseUnits(s, v.decimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	if amount.Cmp(v.minimum) < 0 {
		return nil, ErrBelowMinimum
	}
	return amount, nil
}

// Validate reports whether s is an actionable amount.
func (v *Validator) Validate(s string) bool {
	_, err := v.Parse(s)
	return err == nil
}

// ButtonState is the enabled state of the amount-driven action buttons.
type ButtonState struct {
	Deposit  bool `json:"deposit"`
	Withdraw bool `json:"withdraw"`
}

// Buttons recomputes the button state for the current input.
func (v *Validator) Buttons(s string) ButtonState {
	valid := v.Validate(s)
	return ButtonState{Deposit: valid, Withdraw: valid}
}
