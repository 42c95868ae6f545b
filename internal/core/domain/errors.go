package domain

import "fmt"

// Validation errors, always raised before any side effect.
var (
	ErrInvalidChain    = fmt.Errorf("invalid chain")
	ErrInvalidAddress  = fmt.Errorf("invalid address")
	ErrInvalidAmount   = fmt.Errorf("amount must be strictly positive")
	ErrInvalidMnemonic = fmt.Errorf("invalid mnemonic")
)

// Custody errors, fatal to the requested operation and alarm-worthy, never
// fatal to the process. Messages never include key material.
var (
	ErrKeyUnavailable         = fmt.Errorf("master key is not loaded")
	ErrIntegrity              = fmt.Errorf("ciphertext integrity check failed")
	ErrConcurrentModification = fmt.Errorf("conflicting in-flight write")
)

// Swap errors. The recoverable ones (no route, expired quote) are resolved
// by re-quoting, the rest are surfaced together with the execution id.
var (
	ErrNoRouteFound = fmt.Errorf("no viable route found")
	ErrQuoteExpired = fmt.Errorf("quote expired")
	ErrSigning      = fmt.Errorf("transaction signing failed")
)
