package capi

import "github.com/pkg/errors"

var (
	ErrStackUnavailable = errors.New("capi: stack not installed")
	ErrProfile          = errors.New("capi: could not read controller profile")
	ErrNoControllers    = errors.New("capi: no ISDN controllers installed")
	ErrRegister         = errors.New("capi: application registration failed")
	ErrListen           = errors.New("capi: listen request failed")
	ErrNotRegistered    = errors.New("capi: session not registered")

	ErrNoFreeConnection = errors.New("capi: no free connection slot")
	ErrNoConnection     = errors.New("capi: no such connection")
	ErrUnknownKind      = errors.New("capi: unknown call kind")
	ErrInvalidNumber    = errors.New("capi: invalid number")
	ErrNotRinging       = errors.New("capi: connection is not ringing")
	ErrNotConnected     = errors.New("capi: connection has no data channel")
	ErrFlowControl      = errors.New("capi: data window full")
	ErrInvalidTone      = errors.New("capi: invalid DTMF tone")
)
