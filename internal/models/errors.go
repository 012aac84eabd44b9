package models

import "errors"

// Sentinel errors shared by the engine, the stores and the API.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrStore               = errors.New("store failure")
	ErrConflict            = errors.New("version conflict")
	ErrAlreadyInstantiated = errors.New("checklist already instantiated")
)
