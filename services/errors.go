package services

import (
	"errors"
	"fmt"
	"strings"
)

// Fehlertaxonomie für den Moderations-Workflow. Handler mappen diese
// Fehler auf HTTP-Statuscodes; alles andere wird generisch als 500
// beantwortet, ohne Infrastruktur-Details preiszugeben.
var (
	// ErrAuthRequired: kein gültiges Session-Token vorhanden (401).
	ErrAuthRequired = errors.New("authentication required")
	// ErrAdminRequired: angemeldet, aber ohne Admin-Rolle (403).
	ErrAdminRequired = errors.New("admin privileges required")
	// ErrNotFound: kein Datensatz mit der angegebenen ID (404).
	ErrNotFound = errors.New("not found")
)

// ValidationError zählt die fehlenden bzw. ungültigen Felder einer
// Einreichung auf. Die Feldnamen entsprechen den API-Feldern.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing or invalid fields: %s", strings.Join(e.Fields, ", "))
}

// AsValidationError entpackt einen ValidationError aus einer Fehlerkette.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
