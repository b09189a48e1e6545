package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Use UUID v7 for time-ordered, sortable IDs
	// Falls back to v4 if v7 is not available (for compatibility)
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	FitID         ID
	ScanID        ID
	WorkspaceID   ID
	ParameterName ID
	ChannelName   ID
	SampleName    ID
)

// String conversions for domain IDs
func (id FitID) String() string         { return ID(id).String() }
func (id ScanID) String() string        { return ID(id).String() }
func (id WorkspaceID) String() string   { return ID(id).String() }
func (id ParameterName) String() string { return ID(id).String() }
func (id ChannelName) String() string   { return ID(id).String() }
func (id SampleName) String() string    { return ID(id).String() }

// ParseFitID parses a string into FitID
func ParseFitID(s string) (FitID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("fit ID cannot be empty")
	}
	return FitID(s), nil
}

// ParseScanID parses a string into ScanID
func ParseScanID(s string) (ScanID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("scan ID cannot be empty")
	}
	return ScanID(s), nil
}

// ParseParameterName parses a string into ParameterName
func ParseParameterName(s string) (ParameterName, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("parameter name cannot be empty")
	}
	return ParameterName(s), nil
}
