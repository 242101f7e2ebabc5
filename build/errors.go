package build

import "fmt"

// ErrInvalidDebugLevel returns an error for a debug level string that could
// not be parsed.
func ErrInvalidDebugLevel(level string) error {
	return fmt.Errorf("the specified debug level [%v] is invalid", level)
}

// ErrUnknownSubsystem returns an error for a subsystem identifier that has no
// registered logger.
func ErrUnknownSubsystem(subsysID string) error {
	return fmt.Errorf("the specified subsystem [%v] is invalid -- "+
		"supported subsystems are listed in the configuration help",
		subsysID)
}
