package protocol

import "fmt"

// CheckLen enforces a bounded-length text field.
func CheckLen(name, value string, max int) error {
	if len(value) > max {
		return fmt.Errorf("%s is %d bytes, limit %d: %w", name, len(value), max, ErrFieldTooLong)
	}
	return nil
}
