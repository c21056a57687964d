package common

import (
	"strconv"
	"strings"
)

// MaxDays bounds every day-count argument; anything larger is almost certainly a typo.
const MaxDays = 36500

// ValidateSubscriberID validates a subscriber identifier argument.
func ValidateSubscriberID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ValidationError("subscriber id", "is required")
	}
	if len(id) > 128 {
		return "", ValidationError("subscriber id", "cannot exceed 128 characters")
	}
	if strings.ContainsAny(id, " \t\r\n:") {
		return "", ValidationError("subscriber id", "cannot contain whitespace or ':'")
	}
	return id, nil
}

// ParseDays parses a positive day count with an upper bound.
func ParseDays(raw string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ValidationError("days", "must be a whole number")
	}
	if err := ValidatePositiveInteger(days, "days", MaxDays); err != nil {
		return 0, err
	}
	return days, nil
}

// ValidatePositiveInteger validates positive integer values with upper bounds
func ValidatePositiveInteger(value int, fieldName string, maxValue int) error {
	if value <= 0 {
		return ValidationError(fieldName, "must be positive")
	}
	if value > maxValue {
		return ValidationError(fieldName, "cannot exceed "+strconv.Itoa(maxValue))
	}
	return nil
}

// SubscriberAndDays validates the common "<subscriberId> <days>" argument pair.
func SubscriberAndDays(args []string) (string, int, error) {
	if len(args) != 2 {
		return "", 0, ValidationError("arguments", "expected <subscriberId> <days>")
	}
	id, err := ValidateSubscriberID(args[0])
	if err != nil {
		return "", 0, err
	}
	days, err := ParseDays(args[1])
	if err != nil {
		return "", 0, err
	}
	return id, days, nil
}
