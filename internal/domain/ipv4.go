package domain

import (
	"fmt"
	"regexp"
)

var ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// IsValidIPv4 reports whether ip is a dotted-quad IPv4 literal with every
// octet in 0-255.
func IsValidIPv4(ip string) bool {
	return ipv4Pattern.MatchString(ip)
}

// ValidateIPv4 returns an ErrInvalidInput wrapped error when ip is malformed.
func ValidateIPv4(ip string) error {
	if !IsValidIPv4(ip) {
		return fmt.Errorf("%w: %q is not a valid IPv4 address", ErrInvalidInput, ip)
	}
	return nil
}
