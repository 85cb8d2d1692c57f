/*
 * MIT License
 * Copyright (c) 2024-2026 Zuplu
 */

package valid

import (
	"net"
	"strings"
)

//gocyclo:ignore
func IsDNSName(s string) bool {
	if s == "" || len(s) > 253 {
		return false
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
		if s == "" {
			return false
		}
	}
	if net.ParseIP(s) != nil {
		return false
	}
	labelLen := 0
	startOfLabel := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '.' {
			if labelLen == 0 || labelLen > 63 || s[i-1] == '-' {
				return false
			}
			labelLen = 0
			startOfLabel = true
			continue
		}
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-') ||
			startOfLabel && c == '-' {
			return false
		}
		labelLen++
		startOfLabel = false
	}
	if labelLen == 0 || labelLen > 63 || s[len(s)-1] == '-' {
		return false
	}
	return true
}

// IsRoleLocalPart reports whether local names a role mailbox: it equals one
// of roles, or starts with a role followed by '+' or '.'. Case is ignored.
func IsRoleLocalPart(local string, roles []string) bool {
	local = strings.ToLower(local)
	if local == "" {
		return false
	}
	for _, role := range roles {
		role = strings.ToLower(strings.TrimSpace(role))
		if role == "" {
			continue
		}
		if local == role || strings.HasPrefix(local, role+"+") || strings.HasPrefix(local, role+".") {
			return true
		}
	}
	return false
}

// ReverseLabels turns "mail.example.com" into "com.example.mail".
func ReverseLabels(domain string) string {
	labels := strings.Split(strings.TrimSuffix(domain, "."), ".")
	for i, j := 0, len(labels)-1; i < j; i, j = i+1, j-1 {
		labels[i], labels[j] = labels[j], labels[i]
	}
	return strings.Join(labels, ".")
}
