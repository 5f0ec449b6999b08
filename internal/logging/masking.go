// KPIDeck - Multi-Source Business KPI Dashboard and Snapshot Engine
// Copyright 2026 M. Farias (kpideck)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kpideck/kpideck

package logging

import "strings"

// Masking helpers for values that routinely appear in KPI and journey logs:
// upstream API tokens, stored credentials, and lead email addresses. Log
// sites are expected to mask before emitting; nothing here hooks into
// zerolog automatically.

// MaskToken masks an API token or secret, keeping four characters at each
// end. Example: "pd-live-8f2a91c0be44" -> "pd-l...be44".
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// MaskEmail masks the local part of an email address, keeping the first two
// characters and the full domain. Example: "joao.silva@example.com" ->
// "jo***@example.com".
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	atIndex := strings.Index(email, "@")
	if atIndex <= 0 {
		return "***"
	}

	localPart := email[:atIndex]
	domain := email[atIndex:]

	if len(localPart) <= 2 {
		return "***" + domain
	}
	return localPart[:2] + "***" + domain
}

// MaskCredential masks a credential value based on its key name. Keys that
// look secret-bearing are token-masked; email-shaped values are
// email-masked; everything else passes through.
func MaskCredential(key, value string) string {
	lowerKey := strings.ToLower(key)

	sensitiveKeys := map[string]bool{
		"api_token":     true,
		"apitoken":      true,
		"api_key":       true,
		"apikey":        true,
		"bot_token":     true,
		"client_secret": true,
		"password":      true,
		"secret":        true,
		"token":         true,
	}

	if sensitiveKeys[lowerKey] {
		return MaskToken(value)
	}

	if strings.Contains(value, "@") && strings.Contains(value, ".") {
		return MaskEmail(value)
	}

	return value
}

// SanitizeUpstreamError strips error strings that may echo a credential
// back from an upstream API, and truncates the rest.
func SanitizeUpstreamError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"token",
		"api_key",
		"bearer",
		"authorization",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "upstream authentication error"
		}
	}

	if len(err) <= 200 {
		return err
	}
	return err[:200] + "..."
}
