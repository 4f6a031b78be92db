package stringutil

import (
	"regexp"
	"strings"

	"github.com/mcpgas/mcp-gas/pkg/logger"
)

var sanitizeLog = logger.New("stringutil:sanitize")

// Regex patterns for detecting potential secret key names
var (
	// Match uppercase snake_case identifiers that look like secret names
	// (e.g., MY_SECRET_KEY, ACCESS_TOKEN, API_KEY).
	secretNamePattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]*_[A-Z0-9_]+)\b`)

	// Match PascalCase identifiers ending with security-related suffixes (e.g., AccessToken, ApiKey, DeploySecret)
	pascalCaseSecretPattern = regexp.MustCompile(`\b([A-Z][a-z0-9]*(?:[A-Z][a-z0-9]*)*(?:Token|Key|Secret|Password|Credential|Auth))\b`)

	// Common non-sensitive keywords that look like the secret pattern but
	// routinely appear in Apps Script logger output and deployment text.
	commonScriptKeywords = map[string]bool{
		"SCRIPT_ID":     true,
		"DEPLOYMENT_ID": true,
		"PROJECT_ID":    true,
		"MCP_GAS":       true,
		"ENV":           true,
		"PATH":          true,
		"HOME":          true,
	}
)

// SanitizeErrorMessage removes potential secret key names from logger
// output and exception messages surfaced from an Apps Script execution,
// to avoid redisplaying a project's own secret identifiers back through
// the MCP response.
func SanitizeErrorMessage(message string) string {
	if message == "" {
		return message
	}

	sanitizeLog.Printf("Sanitizing error message: length=%d", len(message))

	sanitized := secretNamePattern.ReplaceAllStringFunc(message, func(match string) string {
		if commonScriptKeywords[match] {
			return match
		}
		if strings.HasPrefix(match, "MCP_GAS_") {
			return match
		}
		sanitizeLog.Printf("Redacted snake_case secret pattern: %s", match)
		return "[REDACTED]"
	})

	sanitized = pascalCaseSecretPattern.ReplaceAllString(sanitized, "[REDACTED]")

	if sanitized != message {
		sanitizeLog.Print("Error message sanitization applied redactions")
	}

	return sanitized
}

// SanitizeParameterName converts a functionName/moduleName supplied to
// exec_api into a safe JavaScript identifier by replacing non-alphanumeric
// characters with underscores, so it can be embedded directly into the
// generated call expression without risking statement injection.
//
// 1. Replaces any non-alphanumeric characters (except $ and _) with underscores
// 2. Prepends an underscore if the name starts with a number
//
// Valid characters: a-z, A-Z, 0-9 (not at start), _, $
func SanitizeParameterName(name string) string {
	// Replace dashes and other non-alphanumeric chars with underscores
	result := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '$' {
			return r
		}
		return '_'
	}, name)

	// Ensure it doesn't start with a number
	if len(result) > 0 && result[0] >= '0' && result[0] <= '9' {
		result = "_" + result
	}

	return result
}

