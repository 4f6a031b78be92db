//go:build !integration

package stringutil

import "testing"

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{
			name:     "empty message",
			message:  "",
			expected: "",
		},
		{
			name:     "message with no secrets",
			message:  "This is a regular error message",
			expected: "This is a regular error message",
		},
		{
			name:     "message with snake_case secret",
			message:  "Error accessing MY_SECRET_KEY",
			expected: "Error accessing [REDACTED]",
		},
		{
			name:     "message with multiple secrets",
			message:  "Failed to use ACCESS_TOKEN and DEPLOY_PASSWORD",
			expected: "Failed to use [REDACTED] and [REDACTED]",
		},
		{
			name:     "message with PascalCase secret",
			message:  "Invalid AccessToken provided",
			expected: "Invalid [REDACTED] provided",
		},
		{
			name:     "script keyword not redacted",
			message:  "SCRIPT_ID is missing",
			expected: "SCRIPT_ID is missing",
		},
		{
			name:     "deployment keyword not redacted",
			message:  "DEPLOYMENT_ID does not exist",
			expected: "DEPLOYMENT_ID does not exist",
		},
		{
			name:     "PATH keyword not redacted",
			message:  "PATH variable is not set",
			expected: "PATH variable is not set",
		},
		{
			name:     "mcp-gas prefixed config var not redacted",
			message:  "Set MCP_GAS_VERBOSE_LOGGING to enable tracing",
			expected: "Set MCP_GAS_VERBOSE_LOGGING to enable tracing",
		},
		{
			name:     "complex message with mixed secrets",
			message:  "Failed to authenticate with DEPLOY_KEY and ApiSecret",
			expected: "Failed to authenticate with [REDACTED] and [REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeErrorMessage(tt.message)
			if result != tt.expected {
				t.Errorf("SanitizeErrorMessage(%q) = %q; want %q", tt.message, result, tt.expected)
			}
		})
	}
}

func BenchmarkSanitizeErrorMessage(b *testing.B) {
	message := "Failed to use ACCESS_TOKEN and DEPLOY_PASSWORD with AccessToken"
	for i := 0; i < b.N; i++ {
		SanitizeErrorMessage(message)
	}
}

func TestSanitizeParameterName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already valid", input: "valid_name", expected: "valid_name"},
		{name: "dash replaced", input: "my-param", expected: "my_param"},
		{name: "dot replaced", input: "my.param", expected: "my_param"},
		{name: "leading digit prefixed", input: "123param", expected: "_123param"},
		{name: "dollar sign preserved", input: "$special", expected: "$special"},
		{name: "module path slash", input: "services/Billing", expected: "services_Billing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeParameterName(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeParameterName(%q) = %q; want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func BenchmarkSanitizeParameterName(b *testing.B) {
	for i := 0; i < b.N; i++ {
		SanitizeParameterName("my-weird.param/name")
	}
}
