package destination

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		host string
		want Class
	}{
		{"api.openai.com", ClassAPI},
		{"eu.api.openai.com", ClassAPI},
		{"chatgpt.com", ClassWebUI},
		{"claude.ai", ClassWebUI},
		{"accounts.google.com", ClassPassthrough},
		{"example.com", ClassUnknown},
	}
	for _, tt := range tests {
		if got := Classify(tt.host); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.host, got, tt.want)
		}
	}
}

func TestIsLoopbackOrLocal(t *testing.T) {
	for _, h := range []string{"localhost", "127.0.0.1", "printer.local"} {
		if !IsLoopbackOrLocal(h) {
			t.Errorf("IsLoopbackOrLocal(%q) = false, want true", h)
		}
	}
	if IsLoopbackOrLocal("example.com") {
		t.Error("IsLoopbackOrLocal(example.com) = true, want false")
	}
}

func TestIsDesktopApp(t *testing.T) {
	if !IsDesktopApp("claude.ai") {
		t.Error("expected claude.ai to be a desktop-app domain")
	}
	if IsDesktopApp("api.openai.com") {
		t.Error("api.openai.com should not be a desktop-app domain")
	}
}

func TestTool(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"api.openai.com", "openai"},
		{"eu.api.openai.com", "openai"},
		{"chatgpt.com", "openai"},
		{"api.anthropic.com", "anthropic"},
		{"claude.ai", "anthropic"},
		{"api.cohere.ai", "cohere"},
		{"example.com", "example"},
	}
	for _, tt := range tests {
		if got := Tool(tt.host); got != tt.want {
			t.Errorf("Tool(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}
