package purpose

import (
	"reflect"
	"testing"
)

func TestDirectory(t *testing.T) {
	t.Parallel()
	tests := []struct {
		rel   string
		files []string
		want  string
	}{
		{"src/auth", nil, "Authentication and authorization logic"},
		{"MODELS", nil, "Data models and database schemas"},
		{"app/user_services", nil, "Business logic and external service integrations"},
		{"pkg/spec", nil, "Test specifications"},
		{"unit-tests", nil, "Test files and test utilities"},
		{"misc", []string{"user_test.py", "user.py"}, "Test files and test utilities"},
		{"misc", []string{"UserModel.swift"}, "Data models and schemas"},
		{"misc", []string{"routes.js"}, "API routes and endpoints"},
		{"misc", []string{"Button.component.tsx"}, "UI components"},
		{"misc", []string{"main.go"}, ""},
		{"misc", nil, ""},
	}
	for _, tt := range tests {
		if got := Directory(tt.rel, tt.files); got != tt.want {
			t.Errorf("Directory(%q, %v) = %q, want %q", tt.rel, tt.files, got, tt.want)
		}
	}
}

func TestDirectories(t *testing.T) {
	t.Parallel()
	got := Directories(map[string][]string{
		".":        {"main.py"},
		"api":      {"users.py"},
		"docs":     nil,
		"internal": {"main.go"},
	})
	want := map[string]string{"api": "API endpoints and route handlers"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Directories = %v, want %v", got, want)
	}
	if got := Directories(map[string][]string{"x": {"a.go"}}); got != nil {
		t.Errorf("Directories = %v, want nil", got)
	}
}

func TestFile(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path string
		want string
	}{
		{"main.py", "Application entry point"},
		{"web/index.js", "Application entry point"},
		{"app.py", "Application entry point"},
		{"test_main.py", "Test file"},
		{"user.spec.js", "Test file"},
		{"settings.py", "Configuration"},
		{"routes.ts", "Route definitions"},
		{"user_model.rb", "Data model"},
		{"string_utils.go", "Utility functions"},
		{"cors_middleware.js", "Middleware"},
		{"random.py", ""},
	}
	for _, tt := range tests {
		if got := File(tt.path); got != tt.want {
			t.Errorf("File(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
