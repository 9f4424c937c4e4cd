package safeurl

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
)

func TestValidateSecret(t *testing.T) {
	if err := ValidateSecret([]byte("short")); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("got %v, want ErrSecretTooShort", err)
	}
	if err := ValidateSecret(bytes.Repeat([]byte("a"), MinSecretLen)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr error
	}{
		{"https://example.com/page", nil},
		{"http://example.com", nil},
		{"ftp://example.com/file", ErrUnsafeScheme},
		{"file:///etc/passwd", ErrUnsafeScheme},
		{"http://127.0.0.1/admin", ErrSSRF},
		{"http://10.0.0.5:8080/", ErrSSRF},
		{"http://192.168.1.1/", ErrSSRF},
		{"http://169.254.169.254/latest/meta-data/", ErrSSRF},
		{"http://[::1]/", ErrSSRF},
	}
	for _, tt := range tests {
		err := ValidateURL(tt.url)
		if tt.wantErr == nil {
			// Public hostnames may still fail DNS in a sandboxed test
			// environment; ValidateURL lets those through on purpose.
			if err != nil {
				t.Errorf("ValidateURL(%q) = %v, want nil", tt.url, err)
			}
			continue
		}
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("ValidateURL(%q) = %v, want %v", tt.url, err, tt.wantErr)
		}
	}
}

func TestValidateURLNoHost(t *testing.T) {
	err := ValidateURL("https:///path-only")
	if err == nil || !strings.Contains(err.Error(), "no host") {
		t.Fatalf("got %v, want no-host error", err)
	}
}

func TestIsPrivateIP(t *testing.T) {
	private := []string{"127.0.0.1", "10.1.2.3", "172.16.0.1", "192.168.0.1", "169.254.1.1", "::1", "fc00::1"}
	for _, s := range private {
		if !isPrivateIP(net.ParseIP(s)) {
			t.Errorf("isPrivateIP(%s) = false, want true", s)
		}
	}
	public := []string{"8.8.8.8", "1.1.1.1", "2606:4700:4700::1111"}
	for _, s := range public {
		if isPrivateIP(net.ParseIP(s)) {
			t.Errorf("isPrivateIP(%s) = true, want false", s)
		}
	}
}

func TestLimitedReadAll(t *testing.T) {
	data, err := LimitedReadAll(strings.NewReader("hello"), 10)
	if err != nil || string(data) != "hello" {
		t.Fatalf("got %q, %v", data, err)
	}
	if _, err := LimitedReadAll(strings.NewReader("hello world"), 5); err == nil {
		t.Fatal("expected error for oversized input")
	}
}
