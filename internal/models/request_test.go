package models

import (
	"testing"
)

func TestChatRequest_Validate(t *testing.T) {
	off := false
	tests := []struct {
		name      string
		req       *ChatRequest
		wantErr   bool
		wantCache bool
	}{
		{"empty text", &ChatRequest{Text: "  "}, true, true},
		{"defaults to cache", &ChatRequest{Text: "hi"}, false, true},
		{"cache disabled", &ChatRequest{Text: "hi", UseCache: &off}, false, false},
		{"trims session", &ChatRequest{Text: "hi", SessionID: " s1 "}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.req.CacheEnabled() != tt.wantCache {
				t.Errorf("CacheEnabled=%v, want %v", tt.req.CacheEnabled(), tt.wantCache)
			}
			if tt.name == "trims session" && tt.req.SessionID != "s1" {
				t.Errorf("SessionID=%q", tt.req.SessionID)
			}
		})
	}
}

func TestEntryRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *EntryRequest
		wantErr bool
	}{
		{"missing response", &EntryRequest{Context: "USER: x"}, true},
		{"missing context and vector", &EntryRequest{Response: "r"}, true},
		{"context only", &EntryRequest{Context: "USER: x", Response: "r"}, false},
		{"vector only", &EntryRequest{Vector: []float32{1}, Response: "r"}, false},
	}
	for _, tt := range tests {
		if err := tt.req.Validate(); (err != nil) != tt.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func TestTurnRequest_Validate(t *testing.T) {
	for _, role := range []string{"user", "AI", "assistant"} {
		if err := (&TurnRequest{Role: role, Text: "x"}).Validate(); err != nil {
			t.Errorf("role %q: %v", role, err)
		}
	}
	if err := (&TurnRequest{Role: "system"}).Validate(); err == nil {
		t.Error("expected error for system role")
	}
}

func TestLabels_Lookup(t *testing.T) {
	l := Labels{{SessionID: "s1", TurnIndex: 2}: true}
	if v := l.Lookup("s1", 2); v == nil || !*v {
		t.Errorf("Lookup(s1,2)=%v", v)
	}
	if v := l.Lookup("s1", 3); v != nil {
		t.Errorf("unlabelled turn should be nil, got %v", *v)
	}
}
