// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package validation

import (
	"strings"
	"testing"
)

func TestGetValidator_Singleton(t *testing.T) {
	v1 := GetValidator()
	v2 := GetValidator()

	if v1 != v2 {
		t.Error("GetValidator() should return the same singleton instance")
	}
	if v1 == nil {
		t.Error("GetValidator() should not return nil")
	}
}

type framePayload struct {
	Content     string   `json:"content" validate:"max=10"`
	MessageType string   `json:"message_type" validate:"omitempty,message_type"`
	MessageIDs  []string `json:"message_ids" validate:"max=2,dive,required"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     framePayload
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{
			name:  "valid",
			input: framePayload{Content: "hi", MessageType: "image", MessageIDs: []string{"a"}},
		},
		{
			name:  "empty type allowed",
			input: framePayload{Content: "hi"},
		},
		{
			name:      "unknown type",
			input:     framePayload{MessageType: "video"},
			wantField: "message_type",
			wantTag:   "message_type",
			wantMsg:   "message_type must be one of: text image file voice",
		},
		{
			name:      "content too long",
			input:     framePayload{Content: strings.Repeat("x", 11)},
			wantField: "content",
			wantTag:   "max",
			wantMsg:   "content must be at most 10 characters",
		},
		{
			name:      "too many ids",
			input:     framePayload{MessageIDs: []string{"a", "b", "c"}},
			wantField: "message_ids",
			wantTag:   "max",
			wantMsg:   "message_ids must be at most 2 items",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(&tt.input)
			if tt.wantTag == "" {
				if err != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateStruct() = nil, want error")
			}
			if !err.HasTag(tt.wantField, tt.wantTag) {
				t.Errorf("missing %s/%s in %v", tt.wantField, tt.wantTag, err.Errors())
			}
			if got := err.First().Error(); got != tt.wantMsg {
				t.Errorf("First().Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	err := ValidateStruct(&framePayload{Content: strings.Repeat("x", 11), MessageType: "bad"})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	apiErr := err.ToAPIError()
	if apiErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", apiErr.Code)
	}
	if _, ok := apiErr.Details["fields"]; !ok {
		t.Errorf("multi-error details missing fields: %v", apiErr.Details)
	}

	single := ValidateStruct(&framePayload{MessageType: "bad"}).ToAPIError()
	if single.Details["field"] != "message_type" {
		t.Errorf("single details = %v", single.Details)
	}
}

func TestFirst_Empty(t *testing.T) {
	ve := &RequestValidationError{}
	if ve.First().Error() != "validation failed" {
		t.Errorf("First() on empty = %q", ve.First().Error())
	}
	if ve.Error() != "validation failed" {
		t.Errorf("Error() on empty = %q", ve.Error())
	}
}
