package services

import "testing"

func TestValidateRow(t *testing.T) {
	valid := func() map[string]any {
		return map[string]any{
			"serviceName": "Netflix",
			"email":       "jdoe (work account)",
			"ownerId":     "u1",
			"categoryId":  "entertainment",
			"hasPassword": false,
			"isFavorite":  true,
			"notes":       "extra keys are allowed",
		}
	}

	if err := ValidateRow(valid()); err != nil {
		t.Fatalf("valid row rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing name", func(d map[string]any) { delete(d, "serviceName") }},
		{"blank email", func(d map[string]any) { d["email"] = "" }},
		{"missing owner", func(d map[string]any) { delete(d, "ownerId") }},
		{"null flag", func(d map[string]any) { d["isFavorite"] = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := valid()
			tt.mutate(data)
			if err := ValidateRow(data); err == nil {
				t.Error("expected error")
			}
		})
	}
}
