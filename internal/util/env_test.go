package util

import (
	"reflect"
	"testing"
	"time"
)

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("BOOST", "0.75")
	t.Setenv("BROKEN", "abc")

	if got := GetEnvFloat("BOOST", 1); got != 0.75 {
		t.Fatalf("expected 0.75, got %v", got)
	}
	if got := GetEnvFloat("BROKEN", 1.5); got != 1.5 {
		t.Fatalf("expected default 1.5, got %v", got)
	}
	if got := GetEnvFloat("MISSING_BOOST", 2); got != 2 {
		t.Fatalf("expected default 2, got %v", got)
	}
}

func TestGetEnvList(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []string
	}{
		{name: "simple", value: "a,b,c", want: []string{"a", "b", "c"}},
		{name: "blanks", value: " a , ,b,", want: []string{"a", "b"}},
		{name: "empty", value: "", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LIST_VALUE", tt.value)
			got := GetEnvList("LIST_VALUE")
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("unexpected list: got %#v, want %#v", got, tt.want)
			}
		})
	}

	if got := GetEnvList("LIST_VALUE_MISSING"); got != nil {
		t.Fatalf("expected nil for missing key, got %#v", got)
	}
}

func TestGetEnvDurationAndBool(t *testing.T) {
	t.Setenv("EMBED_TIMEOUT", "250ms")
	t.Setenv("FLAG", "yes")

	if got := GetEnvDuration("EMBED_TIMEOUT", time.Second); got != 250*time.Millisecond {
		t.Fatalf("expected 250ms, got %v", got)
	}
	if got := GetEnvDuration("EMBED_TIMEOUT_MISSING", time.Second); got != time.Second {
		t.Fatalf("expected default, got %v", got)
	}
	if got := GetEnvBool("FLAG", true); got != true {
		t.Fatalf("expected default for unparsable bool, got %v", got)
	}
}
