package tags

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{" ", ""}, nil},
		{[]string{" urgent", "home ", "urgent"}, []string{"urgent", "home"}},
		{[]string{"B", "a", "b"}, []string{"B", "a", "b"}},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitJoin(t *testing.T) {
	got := Split("work, home,,work , later")
	want := []string{"work", "home", "later"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split = %q, want %q", got, want)
	}
	if s := Join(got); s != "work, home, later" {
		t.Errorf("Join = %q", s)
	}
}

func TestExtract(t *testing.T) {
	got := Extract("#urgent call the bank re: #q3-plan and #urgent again, not a#tag")
	want := []string{"urgent", "q3-plan"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract = %q, want %q", got, want)
	}
	if Extract("no tags here") != nil {
		t.Error("want nil for text without hashtags")
	}
}

func TestMerge(t *testing.T) {
	got := Merge([]string{"a", "b"}, []string{"b", "c"})
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Merge = %q", got)
	}
}
