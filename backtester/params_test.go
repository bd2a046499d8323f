package main

import (
	"errors"
	"testing"

	"github.com/tantralabs/optionlab/models"
)

func TestSearchFlags(t *testing.T) {
	var f searchFlags
	for _, v := range []string{"wing_width=5:15:5", " expiration_days = 14:42:14"} {
		if err := f.Set(v); err != nil {
			t.Fatalf("Set(%q): %v", v, err)
		}
	}
	if len(f) != 2 {
		t.Fatalf("got %d params, want 2", len(f))
	}
	if f[0] != models.NewSearchParameter("wing_width", 5, 15, 5) {
		t.Errorf("unexpected first param %+v", f[0])
	}
	if f[1].Name != "expiration_days" || f[1].Max != 42 {
		t.Errorf("unexpected second param %+v", f[1])
	}
	if got := f.String(); got != "wing_width=5:15:5,expiration_days=14:42:14" {
		t.Errorf("String() = %q", got)
	}
}

func TestSearchFlagsRejects(t *testing.T) {
	for _, v := range []string{"wing_width", "wing_width=5:15", "=1:2:1", "wing_width=a:15:5", "wing_width=15:5:5", "wing_width=5:15:0"} {
		var f searchFlags
		if err := f.Set(v); !errors.Is(err, models.ErrInvalidArgument) {
			t.Errorf("Set(%q) = %v, want ErrInvalidArgument", v, err)
		}
	}
}
