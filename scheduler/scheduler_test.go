package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_ValidTimezone(t *testing.T) {
	s, err := New("America/New_York")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()
	if s.location.String() != "America/New_York" {
		t.Errorf("expected America/New_York, got %s", s.location.String())
	}
}

func TestNew_InvalidTimezone(t *testing.T) {
	_, err := New("Invalid/Zone")
	if err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestAddDaily(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.AddDaily("digest", "14:30", func() {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	next, ok := s.Next("digest")
	if !ok {
		t.Fatal("digest not scheduled")
	}
	if next.Hour() != 14 || next.Minute() != 30 {
		t.Errorf("next = %v, want 14:30", next)
	}
}

func TestAddDaily_InvalidTime(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	for _, in := range []string{"25:00", "abc", "1a:00"} {
		if err := s.AddDaily("digest", in, func() {}); err == nil {
			t.Errorf("AddDaily(%q) expected error", in)
		}
	}
	if _, ok := s.Next("digest"); ok {
		t.Error("invalid schedules must not be added")
	}
}

func TestAddCron(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.AddCron("collect", "0 */6 * * *", func() {}); err != nil {
		t.Fatalf("AddCron: %v", err)
	}
	next, ok := s.Next("collect")
	if !ok || next.Hour()%6 != 0 || next.Minute() != 0 {
		t.Errorf("next = %v, %v", next, ok)
	}

	if err := s.AddCron("collect", "every now and then", func() {}); err == nil {
		t.Error("expected error for invalid spec")
	}
	if _, ok := s.Next("collect"); !ok {
		t.Error("a failed replacement must keep the previous job")
	}
}

func TestAdd_Replaces(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.AddDaily("digest", "08:00", func() {}); err != nil {
		t.Fatal(err)
	}
	firstEntry := s.entries["digest"]

	if err := s.AddDaily("digest", "10:00", func() {}); err != nil {
		t.Fatal(err)
	}

	if s.entries["digest"] == firstEntry {
		t.Error("expected entry ID to change after reschedule")
	}
	if n := len(s.cron.Entries()); n != 1 {
		t.Errorf("expected 1 cron entry, got %d", n)
	}
}

func TestRemove(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if err := s.AddDaily("digest", "08:00", func() {}); err != nil {
		t.Fatal(err)
	}
	s.Remove("digest")
	s.Remove("missing")
	if _, ok := s.Next("digest"); ok {
		t.Error("digest still scheduled")
	}
	if n := len(s.cron.Entries()); n != 0 {
		t.Errorf("expected no cron entries, got %d", n)
	}
}

func TestStartStop(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatal(err)
	}

	s.Start()
	s.Stop()
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		input  string
		hour   int
		minute int
		valid  bool
	}{
		{"00:00", 0, 0, true},
		{"09:30", 9, 30, true},
		{"23:59", 23, 59, true},
		{"24:00", 0, 0, false},
		{"12:60", 0, 0, false},
		{"1:00", 0, 0, false},
		{"ab:cd", 0, 0, false},
		{"abc", 0, 0, false},
	}

	for _, tt := range tests {
		h, m, err := parseTime(tt.input)
		if tt.valid {
			if err != nil {
				t.Errorf("parseTime(%q) unexpected error: %v", tt.input, err)
			}
			if h != tt.hour || m != tt.minute {
				t.Errorf("parseTime(%q) = %d:%d, want %d:%d", tt.input, h, m, tt.hour, tt.minute)
			}
		} else {
			if err == nil {
				t.Errorf("parseTime(%q) expected error", tt.input)
			}
		}
	}
}

func TestTaskExecutes(t *testing.T) {
	s, err := New("UTC")
	if err != nil {
		t.Fatal(err)
	}

	var count int64
	// robfig/cron accepts descriptors such as @every through ParseStandard.
	if err := s.AddCron("tick", "@every 1s", func() { atomic.AddInt64(&count, 1) }); err != nil {
		t.Fatal(err)
	}
	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt64(&count) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()

	if atomic.LoadInt64(&count) == 0 {
		t.Error("task never ran")
	}
}
