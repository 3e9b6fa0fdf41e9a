package scheduler

import "testing"

func TestSchedulerAddAndRemoveJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	id, err := s.AddJob("sweep", "*/5 * * * *", func() {})
	if err != nil {
		t.Fatalf("Expected no error adding job, got %v", err)
	}
	if _, err := s.AddJob("hourly", "@hourly", func() {}); err != nil {
		t.Fatalf("Expected descriptor to parse, got %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Expected 2 jobs, got %d", s.Len())
	}
	s.RemoveJob(id)
	if s.Len() != 1 {
		t.Errorf("Expected 1 job after removal, got %d", s.Len())
	}
}

func TestSchedulerRejectsInvalidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if _, err := s.AddJob("broken", "not a cron", func() {}); err == nil {
		t.Error("Expected error for invalid expression")
	}
	if _, err := s.AddJob("seconds", "* * * * * *", func() {}); err == nil {
		t.Error("Expected 6-field expression to be rejected")
	}
}
