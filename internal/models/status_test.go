package models_test

import (
	"testing"

	"github.com/artscout-agent/internal/models"
)

func TestParseStatus_ValidValues(t *testing.T) {
	valid := []string{"new", "reviewing", "applying", "submitted", "rejected", "archived"}
	for _, s := range valid {
		got, err := models.ParseStatus(s)
		if err != nil {
			t.Errorf("ParseStatus(%q) returned unexpected error: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseStatus(%q) = %q, want %q", s, got, s)
		}
	}
}

func TestParseStatus_NormalizesCase(t *testing.T) {
	got, err := models.ParseStatus("  Reviewing ")
	if err != nil {
		t.Fatalf("ParseStatus returned unexpected error: %v", err)
	}
	if got != models.StatusReviewing {
		t.Errorf("ParseStatus(\"  Reviewing \") = %q, want %q", got, models.StatusReviewing)
	}
}

func TestParseStatus_InvalidValue(t *testing.T) {
	if _, err := models.ParseStatus("shortlisted"); err == nil {
		t.Error("ParseStatus(\"shortlisted\") expected error, got nil")
	}
	if _, err := models.ParseStatus(""); err == nil {
		t.Error("ParseStatus(\"\") expected error, got nil")
	}
}

func TestIsTerminalStatus(t *testing.T) {
	if !models.IsTerminalStatus(models.StatusArchived) {
		t.Error("IsTerminalStatus(archived) should return true")
	}
	for _, s := range []models.OpportunityStatus{
		models.StatusNew,
		models.StatusReviewing,
		models.StatusApplying,
		models.StatusSubmitted,
		models.StatusRejected,
	} {
		if models.IsTerminalStatus(s) {
			t.Errorf("IsTerminalStatus(%s) should return false", s)
		}
	}
}

func TestIsTransitionAllowed_ValidForward(t *testing.T) {
	cases := []struct {
		from models.OpportunityStatus
		to   models.OpportunityStatus
	}{
		{models.StatusNew, models.StatusReviewing},
		{models.StatusNew, models.StatusApplying},
		{models.StatusReviewing, models.StatusApplying},
		{models.StatusApplying, models.StatusSubmitted},
		{models.StatusSubmitted, models.StatusArchived},
	}
	for _, c := range cases {
		if !models.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s -> %s) should be true", c.from, c.to)
		}
	}
}

func TestIsTransitionAllowed_RejectFromActive(t *testing.T) {
	active := []models.OpportunityStatus{
		models.StatusNew,
		models.StatusReviewing,
		models.StatusApplying,
	}
	for _, from := range active {
		if !models.IsTransitionAllowed(from, models.StatusRejected) {
			t.Errorf("IsTransitionAllowed(%s -> rejected) should be true", from)
		}
	}
}

func TestIsTransitionAllowed_ArchiveFromAnywhere(t *testing.T) {
	for _, from := range []models.OpportunityStatus{
		models.StatusNew,
		models.StatusReviewing,
		models.StatusApplying,
		models.StatusSubmitted,
		models.StatusRejected,
	} {
		if !models.IsTransitionAllowed(from, models.StatusArchived) {
			t.Errorf("IsTransitionAllowed(%s -> archived) should be true", from)
		}
	}
}

func TestIsTransitionAllowed_FromArchived(t *testing.T) {
	targets := []models.OpportunityStatus{
		models.StatusNew,
		models.StatusReviewing,
		models.StatusApplying,
		models.StatusSubmitted,
		models.StatusRejected,
		models.StatusArchived,
	}
	for _, to := range targets {
		if models.IsTransitionAllowed(models.StatusArchived, to) {
			t.Errorf("IsTransitionAllowed(archived -> %s) should be false (terminal state)", to)
		}
	}
}

func TestIsTransitionAllowed_Backwards(t *testing.T) {
	cases := []struct {
		from models.OpportunityStatus
		to   models.OpportunityStatus
	}{
		{models.StatusReviewing, models.StatusNew},
		{models.StatusApplying, models.StatusReviewing},
		{models.StatusSubmitted, models.StatusApplying},
		{models.StatusSubmitted, models.StatusNew},
		{models.StatusRejected, models.StatusNew},
	}
	for _, c := range cases {
		if models.IsTransitionAllowed(c.from, c.to) {
			t.Errorf("IsTransitionAllowed(%s -> %s) should be false (backwards)", c.from, c.to)
		}
	}
}

func TestIsTransitionAllowed_Self(t *testing.T) {
	all := []models.OpportunityStatus{
		models.StatusNew, models.StatusReviewing, models.StatusApplying,
		models.StatusSubmitted, models.StatusRejected, models.StatusArchived,
	}
	for _, s := range all {
		if models.IsTransitionAllowed(s, s) {
			t.Errorf("IsTransitionAllowed(%s -> %s) should be false (self)", s, s)
		}
	}
}

func TestIsTransitionAllowed_SubmittedCannotBeRejected(t *testing.T) {
	// Submitted applications leave the board through archive only.
	if models.IsTransitionAllowed(models.StatusSubmitted, models.StatusRejected) {
		t.Error("IsTransitionAllowed(submitted -> rejected) should be false")
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	terminals := []models.JobStatus{
		models.JobStatusCompleted,
		models.JobStatusFailed,
		models.JobStatusCancelled,
	}
	for _, s := range terminals {
		if !models.IsTerminalJobStatus(s) {
			t.Errorf("IsTerminalJobStatus(%s) should return true", s)
		}
	}
	for _, s := range []models.JobStatus{models.JobStatusPending, models.JobStatusRunning} {
		if models.IsTerminalJobStatus(s) {
			t.Errorf("IsTerminalJobStatus(%s) should return false", s)
		}
	}
}
