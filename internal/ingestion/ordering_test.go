package ingestion

import (
	"errors"
	"testing"

	"gift-market-tracker/internal/domain"
)

func TestSortFeedEvents(t *testing.T) {
	events := []*domain.Event{
		{Hash: "b", Timestamp: 100},
		{Hash: "c", Timestamp: 99},
		{Hash: "a", Timestamp: 100},
	}

	SortFeedEvents(events)

	if events[0].Hash != "c" || events[1].Hash != "a" || events[2].Hash != "b" {
		t.Errorf("unexpected order: %s %s %s", events[0].Hash, events[1].Hash, events[2].Hash)
	}
}

func TestValidateEventOrdering_Valid(t *testing.T) {
	cp := domain.NewCheckpoint("c").AdvanceTo(domain.Position{Timestamp: 100, ID: 1})
	events := []*domain.Event{
		{ID: 2, Timestamp: 100},
		{ID: 3, Timestamp: 101},
		{ID: 1, Timestamp: 102},
	}

	if err := ValidateEventOrdering(cp, events); err != nil {
		t.Errorf("expected valid ordering, got %v", err)
	}
}

func TestValidateEventOrdering_Invalid(t *testing.T) {
	cp := domain.NewCheckpoint("c").AdvanceTo(domain.Position{Timestamp: 100, ID: 5})

	tests := []struct {
		name   string
		events []*domain.Event
	}{
		{"descending", []*domain.Event{{ID: 7, Timestamp: 102}, {ID: 8, Timestamp: 101}}},
		{"duplicate position", []*domain.Event{{ID: 7, Timestamp: 101}, {ID: 7, Timestamp: 101}}},
		{"at checkpoint", []*domain.Event{{ID: 5, Timestamp: 100}}},
		{"before checkpoint", []*domain.Event{{ID: 9, Timestamp: 99}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateEventOrdering(cp, tt.events); !errors.Is(err, ErrInvalidOrdering) {
				t.Errorf("expected ErrInvalidOrdering, got %v", err)
			}
		})
	}
}
