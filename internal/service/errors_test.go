package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func TestClassifyMapsStoreErrors(t *testing.T) {
	if classify(nil) != nil {
		t.Fatalf("nil stays nil")
	}
	if got := classify(gorm.ErrRecordNotFound); !errors.Is(got, ErrNotFound) {
		t.Fatalf("record-not-found = %v, want ErrNotFound", got)
	}
	if got := classify(gorm.ErrDuplicatedKey); !errors.Is(got, ErrConflict) {
		t.Fatalf("duplicated-key = %v, want ErrConflict", got)
	}

	timeout := fmt.Errorf("query samples: %w", context.DeadlineExceeded)
	if got := classify(timeout); !errors.Is(got, ErrStoreUnavailable) {
		t.Fatalf("deadline-exceeded = %v, want ErrStoreUnavailable", got)
	}

	// Unknown errors pass through untouched, never swallowed.
	other := errors.New("disk on fire")
	if got := classify(other); got != other {
		t.Fatalf("unknown error must pass through, got %v", got)
	}
}

func TestStoreTimeoutSurfacesAsRetryable(t *testing.T) {
	repo := &fakeGroupRepo{
		memberships: map[uuid.UUID][]uuid.UUID{},
		listErr:     fmt.Errorf("list user groups: %w", context.DeadlineExceeded),
	}
	hierarchy := NewHierarchyService(repo, time.Minute)

	_, err := hierarchy.AccessibleGroups(context.Background(), uuid.New())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("a store timeout must surface as ErrStoreUnavailable, got %v", err)
	}
}
