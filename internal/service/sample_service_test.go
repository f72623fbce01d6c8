package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"lims/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fakeSampleRepo struct {
	samples map[string]*model.Sample // keyed by external sample id
}

func newFakeSampleRepo(samples ...*model.Sample) *fakeSampleRepo {
	f := &fakeSampleRepo{samples: make(map[string]*model.Sample)}
	for _, s := range samples {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		f.samples[s.SampleID] = s
	}
	return f
}

func (f *fakeSampleRepo) Create(_ context.Context, s *model.Sample) error {
	if _, exists := f.samples[s.SampleID]; exists {
		return gorm.ErrDuplicatedKey
	}
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	copied := *s
	f.samples[s.SampleID] = &copied
	return nil
}

func (f *fakeSampleRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Sample, error) {
	for _, s := range f.samples {
		if s.ID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSampleRepo) GetBySampleID(_ context.Context, sampleID string) (*model.Sample, error) {
	if s, ok := f.samples[sampleID]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeSampleRepo) Update(_ context.Context, s *model.Sample) error {
	if _, ok := f.samples[s.SampleID]; !ok {
		return gorm.ErrRecordNotFound
	}
	copied := *s
	f.samples[s.SampleID] = &copied
	return nil
}

func (f *fakeSampleRepo) ListScoped(_ context.Context, userID uuid.UUID, groupIDs []uuid.UUID, _ string, _, _ int) ([]model.Sample, int64, error) {
	allowed := make(map[uuid.UUID]bool, len(groupIDs))
	for _, id := range groupIDs {
		allowed[id] = true
	}
	var out []model.Sample
	for _, s := range f.samples {
		if allowed[s.GroupID] {
			out = append(out, *s)
		}
	}
	return out, int64(len(out)), nil
}

// newSampleFixture wires the full read path: group forest, hierarchy resolver,
// access engine and sample service over in-memory stores.
func newSampleFixture(t *testing.T, groups []model.Group, memberships map[uuid.UUID][]uuid.UUID, samples ...*model.Sample) (SampleService, *fakeSampleRepo, *fakeAudit) {
	t.Helper()
	groupRepo := &fakeGroupRepo{groups: groups, memberships: memberships}
	hierarchy := NewHierarchyService(groupRepo, time.Minute)
	audit := &fakeAudit{}
	roles := &fakeRoleRepo{activeRoles: map[uuid.UUID]map[string]bool{}}
	access := NewAccessService(roles, hierarchy, audit, model.AdminRoleName)
	repo := newFakeSampleRepo(samples...)
	return NewSampleService(repo, access, hierarchy, &fakeTx{}, model.AdminRoleName), repo, audit
}

func TestSampleUpdateDeniedLeavesSampleAndAuditIntact(t *testing.T) {
	labA := group("LabA", nil)
	labB := group("LabB", nil)
	userID := uuid.New()
	sample := &model.Sample{SampleID: "S999", GroupID: labB.ID, Type: "serum", Status: model.SampleStatusRegistered}

	svc, repo, audit := newSampleFixture(t,
		[]model.Group{labA, labB},
		map[uuid.UUID][]uuid.UUID{userID: {labA.ID}},
		sample,
	)
	ctx := context.Background()

	_, err := svc.Update(ctx, userID, "S999", UpdateSampleRequest{Status: model.SampleStatusInAnalysis})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}

	// The denial is on the record even though nothing changed.
	if got := len(audit.byAction(model.ActionAccessDenied)); got != 1 {
		t.Fatalf("expected one access_denied entry, got %d", got)
	}
	stored, err := repo.GetBySampleID(ctx, "S999")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != model.SampleStatusRegistered {
		t.Fatalf("denied update must not change the sample, status = %q", stored.Status)
	}
}

func TestSampleCreateAuthorizesTargetGroup(t *testing.T) {
	labA := group("LabA", nil)
	projectX := group("ProjectX", &labA.ID)
	labB := group("LabB", nil)
	userID := uuid.New()

	svc, _, audit := newSampleFixture(t,
		[]model.Group{labA, projectX, labB},
		map[uuid.UUID][]uuid.UUID{userID: {labA.ID}},
	)
	ctx := context.Background()

	created, err := svc.Create(ctx, userID, CreateSampleRequest{
		SampleID: "S123",
		GroupID:  projectX.ID.String(),
		Type:     "tissue",
		Quantity: "2.5000",
		Unit:     "g",
	})
	if err != nil {
		t.Fatalf("create in descendant group: %v", err)
	}
	if created.Status != model.SampleStatusRegistered {
		t.Fatalf("new samples start registered, got %q", created.Status)
	}
	if got := len(audit.byAction(model.ActionAccessGranted)); got != 1 {
		t.Fatalf("mutating allow must be audited, got %d entries", got)
	}

	_, err = svc.Create(ctx, userID, CreateSampleRequest{
		SampleID: "S124",
		GroupID:  labB.ID.String(),
		Type:     "tissue",
	})
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("create outside the reachable set: expected ErrAccessDenied, got %v", err)
	}
}

func TestSampleListScopesToReachableGroups(t *testing.T) {
	labA := group("LabA", nil)
	projectX := group("ProjectX", &labA.ID)
	labB := group("LabB", nil)
	userID := uuid.New()

	svc, _, _ := newSampleFixture(t,
		[]model.Group{labA, projectX, labB},
		map[uuid.UUID][]uuid.UUID{userID: {labA.ID}},
		&model.Sample{SampleID: "S1", GroupID: labA.ID},
		&model.Sample{SampleID: "S2", GroupID: projectX.ID},
		&model.Sample{SampleID: "S3", GroupID: labB.ID},
	)

	samples, total, err := svc.List(context.Background(), userID, 1, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(samples) != 2 {
		t.Fatalf("expected the two reachable samples, got %d/%d", len(samples), total)
	}
	for _, s := range samples {
		if s.SampleID == "S3" {
			t.Fatalf("sample outside the reachable set leaked into the listing")
		}
	}
}

func TestSampleDisposeStampsDisposal(t *testing.T) {
	labA := group("LabA", nil)
	userID := uuid.New()
	sample := &model.Sample{SampleID: "S1", GroupID: labA.ID, Status: model.SampleStatusInStorage}

	svc, repo, _ := newSampleFixture(t,
		[]model.Group{labA},
		map[uuid.UUID][]uuid.UUID{userID: {labA.ID}},
		sample,
	)
	ctx := context.Background()

	disposed, err := svc.Dispose(ctx, userID, "S1")
	if err != nil {
		t.Fatalf("dispose: %v", err)
	}
	if disposed.Status != model.SampleStatusDisposed {
		t.Fatalf("status = %q, want disposed", disposed.Status)
	}
	if disposed.DisposedOn == nil {
		t.Fatalf("disposal must stamp disposed_on")
	}

	stored, _ := repo.GetBySampleID(ctx, "S1")
	if stored.Status != model.SampleStatusDisposed {
		t.Fatalf("disposal must persist, status = %q", stored.Status)
	}
}
