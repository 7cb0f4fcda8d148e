package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SAP-F-2025/academic-service/internal/models"
	"github.com/SAP-F-2025/academic-service/internal/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ===== IDENTITY GATEWAY =====

// fakeGateway is an in-memory identity provider that records every call.
type fakeGateway struct {
	mu          sync.Mutex
	identities  map[string]*models.ExternalIdentity
	credentials map[string]string
	calls       []string
	failOn      map[string]error
	nextID      int
	unreachable bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		identities:  map[string]*models.ExternalIdentity{},
		credentials: map[string]string{},
		failOn:      map[string]error{},
	}
}

func (g *fakeGateway) call(op string) error {
	g.calls = append(g.calls, op)
	return g.failOn[op]
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func (g *fakeGateway) seed(id, username string, roles ...models.Role) *models.ExternalIdentity {
	g.mu.Lock()
	defer g.mu.Unlock()
	identity := &models.ExternalIdentity{
		ID:          id,
		Username:    username,
		Email:       username + "@example.edu",
		DisplayName: strings.ToUpper(username[:1]) + username[1:],
		Enabled:     true,
	}
	for _, role := range roles {
		identity.Roles = append(identity.Roles, role.String())
	}
	g.identities[id] = identity
	return identity
}

func (g *fakeGateway) snapshot(id string) *models.ExternalIdentity {
	g.mu.Lock()
	defer g.mu.Unlock()
	identity, ok := g.identities[id]
	if !ok {
		return nil
	}
	clone := *identity
	clone.Roles = slices.Clone(identity.Roles)
	return &clone
}

func (g *fakeGateway) CreateIdentity(ctx context.Context, attrs models.IdentityAttributes, credential string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("CreateIdentity"); err != nil {
		return "", err
	}
	for _, existing := range g.identities {
		if existing.Username == attrs.Username {
			return "", &repositories.GatewayRejectedError{Operation: "create identity", Status: "duplicate", Message: "username already exists"}
		}
	}
	g.nextID++
	id := fmt.Sprintf("id-%d", g.nextID)
	g.identities[id] = &models.ExternalIdentity{
		ID:          id,
		Username:    attrs.Username,
		Email:       attrs.Email,
		DisplayName: attrs.DisplayName,
		Enabled:     attrs.Enabled,
	}
	g.credentials[id] = credential
	return id, nil
}

func (g *fakeGateway) GetIdentity(ctx context.Context, id string) (*models.ExternalIdentity, error) {
	g.mu.Lock()
	if err := g.call("GetIdentity"); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	_, ok := g.identities[id]
	g.mu.Unlock()
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return g.snapshot(id), nil
}

func (g *fakeGateway) ListIdentities(ctx context.Context) ([]*models.ExternalIdentity, error) {
	g.mu.Lock()
	if err := g.call("ListIdentities"); err != nil {
		g.mu.Unlock()
		return nil, err
	}
	ids := make([]string, 0, len(g.identities))
	for id := range g.identities {
		ids = append(ids, id)
	}
	g.mu.Unlock()

	sort.Strings(ids)
	out := make([]*models.ExternalIdentity, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.snapshot(id))
	}
	return out, nil
}

func (g *fakeGateway) UpdateIdentity(ctx context.Context, id string, attrs models.IdentityAttributes) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("UpdateIdentity"); err != nil {
		return err
	}
	identity, ok := g.identities[id]
	if !ok {
		return repositories.ErrNotFound
	}
	identity.Username = attrs.Username
	identity.Email = attrs.Email
	identity.DisplayName = attrs.DisplayName
	identity.Enabled = attrs.Enabled
	return nil
}

func (g *fakeGateway) ResetCredential(ctx context.Context, id, credential string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ResetCredential"); err != nil {
		return err
	}
	if _, ok := g.identities[id]; !ok {
		return repositories.ErrNotFound
	}
	g.credentials[id] = credential
	return nil
}

func (g *fakeGateway) DeleteIdentity(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("DeleteIdentity"); err != nil {
		return err
	}
	if _, ok := g.identities[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(g.identities, id)
	delete(g.credentials, id)
	return nil
}

func (g *fakeGateway) AssignRole(ctx context.Context, id string, role models.Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("AssignRole"); err != nil {
		return err
	}
	identity, ok := g.identities[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if !slices.Contains(identity.Roles, role.String()) {
		identity.Roles = append(identity.Roles, role.String())
	}
	return nil
}

func (g *fakeGateway) RemoveRole(ctx context.Context, id string, role models.Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("RemoveRole"); err != nil {
		return err
	}
	identity, ok := g.identities[id]
	if !ok {
		return repositories.ErrNotFound
	}
	identity.Roles = slices.DeleteFunc(identity.Roles, func(name string) bool { return name == role.String() })
	return nil
}

func (g *fakeGateway) EffectiveRoles(ctx context.Context, id string) ([]string, error) {
	identity, err := g.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	return identity.Roles, nil
}

func (g *fakeGateway) ListRoles(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call("ListRoles"); err != nil {
		return nil, err
	}
	return []string{"ADMIN", "COORDINATOR", "PROFESSOR", "STUDENT"}, nil
}

func (g *fakeGateway) IsReachable(ctx context.Context) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.unreachable
}

// ===== LOCAL STORE =====

type memStore struct {
	nextID       uint
	courses      map[uint]*models.Course
	disciplines  map[uint]*models.Discipline
	students     map[string]*models.StudentProfile
	professors   map[string]*models.ProfessorProfile
	coordinators map[string]*models.CoordinatorProfile
	records      []*models.ReconciliationRecord
}

func newMemStore() *memStore {
	return &memStore{
		nextID:       1000,
		courses:      map[uint]*models.Course{},
		disciplines:  map[uint]*models.Discipline{},
		students:     map[string]*models.StudentProfile{},
		professors:   map[string]*models.ProfessorProfile{},
		coordinators: map[string]*models.CoordinatorProfile{},
	}
}

func (m *memStore) clone() *memStore {
	c := *m
	c.courses = cloneMap(m.courses)
	c.disciplines = cloneMap(m.disciplines)
	c.students = cloneMap(m.students)
	c.professors = cloneMap(m.professors)
	c.coordinators = cloneMap(m.coordinators)
	c.records = make([]*models.ReconciliationRecord, len(m.records))
	for i, r := range m.records {
		record := *r
		c.records[i] = &record
	}
	return &c
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

// fakeRepo implements repositories.Repository over memStore. Transactions
// snapshot the store and restore it when fn fails or commitErr is set.
type fakeRepo struct {
	mu        sync.Mutex
	store     *memStore
	gateway   *fakeGateway
	saveErr   map[models.Role]error
	commitErr error
	writes    int
	pingErr   error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		store:   newMemStore(),
		gateway: newFakeGateway(),
		saveErr: map[models.Role]error{},
	}
}

func (r *fakeRepo) seedCourse(id uint, name string) *models.Course {
	course := &models.Course{ID: id, Name: name, Code: strings.ToUpper(name[:3])}
	r.store.courses[id] = course
	return course
}

func (r *fakeRepo) seedDiscipline(id uint, name string) *models.Discipline {
	discipline := &models.Discipline{ID: id, Name: name, Code: strings.ToUpper(name[:3])}
	r.store.disciplines[id] = discipline
	return discipline
}

func (r *fakeRepo) Course() repositories.CourseRepository         { return fakeCourses{r} }
func (r *fakeRepo) Discipline() repositories.DisciplineRepository { return fakeDisciplines{r} }
func (r *fakeRepo) Associations() repositories.AssociationLookup  { return fakeLookup{r} }
func (r *fakeRepo) StudentProfile() repositories.StudentProfileRepository {
	return fakeStudents{r}
}
func (r *fakeRepo) ProfessorProfile() repositories.ProfessorProfileRepository {
	return fakeProfessors{r}
}
func (r *fakeRepo) CoordinatorProfile() repositories.CoordinatorProfileRepository {
	return fakeCoordinators{r}
}
func (r *fakeRepo) Reconciliation() repositories.ReconciliationRepository {
	return fakeRecords{r}
}
func (r *fakeRepo) Identity() repositories.IdentityGateway { return r.gateway }

func (r *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	snapshot := r.store.clone()
	writes := r.writes
	if err := fn(r); err != nil {
		r.store = snapshot
		r.writes = writes
		return err
	}
	if r.commitErr != nil {
		r.store = snapshot
		r.writes = writes
		return r.commitErr
	}
	return nil
}

func (r *fakeRepo) Ping(ctx context.Context) error { return r.pingErr }
func (r *fakeRepo) Close() error                   { return nil }

type fakeCourses struct{ r *fakeRepo }

func (f fakeCourses) Create(ctx context.Context, course *models.Course) error {
	course.ID = f.r.store.id()
	f.r.store.courses[course.ID] = course
	return nil
}

func (f fakeCourses) GetByID(ctx context.Context, id uint) (*models.Course, error) {
	if c, ok := f.r.store.courses[id]; ok {
		return c, nil
	}
	return nil, repositories.ErrNotFound
}

func (f fakeCourses) First(ctx context.Context) (*models.Course, error) {
	var first *models.Course
	for _, c := range f.r.store.courses {
		if first == nil || c.ID < first.ID {
			first = c
		}
	}
	if first == nil {
		return nil, repositories.ErrNotFound
	}
	return first, nil
}

func (f fakeCourses) List(ctx context.Context) ([]*models.Course, error) {
	out := make([]*models.Course, 0, len(f.r.store.courses))
	for _, c := range f.r.store.courses {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeCourses) Delete(ctx context.Context, id uint) error {
	if _, ok := f.r.store.courses[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.r.store.courses, id)
	return nil
}

func (f fakeCourses) ExistsByNameOrCode(ctx context.Context, name, code string) (bool, error) {
	for _, c := range f.r.store.courses {
		if c.Name == name || c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (f fakeCourses) IsReferenced(ctx context.Context, id uint) (bool, error) {
	for _, p := range f.r.store.students {
		if p.CourseID == id {
			return true, nil
		}
	}
	for _, p := range f.r.store.coordinators {
		if p.CourseID == id {
			return true, nil
		}
	}
	return false, nil
}

type fakeDisciplines struct{ r *fakeRepo }

func (f fakeDisciplines) Create(ctx context.Context, discipline *models.Discipline) error {
	discipline.ID = f.r.store.id()
	f.r.store.disciplines[discipline.ID] = discipline
	return nil
}

func (f fakeDisciplines) GetByID(ctx context.Context, id uint) (*models.Discipline, error) {
	if d, ok := f.r.store.disciplines[id]; ok {
		return d, nil
	}
	return nil, repositories.ErrNotFound
}

func (f fakeDisciplines) GetByIDs(ctx context.Context, ids []uint) ([]*models.Discipline, error) {
	var out []*models.Discipline
	for _, id := range ids {
		if d, ok := f.r.store.disciplines[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f fakeDisciplines) List(ctx context.Context) ([]*models.Discipline, error) {
	out := make([]*models.Discipline, 0, len(f.r.store.disciplines))
	for _, d := range f.r.store.disciplines {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeDisciplines) Delete(ctx context.Context, id uint) error {
	if _, ok := f.r.store.disciplines[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.r.store.disciplines, id)
	return nil
}

func (f fakeDisciplines) ExistsByCode(ctx context.Context, code string) (bool, error) {
	for _, d := range f.r.store.disciplines {
		if d.Code == code {
			return true, nil
		}
	}
	return false, nil
}

type fakeLookup struct{ r *fakeRepo }

func (f fakeLookup) FindCourse(ctx context.Context, id uint) (*models.Course, error) {
	return fakeCourses(f).GetByID(ctx, id)
}

func (f fakeLookup) FindDiscipline(ctx context.Context, id uint) (*models.Discipline, error) {
	return fakeDisciplines(f).GetByID(ctx, id)
}

func (f fakeLookup) ListDisciplines(ctx context.Context, ids []uint) ([]*models.Discipline, error) {
	return fakeDisciplines(f).GetByIDs(ctx, ids)
}

func (f fakeLookup) FirstCourse(ctx context.Context) (*models.Course, error) {
	return fakeCourses(f).First(ctx)
}

type fakeStudents struct{ r *fakeRepo }

func (f fakeStudents) FindByExternalID(ctx context.Context, externalID string) (*models.StudentProfile, error) {
	if p, ok := f.r.store.students[externalID]; ok {
		return p, nil
	}
	return nil, repositories.ErrNotFound
}

func (f fakeStudents) Save(ctx context.Context, profile *models.StudentProfile) error {
	if err := f.r.saveErr[models.RoleStudent]; err != nil {
		return err
	}
	for _, p := range f.r.store.students {
		if p.RegistrationNumber == profile.RegistrationNumber && p.ExternalID != profile.ExternalID {
			return repositories.ErrDuplicate
		}
	}
	if profile.ID == 0 {
		profile.ID = f.r.store.id()
	}
	f.r.store.students[profile.ExternalID] = profile
	f.r.writes++
	return nil
}

func (f fakeStudents) DeleteByExternalID(ctx context.Context, externalID string) error {
	if _, ok := f.r.store.students[externalID]; ok {
		delete(f.r.store.students, externalID)
		f.r.writes++
	}
	return nil
}

type fakeProfessors struct{ r *fakeRepo }

func (f fakeProfessors) FindByExternalID(ctx context.Context, externalID string) (*models.ProfessorProfile, error) {
	if p, ok := f.r.store.professors[externalID]; ok {
		return p, nil
	}
	return nil, repositories.ErrNotFound
}

func (f fakeProfessors) Save(ctx context.Context, profile *models.ProfessorProfile) error {
	if err := f.r.saveErr[models.RoleProfessor]; err != nil {
		return err
	}
	if profile.ID == 0 {
		profile.ID = f.r.store.id()
	}
	f.r.store.professors[profile.ExternalID] = profile
	f.r.writes++
	return nil
}

func (f fakeProfessors) DeleteByExternalID(ctx context.Context, externalID string) error {
	if _, ok := f.r.store.professors[externalID]; ok {
		delete(f.r.store.professors, externalID)
		f.r.writes++
	}
	return nil
}

type fakeCoordinators struct{ r *fakeRepo }

func (f fakeCoordinators) FindByExternalID(ctx context.Context, externalID string) (*models.CoordinatorProfile, error) {
	if p, ok := f.r.store.coordinators[externalID]; ok {
		return p, nil
	}
	return nil, repositories.ErrNotFound
}

func (f fakeCoordinators) Save(ctx context.Context, profile *models.CoordinatorProfile) error {
	if err := f.r.saveErr[models.RoleCoordinator]; err != nil {
		return err
	}
	if profile.ID == 0 {
		profile.ID = f.r.store.id()
	}
	f.r.store.coordinators[profile.ExternalID] = profile
	f.r.writes++
	return nil
}

func (f fakeCoordinators) DeleteByExternalID(ctx context.Context, externalID string) error {
	if _, ok := f.r.store.coordinators[externalID]; ok {
		delete(f.r.store.coordinators, externalID)
		f.r.writes++
	}
	return nil
}

type fakeRecords struct{ r *fakeRepo }

func (f fakeRecords) Create(ctx context.Context, record *models.ReconciliationRecord) error {
	record.ID = f.r.store.id()
	record.CreatedAt = time.Now()
	f.r.store.records = append(f.r.store.records, record)
	f.r.writes++
	return nil
}

func (f fakeRecords) List(ctx context.Context, filters repositories.ReconciliationFilters) ([]*models.ReconciliationRecord, int64, error) {
	var matched []*models.ReconciliationRecord
	for _, record := range f.r.store.records {
		if filters.Status == nil || record.Status == *filters.Status {
			matched = append(matched, record)
		}
	}
	total := int64(len(matched))
	if filters.Offset < len(matched) {
		matched = matched[filters.Offset:]
	} else {
		matched = nil
	}
	if filters.Limit > 0 && len(matched) > filters.Limit {
		matched = matched[:filters.Limit]
	}
	return matched, total, nil
}

func (f fakeRecords) ResolveByExternalID(ctx context.Context, externalID string) error {
	now := time.Now()
	for _, record := range f.r.store.records {
		if record.ExternalID == externalID && record.Status != models.ReconciliationResolved {
			record.Status = models.ReconciliationResolved
			record.ResolvedAt = &now
		}
	}
	return nil
}
