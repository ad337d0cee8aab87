package v1_test

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/taskflow-io/taskflow/internal/auth"
	"github.com/taskflow-io/taskflow/internal/domain"
	"github.com/taskflow-io/taskflow/internal/realtime"
	"github.com/taskflow-io/taskflow/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// Context helpers — inject the authenticated identity for DoCtx
// ---------------------------------------------------------------------------

func userCtx(userID uuid.UUID, name string) context.Context {
	ctx := context.Background()
	ctx = context.WithValue(ctx, middleware.ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, middleware.ContextKeyUserName, name)
	return ctx
}

// memberStore builds a store whose member lookups report the given caller
// membership for every project. Most project-scoped tests only need this.
func memberStore(caller *domain.ProjectMember) *mockDataStore {
	return &mockDataStore{
		members: &mockMemberRepo{
			getFunc: func(_ context.Context, _, _ uuid.UUID) (*domain.ProjectMember, error) {
				return caller, nil
			},
		},
	}
}

// ---------------------------------------------------------------------------
// Mock DataStore
// ---------------------------------------------------------------------------

type mockDataStore struct {
	users    domain.UserRepository
	projects domain.ProjectRepository
	members  domain.MemberRepository
	tasks    domain.TaskRepository
	comments domain.CommentRepository
	activity domain.ActivityRepository
}

func (m *mockDataStore) Users() domain.UserRepository        { return m.users }
func (m *mockDataStore) Projects() domain.ProjectRepository  { return m.projects }
func (m *mockDataStore) Members() domain.MemberRepository    { return m.members }
func (m *mockDataStore) Tasks() domain.TaskRepository        { return m.tasks }
func (m *mockDataStore) Comments() domain.CommentRepository  { return m.comments }
func (m *mockDataStore) Activity() domain.ActivityRepository { return m.activity }

// ---------------------------------------------------------------------------
// Mock UserRepository
// ---------------------------------------------------------------------------

type mockUserRepo struct {
	createFunc     func(ctx context.Context, u *domain.User) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	getByEmailFunc func(ctx context.Context, email string) (*domain.User, error)
	updateFunc     func(ctx context.Context, u *domain.User) error
}

func (m *mockUserRepo) Create(ctx context.Context, u *domain.User) error {
	return m.createFunc(ctx, u)
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.getByEmailFunc(ctx, email)
}

func (m *mockUserRepo) Update(ctx context.Context, u *domain.User) error {
	return m.updateFunc(ctx, u)
}

// ---------------------------------------------------------------------------
// Mock ProjectRepository
// ---------------------------------------------------------------------------

type mockProjectRepo struct {
	createFunc     func(ctx context.Context, p *domain.Project) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	listByUserFunc func(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error)
	updateFunc     func(ctx context.Context, p *domain.Project) error
	deleteFunc     func(ctx context.Context, id uuid.UUID) error
}

func (m *mockProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	return m.createFunc(ctx, p)
}

func (m *mockProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockProjectRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Project, error) {
	return m.listByUserFunc(ctx, userID)
}

func (m *mockProjectRepo) Update(ctx context.Context, p *domain.Project) error {
	return m.updateFunc(ctx, p)
}

func (m *mockProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock MemberRepository
// ---------------------------------------------------------------------------

type mockMemberRepo struct {
	addFunc           func(ctx context.Context, m *domain.ProjectMember) error
	listByProjectFunc func(ctx context.Context, projectID uuid.UUID) ([]*domain.ProjectMember, error)
	getFunc           func(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectMember, error)
	updateRoleFunc    func(ctx context.Context, projectID, userID uuid.UUID, role domain.ProjectRole) error
	removeFunc        func(ctx context.Context, projectID, userID uuid.UUID) error
	isMemberFunc      func(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
}

func (m *mockMemberRepo) Add(ctx context.Context, member *domain.ProjectMember) error {
	return m.addFunc(ctx, member)
}

func (m *mockMemberRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.ProjectMember, error) {
	return m.listByProjectFunc(ctx, projectID)
}

func (m *mockMemberRepo) Get(ctx context.Context, projectID, userID uuid.UUID) (*domain.ProjectMember, error) {
	return m.getFunc(ctx, projectID, userID)
}

func (m *mockMemberRepo) UpdateRole(ctx context.Context, projectID, userID uuid.UUID, role domain.ProjectRole) error {
	return m.updateRoleFunc(ctx, projectID, userID, role)
}

func (m *mockMemberRepo) Remove(ctx context.Context, projectID, userID uuid.UUID) error {
	return m.removeFunc(ctx, projectID, userID)
}

func (m *mockMemberRepo) IsMember(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	return m.isMemberFunc(ctx, projectID, userID)
}

// ---------------------------------------------------------------------------
// Mock TaskRepository
// ---------------------------------------------------------------------------

type mockTaskRepo struct {
	createFunc        func(ctx context.Context, t *domain.Task) error
	getByIDFunc       func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	listByProjectFunc func(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error)
	listByStatusFunc  func(ctx context.Context, projectID uuid.UUID, status domain.TaskStatus) ([]*domain.Task, error)
	listByAssignee    func(ctx context.Context, assigneeID uuid.UUID) ([]*domain.Task, error)
	updateFunc        func(ctx context.Context, t *domain.Task) error
	updateStatusFunc  func(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error
	deleteFunc        func(ctx context.Context, id uuid.UUID) error
}

func (m *mockTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	return m.createFunc(ctx, t)
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockTaskRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*domain.Task, error) {
	return m.listByProjectFunc(ctx, projectID)
}

func (m *mockTaskRepo) ListByStatus(ctx context.Context, projectID uuid.UUID, status domain.TaskStatus) ([]*domain.Task, error) {
	return m.listByStatusFunc(ctx, projectID, status)
}

func (m *mockTaskRepo) ListByAssignee(ctx context.Context, assigneeID uuid.UUID) ([]*domain.Task, error) {
	return m.listByAssignee(ctx, assigneeID)
}

func (m *mockTaskRepo) Update(ctx context.Context, t *domain.Task) error {
	return m.updateFunc(ctx, t)
}

func (m *mockTaskRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) error {
	return m.updateStatusFunc(ctx, id, status)
}

func (m *mockTaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock CommentRepository
// ---------------------------------------------------------------------------

type mockCommentRepo struct {
	createFunc     func(ctx context.Context, c *domain.Comment) error
	getByIDFunc    func(ctx context.Context, id uuid.UUID) (*domain.Comment, error)
	listByTaskFunc func(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error)
	updateFunc     func(ctx context.Context, c *domain.Comment) error
	deleteFunc     func(ctx context.Context, id uuid.UUID) error
}

func (m *mockCommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	return m.createFunc(ctx, c)
}

func (m *mockCommentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	return m.getByIDFunc(ctx, id)
}

func (m *mockCommentRepo) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*domain.Comment, error) {
	return m.listByTaskFunc(ctx, taskID)
}

func (m *mockCommentRepo) Update(ctx context.Context, c *domain.Comment) error {
	return m.updateFunc(ctx, c)
}

func (m *mockCommentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFunc(ctx, id)
}

// ---------------------------------------------------------------------------
// Mock ActivityRepository
// ---------------------------------------------------------------------------

type mockActivityRepo struct {
	appendFunc        func(ctx context.Context, entry *domain.ActivityEntry) error
	listByProjectFunc func(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*domain.ActivityEntry, error)
}

func (m *mockActivityRepo) Append(ctx context.Context, entry *domain.ActivityEntry) error {
	return m.appendFunc(ctx, entry)
}

func (m *mockActivityRepo) ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*domain.ActivityEntry, error) {
	return m.listByProjectFunc(ctx, projectID, limit, offset)
}

// ---------------------------------------------------------------------------
// Mock AuthService
// ---------------------------------------------------------------------------

type mockAuthService struct {
	registerFunc func(ctx context.Context, email, password, fullName string) (*domain.User, error)
	loginFunc    func(ctx context.Context, email, password string) (*domain.User, *auth.TokenPair, error)
	refreshFunc  func(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	logoutFunc   func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockAuthService) Register(ctx context.Context, email, password, fullName string) (*domain.User, error) {
	return m.registerFunc(ctx, email, password, fullName)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*domain.User, *auth.TokenPair, error) {
	return m.loginFunc(ctx, email, password)
}

func (m *mockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	return m.refreshFunc(ctx, refreshToken)
}

func (m *mockAuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	return m.logoutFunc(ctx, userID)
}

// ---------------------------------------------------------------------------
// Mock Publisher / Recorder — capture broadcast side effects
// ---------------------------------------------------------------------------

type mockPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (m *mockPublisher) Publish(event realtime.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockPublisher) published() []realtime.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]realtime.Event, len(m.events))
	copy(out, m.events)
	return out
}

type recordedEntry struct {
	event    realtime.Event
	metadata map[string]any
}

type mockRecorder struct {
	mu      sync.Mutex
	entries []recordedEntry
}

func (m *mockRecorder) Record(_ context.Context, event realtime.Event, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, recordedEntry{event: event, metadata: metadata})
}

func (m *mockRecorder) recorded() []recordedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recordedEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
