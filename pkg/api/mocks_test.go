package api

import (
	"context"
	"io"

	"github.com/platinummonkey/groundwork/pkg/analytics"
	"github.com/platinummonkey/groundwork/pkg/audit"
	"github.com/platinummonkey/groundwork/pkg/documents"
	"github.com/platinummonkey/groundwork/pkg/invitations"
	"github.com/platinummonkey/groundwork/pkg/models"
	"github.com/platinummonkey/groundwork/pkg/notifications"
	"github.com/platinummonkey/groundwork/pkg/projects"
	"github.com/platinummonkey/groundwork/pkg/reports"
	"github.com/platinummonkey/groundwork/pkg/search"
)

// mockProjectService is a mock implementation of ProjectService for testing
type mockProjectService struct {
	createFunc    func(caller *models.User, input projects.CreateInput) (*projects.View, error)
	getFunc       func(caller *models.User, id int64) (*projects.View, error)
	listFunc      func(caller *models.User) ([]*projects.View, error)
	updateFunc    func(caller *models.User, id int64, input projects.UpdateInput) (*projects.View, error)
	setStatusFunc func(caller *models.User, id int64, status models.ProjectStatus) (*projects.View, error)
	deleteFunc    func(caller *models.User, id int64) error
}

func (m *mockProjectService) Create(_ context.Context, caller *models.User, input projects.CreateInput) (*projects.View, error) {
	if m.createFunc != nil {
		return m.createFunc(caller, input)
	}
	return &projects.View{Project: &models.Project{Name: input.Name, OwnerID: caller.ID}}, nil
}

func (m *mockProjectService) Get(_ context.Context, caller *models.User, id int64) (*projects.View, error) {
	if m.getFunc != nil {
		return m.getFunc(caller, id)
	}
	return &projects.View{Project: &models.Project{ID: id}}, nil
}

func (m *mockProjectService) List(_ context.Context, caller *models.User) ([]*projects.View, error) {
	if m.listFunc != nil {
		return m.listFunc(caller)
	}
	return []*projects.View{}, nil
}

func (m *mockProjectService) Update(_ context.Context, caller *models.User, id int64, input projects.UpdateInput) (*projects.View, error) {
	if m.updateFunc != nil {
		return m.updateFunc(caller, id, input)
	}
	return &projects.View{Project: &models.Project{ID: id}}, nil
}

func (m *mockProjectService) SetStatus(_ context.Context, caller *models.User, id int64, status models.ProjectStatus) (*projects.View, error) {
	if m.setStatusFunc != nil {
		return m.setStatusFunc(caller, id, status)
	}
	return &projects.View{Project: &models.Project{ID: id, Status: status}}, nil
}

func (m *mockProjectService) Delete(_ context.Context, caller *models.User, id int64) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(caller, id)
	}
	return nil
}

// mockDocumentService is a mock implementation of DocumentService for testing
type mockDocumentService struct {
	uploadFunc func(caller *models.User, projectID int64, up documents.Upload) (*documents.Document, error)
	openFunc   func(caller *models.User, projectID, documentID int64) (*documents.Document, io.ReadCloser, error)
}

func (m *mockDocumentService) Upload(_ context.Context, caller *models.User, projectID int64, up documents.Upload) (*documents.Document, error) {
	if m.uploadFunc != nil {
		return m.uploadFunc(caller, projectID, up)
	}
	return &documents.Document{ProjectID: projectID, Name: up.Name}, nil
}

func (m *mockDocumentService) List(_ context.Context, _ *models.User, _ int64) ([]*documents.Document, error) {
	return []*documents.Document{}, nil
}

func (m *mockDocumentService) Open(_ context.Context, caller *models.User, projectID, documentID int64) (*documents.Document, io.ReadCloser, error) {
	return m.openFunc(caller, projectID, documentID)
}

func (m *mockDocumentService) Delete(_ context.Context, _ *models.User, _, _ int64) error {
	return nil
}

// mockInvitationService is a mock implementation of InvitationService for testing
type mockInvitationService struct {
	inviteFunc     func(caller *models.User, projectID int64, input invitations.InviteInput) (*invitations.InviteResult, error)
	acceptFunc     func(caller *models.User, token string) (*invitations.AccessView, error)
	autoAcceptFunc func(caller *models.User, token string) (*invitations.AccessView, error)
	peekFunc       func(token string) (*invitations.Preview, error)
}

func (m *mockInvitationService) Invite(_ context.Context, caller *models.User, projectID int64, input invitations.InviteInput) (*invitations.InviteResult, error) {
	if m.inviteFunc != nil {
		return m.inviteFunc(caller, projectID, input)
	}
	return &invitations.InviteResult{Status: invitations.StatusInvitationSent}, nil
}

func (m *mockInvitationService) Accept(_ context.Context, caller *models.User, token string) (*invitations.AccessView, error) {
	if m.acceptFunc != nil {
		return m.acceptFunc(caller, token)
	}
	return &invitations.AccessView{}, nil
}

func (m *mockInvitationService) AutoAccept(_ context.Context, caller *models.User, token string) (*invitations.AccessView, error) {
	if m.autoAcceptFunc != nil {
		return m.autoAcceptFunc(caller, token)
	}
	return &invitations.AccessView{}, nil
}

func (m *mockInvitationService) Revoke(_ context.Context, _ *models.User, _, _ int64) error {
	return nil
}

func (m *mockInvitationService) Resend(_ context.Context, _ *models.User, _ int64) (*invitations.AccessView, error) {
	return &invitations.AccessView{}, nil
}

func (m *mockInvitationService) Cancel(_ context.Context, _ *models.User, _ int64) error {
	return nil
}

func (m *mockInvitationService) List(_ context.Context, _ *models.User, _ int64) ([]*invitations.AccessView, error) {
	return []*invitations.AccessView{}, nil
}

func (m *mockInvitationService) Peek(_ context.Context, token string) (*invitations.Preview, error) {
	if m.peekFunc != nil {
		return m.peekFunc(token)
	}
	return &invitations.Preview{}, nil
}

// mockNotificationService is a mock implementation of NotificationService for testing
type mockNotificationService struct {
	listFunc        func(userID int64, unreadOnly bool, limit, offset int) (*notifications.Page, error)
	unsubscribeFunc func(token string) error
}

func (m *mockNotificationService) List(_ context.Context, userID int64, unreadOnly bool, limit, offset int) (*notifications.Page, error) {
	if m.listFunc != nil {
		return m.listFunc(userID, unreadOnly, limit, offset)
	}
	return &notifications.Page{Notifications: []*notifications.Notification{}}, nil
}

func (m *mockNotificationService) MarkRead(_ context.Context, _, _ int64) error {
	return nil
}

func (m *mockNotificationService) MarkAllRead(_ context.Context, _ int64) (int64, error) {
	return 0, nil
}

func (m *mockNotificationService) Unsubscribe(_ context.Context, token string) error {
	if m.unsubscribeFunc != nil {
		return m.unsubscribeFunc(token)
	}
	return nil
}

// mockSecurityLog is a mock implementation of SecurityLogService for testing
type mockSecurityLog struct {
	exportFunc func(caller *models.User, projectID int64, format audit.ExportFormat) ([]byte, error)
}

func (m *mockSecurityLog) ListAccessAttempts(_ context.Context, _ *models.User, _ int64, limit, offset int) (*audit.AccessAttemptPage, error) {
	return &audit.AccessAttemptPage{Attempts: []audit.AccessAttempt{}, Limit: limit, Offset: offset}, nil
}

func (m *mockSecurityLog) Export(_ context.Context, caller *models.User, projectID int64, format audit.ExportFormat) ([]byte, error) {
	return m.exportFunc(caller, projectID, format)
}

type portfolioFunc func(caller *models.User) (*analytics.Summary, error)

func (f portfolioFunc) Summary(_ context.Context, caller *models.User) (*analytics.Summary, error) {
	return f(caller)
}

type searchFunc func(caller *models.User, req search.Request) (*search.Response, error)

func (f searchFunc) Search(_ context.Context, caller *models.User, req search.Request) (*search.Response, error) {
	return f(caller, req)
}

type reportFunc func(caller *models.User, projectID int64, format reports.Format) (*reports.Report, error)

func (f reportFunc) Generate(_ context.Context, caller *models.User, projectID int64, format reports.Format) (*reports.Report, error) {
	return f(caller, projectID, format)
}
