package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/olauber7232/tournament-latest-1/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SupportService struct {
	DB     *gorm.DB
	Log    *zap.Logger
	Alerts Alerter
}

func NewSupportService(db *gorm.DB, log *zap.Logger, alerts Alerter) *SupportService {
	return &SupportService{DB: db, Log: log, Alerts: alerts}
}

type HelpRequestInput struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

type HelpRequestUpdate struct {
	Status        models.HelpRequestStatus `json:"status" validate:"omitempty,oneof=open in_progress resolved"`
	AdminResponse *string                  `json:"admin_response" validate:"omitempty,max=5000"`
}

type AdminMessageInput struct {
	Title        string  `json:"title" validate:"required,max=200"`
	Message      string  `json:"message" validate:"required,max=5000"`
	Type         string  `json:"type" validate:"omitempty,oneof=info warning success promotion"`
	TargetUserID *string `json:"target_user_id"`
}

func (s *SupportService) CreateHelpRequest(ctx context.Context, userID string, in HelpRequestInput) (*models.HelpRequest, error) {
	if strings.TrimSpace(in.Subject) == "" || strings.TrimSpace(in.Message) == "" {
		return nil, validationf("subject and message are required")
	}
	var user models.User
	if err := s.DB.WithContext(ctx).Select("id", "username").First(&user, "id = ?", userID).Error; err != nil {
		return nil, dbError(err, "user")
	}

	req := &models.HelpRequest{UserID: userID, Subject: strings.TrimSpace(in.Subject), Message: in.Message}
	if err := s.DB.WithContext(ctx).Create(req).Error; err != nil {
		return nil, fmt.Errorf("create help request: %w", err)
	}

	if s.Alerts != nil {
		body := fmt.Sprintf("%s opened a help request.\n\nSubject: %s\n\n%s", user.Username, req.Subject, req.Message)
		if err := s.Alerts.Alert(ctx, "New help request: "+req.Subject, body); err != nil {
			s.Log.Warn("help request alert failed", zap.String("request_id", req.ID), zap.Error(err))
		}
	}
	return req, nil
}

func (s *SupportService) UserHelpRequests(ctx context.Context, userID string) ([]models.HelpRequest, error) {
	var out []models.HelpRequest
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list help requests: %w", err)
	}
	return out, nil
}

func (s *SupportService) AllHelpRequests(ctx context.Context, status string) ([]models.HelpRequest, error) {
	db := s.DB.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		db = db.Where("status = ?", status)
	}
	var out []models.HelpRequest
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list help requests: %w", err)
	}
	return out, nil
}

func (s *SupportService) UpdateHelpRequest(ctx context.Context, id string, in HelpRequestUpdate) (*models.HelpRequest, error) {
	var req models.HelpRequest
	if err := s.DB.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "help request")
	}
	updates := map[string]any{}
	if in.Status != "" {
		updates["status"] = in.Status
		req.Status = in.Status
	}
	if in.AdminResponse != nil {
		updates["admin_response"] = *in.AdminResponse
		req.AdminResponse = in.AdminResponse
	}
	if len(updates) == 0 {
		return &req, nil
	}
	if err := s.DB.WithContext(ctx).Model(&req).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update help request: %w", err)
	}
	return &req, nil
}

func (s *SupportService) CreateMessage(ctx context.Context, in AdminMessageInput) (*models.AdminMessage, error) {
	if in.TargetUserID != nil && *in.TargetUserID == "" {
		in.TargetUserID = nil
	}
	if in.TargetUserID != nil {
		var n int64
		if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", *in.TargetUserID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("check target user: %w", err)
		}
		if n == 0 {
			return nil, notFound("user")
		}
	}
	kind := in.Type
	if kind == "" {
		kind = "info"
	}
	msg := &models.AdminMessage{
		Title:        in.Title,
		Message:      in.Message,
		Type:         kind,
		IsActive:     true,
		TargetUserID: in.TargetUserID,
	}
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return msg, nil
}

func (s *SupportService) AllMessages(ctx context.Context) ([]models.AdminMessage, error) {
	var out []models.AdminMessage
	if err := s.DB.WithContext(ctx).Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

// MessagesFor returns active messages addressed to the user or broadcast to everyone.
func (s *SupportService) MessagesFor(ctx context.Context, userID string) ([]models.AdminMessage, error) {
	var out []models.AdminMessage
	err := s.DB.WithContext(ctx).
		Where("is_active = ? AND (target_user_id IS NULL OR target_user_id = ?)", true, userID).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}
