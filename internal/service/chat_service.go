package service

import (
	"context"
	"errors"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/util"
	"modula_lms_backend/pkg/logger"
	"modula_lms_backend/pkg/monitoring"
	"modula_lms_backend/pkg/tracing"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChatService struct {
	ChatRepo       *repository.ChatRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	UserRepo       *repository.UserRepository
	Notifier       Notifier
	NotifyTimeout  time.Duration
}

func NewChatService(
	chatRepo *repository.ChatRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	userRepo *repository.UserRepository,
	notifier Notifier,
) *ChatService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ChatService{
		ChatRepo:       chatRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		UserRepo:       userRepo,
		Notifier:       notifier,
		NotifyTimeout:  10 * time.Second,
	}
}

// CreateOrGetGroupChat 课程群聊不存在时创建，并加入讲师和当前全部报名学员
func (s *ChatService) CreateOrGetGroupChat(ctx context.Context, actor Actor, courseID uint) (*model.Conversation, error) {
	course, err := s.CourseRepo.FindByID(ctx, courseID)
	if err != nil {
		return nil, storeError(err, util.ErrCourseNotFound)
	}
	if err := ensureAccess(ctx, s.CourseRepo, s.EnrollmentRepo, actor, courseID); err != nil {
		return nil, err
	}

	members, err := s.groupMembers(ctx, courseID)
	if err != nil {
		return nil, err
	}

	conv, err := s.ChatRepo.FindGroupByCourse(ctx, courseID)
	if err == nil {
		// 群聊创建后才报名的学员在此补入
		if err := s.ChatRepo.AddParticipants(ctx, conv.ID, members); err != nil {
			return nil, util.InternalError("failed to sync group members", err)
		}
		conv, err = s.ChatRepo.FindByID(ctx, conv.ID)
		if err != nil {
			return nil, util.InternalError("database error", err)
		}
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.InternalError("database error", err)
	}

	cid := courseID
	conv = &model.Conversation{
		Type:     model.ConversationGroup,
		CourseID: &cid,
		Name:     course.Title,
	}
	if err := s.ChatRepo.CreateConversation(ctx, conv, members); err != nil {
		return nil, util.InternalError("failed to create conversation", err)
	}
	return conv, nil
}

// groupMembers 课程讲师加当前全部报名学员
func (s *ChatService) groupMembers(ctx context.Context, courseID uint) ([]uint, error) {
	var members []uint
	instructor, err := s.CourseRepo.FindInstructor(ctx, courseID)
	if err == nil {
		members = append(members, instructor.ID)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.InternalError("database error", err)
	}
	students, err := s.EnrollmentRepo.StudentIDs(ctx, courseID)
	if err != nil {
		return nil, util.InternalError("database error", err)
	}
	return append(members, students...), nil
}

func (s *ChatService) CreateOrGetIndividualChat(ctx context.Context, actor Actor, otherUserID uint) (*model.Conversation, error) {
	if otherUserID == actor.UserID {
		return nil, util.ValidationError("cannot start a conversation with yourself")
	}
	if _, err := s.UserRepo.FindByID(ctx, otherUserID); err != nil {
		return nil, storeError(err, util.ErrUserNotFound)
	}

	conv, err := s.ChatRepo.FindIndividual(ctx, actor.UserID, otherUserID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.InternalError("database error", err)
	}

	conv = &model.Conversation{Type: model.ConversationIndividual}
	if err := s.ChatRepo.CreateConversation(ctx, conv, []uint{actor.UserID, otherUserID}); err != nil {
		return nil, util.InternalError("failed to create conversation", err)
	}
	return conv, nil
}

func (s *ChatService) ListConversations(ctx context.Context, actor Actor) ([]repository.ConversationRow, error) {
	rows, err := s.ChatRepo.ListForUser(ctx, actor.UserID)
	if err != nil {
		return nil, util.InternalError("failed to list conversations", err)
	}
	return rows, nil
}

// ensureParticipant 课程群聊以报名为准：已报名但尚未加入的学员直接补入
func (s *ChatService) ensureParticipant(ctx context.Context, convID, userID uint) error {
	conv, err := s.ChatRepo.FindByID(ctx, convID)
	if err != nil {
		return storeError(err, util.NotFoundError("conversation not found"))
	}
	ok, err := s.ChatRepo.IsParticipant(ctx, convID, userID)
	if err != nil {
		return util.InternalError("database error", err)
	}
	if ok {
		return nil
	}
	if conv.Type == model.ConversationGroup && conv.CourseID != nil {
		enrolled, err := s.EnrollmentRepo.IsEnrolled(ctx, userID, *conv.CourseID)
		if err != nil {
			return util.InternalError("database error", err)
		}
		if enrolled {
			if err := s.ChatRepo.AddParticipants(ctx, convID, []uint{userID}); err != nil {
				return util.InternalError("failed to join group chat", err)
			}
			return nil
		}
	}
	return util.ErrNotParticipant
}

func (s *ChatService) ListMessages(ctx context.Context, actor Actor, convID uint) ([]model.MessageView, error) {
	if err := s.ensureParticipant(ctx, convID, actor.UserID); err != nil {
		return nil, err
	}
	msgs, err := s.ChatRepo.ListMessages(ctx, convID)
	if err != nil {
		return nil, util.InternalError("failed to list messages", err)
	}
	return msgs, nil
}

type SendMessageReq struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"imageUrl"`
}

// SendMessage 持久化后异步推送，推送失败只记录日志
func (s *ChatService) SendMessage(ctx context.Context, actor Actor, convID uint, req SendMessageReq) (*model.MessageView, error) {
	ctx, span := tracing.Tracer.Start(ctx, "ChatService.SendMessage")
	defer span.End()

	content := strings.TrimSpace(req.Content)
	var imageURL *string
	if req.ImageURL != nil && strings.TrimSpace(*req.ImageURL) != "" {
		u := strings.TrimSpace(*req.ImageURL)
		imageURL = &u
	}
	if content == "" && imageURL == nil {
		return nil, util.ValidationError("message content or image is required")
	}
	if err := s.ensureParticipant(ctx, convID, actor.UserID); err != nil {
		return nil, err
	}

	msg := &model.Message{
		ConversationID: convID,
		SenderID:       actor.UserID,
		Content:        content,
		ImageURL:       imageURL,
		CreatedAt:      time.Now(),
	}
	if err := s.ChatRepo.CreateMessage(ctx, msg); err != nil {
		return nil, util.InternalError("failed to store message", err)
	}
	monitoring.MessagesSent.Inc()

	view, err := s.ChatRepo.FindMessageView(ctx, msg.ID)
	if err != nil {
		return nil, util.InternalError("failed to load message", err)
	}

	participants, err := s.ChatRepo.ParticipantIDs(ctx, convID)
	if err != nil {
		logger.Log.Warn("Failed to load participants for push", zap.Uint("conversation_id", convID), zap.Error(err))
		return view, nil
	}
	recipients := make([]uint, 0, len(participants))
	for _, id := range participants {
		if id != actor.UserID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) > 0 {
		go s.notify(NewMessageEvent{ConversationID: convID, RecipientIDs: recipients, Message: *view})
	}
	return view, nil
}

func (s *ChatService) notify(event NewMessageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), s.NotifyTimeout)
	defer cancel()
	if err := s.Notifier.NotifyNewMessage(ctx, event); err != nil {
		logger.Log.Warn("Push notification failed",
			zap.Uint("conversation_id", event.ConversationID),
			zap.Uint("message_id", event.Message.ID),
			zap.Error(err))
	}
}
