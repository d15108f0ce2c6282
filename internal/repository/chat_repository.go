package repository

import (
	"context"
	"modula_lms_backend/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRepository struct {
	DB *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

// CreateConversation 会话与参与者在同一事务中写入，参与者已去重
func (r *ChatRepository) CreateConversation(ctx context.Context, conv *model.Conversation, userIDs []uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(conv).Error; err != nil {
			return err
		}
		seen := make(map[uint]bool, len(userIDs))
		participants := make([]model.ConversationParticipant, 0, len(userIDs))
		for _, uid := range userIDs {
			if uid == 0 || seen[uid] {
				continue
			}
			seen[uid] = true
			participants = append(participants, model.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         uid,
			})
		}
		if len(participants) == 0 {
			return nil
		}
		if err := tx.Create(&participants).Error; err != nil {
			return err
		}
		conv.Participants = participants
		return nil
	})
}

// AddParticipants 补齐参与者，已存在的 (会话, 用户) 对忽略
func (r *ChatRepository) AddParticipants(ctx context.Context, convID uint, userIDs []uint) error {
	seen := make(map[uint]bool, len(userIDs))
	participants := make([]model.ConversationParticipant, 0, len(userIDs))
	for _, uid := range userIDs {
		if uid == 0 || seen[uid] {
			continue
		}
		seen[uid] = true
		participants = append(participants, model.ConversationParticipant{ConversationID: convID, UserID: uid})
	}
	if len(participants) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&participants).Error
}

func (r *ChatRepository) FindByID(ctx context.Context, id uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.DB.WithContext(ctx).Preload("Participants").First(&conv, id).Error
	return &conv, err
}

func (r *ChatRepository) FindGroupByCourse(ctx context.Context, courseID uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.DB.WithContext(ctx).Preload("Participants").
		Where("type = ? AND course_id = ?", model.ConversationGroup, courseID).
		Order("id asc").
		First(&conv).Error
	return &conv, err
}

// FindIndividual 查找两个用户共同参与的私聊会话
func (r *ChatRepository) FindIndividual(ctx context.Context, userA, userB uint) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.DB.WithContext(ctx).
		Joins("JOIN conversation_participants p1 ON p1.conversation_id = conversations.id").
		Joins("JOIN conversation_participants p2 ON p2.conversation_id = conversations.id").
		Where("conversations.type = ?", model.ConversationIndividual).
		Where("p1.user_id = ? AND p2.user_id = ?", userA, userB).
		Preload("Participants").
		Order("conversations.id asc").
		First(&conv).Error
	return &conv, err
}

func (r *ChatRepository) IsParticipant(ctx context.Context, convID, userID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", convID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *ChatRepository) ParticipantIDs(ctx context.Context, convID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.ConversationParticipant{}).
		Where("conversation_id = ?", convID).
		Order("id asc").
		Pluck("user_id", &ids).Error
	return ids, err
}

// ConversationRow 会话列表项
type ConversationRow struct {
	ID                uint                   `json:"id"`
	Type              model.ConversationType `json:"type"`
	CourseID          *uint                  `json:"courseId,omitempty"`
	Name              string                 `json:"name"`
	CourseTitle       string                 `json:"courseTitle,omitempty"`
	LastMessageAt     *time.Time             `json:"lastMessageAt"`
	LastMessage       string                 `json:"lastMessage"`
	OtherUserID       uint                   `json:"otherUserId,omitempty"`
	OtherUserName     string                 `json:"otherUserName,omitempty"`
	OtherUserImageURL string                 `json:"otherUserImageUrl,omitempty"`
	CreatedAt         time.Time              `json:"createdAt"`
}

// ListForUser 按最近活跃时间倒序
func (r *ChatRepository) ListForUser(ctx context.Context, userID uint) ([]ConversationRow, error) {
	var rows []ConversationRow
	err := r.DB.WithContext(ctx).Table("conversations c").
		Select("c.id, c.type, c.course_id, c.name, c.last_message_at, c.created_at, "+
			"co.title AS course_title, "+
			"ou.id AS other_user_id, ou.name AS other_user_name, ou.profile_image_url AS other_user_image_url, "+
			"(SELECT m.content FROM messages m WHERE m.conversation_id = c.id ORDER BY m.created_at DESC, m.id DESC LIMIT 1) AS last_message").
		Joins("JOIN conversation_participants me ON me.conversation_id = c.id AND me.user_id = ?", userID).
		Joins("LEFT JOIN courses co ON co.id = c.course_id").
		Joins("LEFT JOIN conversation_participants op ON op.conversation_id = c.id AND op.user_id <> ? AND c.type = ?", userID, model.ConversationIndividual).
		Joins("LEFT JOIN users ou ON ou.id = op.user_id").
		Order("COALESCE(c.last_message_at, c.created_at) DESC").
		Scan(&rows).Error
	return rows, err
}

// CreateMessage 写入消息并刷新会话最近活跃时间
func (r *ChatRepository) CreateMessage(ctx context.Context, msg *model.Message) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&model.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("last_message_at", msg.CreatedAt).Error
	})
}

func (r *ChatRepository) messageQuery(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx).Table("messages m").
		Select("m.id, m.conversation_id, m.sender_id, m.content, m.image_url, m.created_at, " +
			"u.name AS sender_name, u.profile_image_url AS sender_image_url").
		Joins("JOIN users u ON u.id = m.sender_id")
}

func (r *ChatRepository) ListMessages(ctx context.Context, convID uint) ([]model.MessageView, error) {
	var msgs []model.MessageView
	err := r.messageQuery(ctx).
		Where("m.conversation_id = ?", convID).
		Order("m.created_at asc, m.id asc").
		Scan(&msgs).Error
	return msgs, err
}

func (r *ChatRepository) FindMessageView(ctx context.Context, id uint) (*model.MessageView, error) {
	var msg model.MessageView
	err := r.messageQuery(ctx).Where("m.id = ?", id).Take(&msg).Error
	return &msg, err
}
