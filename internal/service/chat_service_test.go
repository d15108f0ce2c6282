package service

import (
	"context"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chanNotifier struct {
	events chan NewMessageEvent
}

func (n *chanNotifier) NotifyNewMessage(ctx context.Context, event NewMessageEvent) error {
	n.events <- event
	return nil
}

func (e *testEnv) chatService(n Notifier) *ChatService {
	return NewChatService(e.Chats, e.Courses, e.Enrollments, e.Users, n)
}

func TestCreateOrGetGroupChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	lea, leaActor := env.createUser(t, "Lea Learner", model.Learner)
	pat, _ := env.createUser(t, "Pat Peer", model.Learner)
	_, stranger := env.createUser(t, "Sam Stranger", model.Learner)
	course := env.createCourse(t, owner, "Go 101", 0)
	env.enroll(t, lea.ID, course.ID)
	env.enroll(t, pat.ID, course.ID)
	svc := env.chatService(nil)

	conv, err := svc.CreateOrGetGroupChat(ctx, leaActor, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationGroup, conv.Type)
	assert.Equal(t, "Go 101", conv.Name)

	ids, err := env.Chats.ParticipantIDs(ctx, conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{instructor.ID, lea.ID, pat.ID}, ids)

	again, err := svc.CreateOrGetGroupChat(ctx, owner, course.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	_, err = svc.CreateOrGetGroupChat(ctx, stranger, course.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	_, err = svc.CreateOrGetGroupChat(ctx, leaActor, 9999)
	assert.True(t, util.IsKind(err, util.KindNotFound))
}

func TestGroupChat_LateEnrolleeJoins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	lea, leaActor := env.createUser(t, "Lea Learner", model.Learner)
	late, lateActor := env.createUser(t, "Late Learner", model.Learner)
	tardy, tardyActor := env.createUser(t, "Tardy Learner", model.Learner)
	_, stranger := env.createUser(t, "Sam Stranger", model.Learner)
	course := env.createCourse(t, owner, "Go 101", 0)
	env.enroll(t, lea.ID, course.ID)
	svc := env.chatService(nil)

	conv, err := svc.CreateOrGetGroupChat(ctx, leaActor, course.ID)
	require.NoError(t, err)

	env.enroll(t, late.ID, course.ID)
	again, err := svc.CreateOrGetGroupChat(ctx, lateActor, course.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)

	ids, err := env.Chats.ParticipantIDs(ctx, conv.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{instructor.ID, lea.ID, late.ID}, ids)

	_, err = svc.SendMessage(ctx, lateActor, conv.ID, SendMessageReq{Content: "hello"})
	require.NoError(t, err)
	msgs, err := svc.ListMessages(ctx, lateActor, conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	// 报名后直接访问已有群聊也会被补入
	env.enroll(t, tardy.ID, course.ID)
	_, err = svc.ListMessages(ctx, tardyActor, conv.ID)
	require.NoError(t, err)
	ok, err := env.Chats.IsParticipant(ctx, conv.ID, tardy.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.ListMessages(ctx, stranger, conv.ID)
	assert.ErrorIs(t, err, util.ErrNotParticipant)
}

func TestCreateOrGetIndividualChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lea, leaActor := env.createUser(t, "Lea Learner", model.Learner)
	pat, patActor := env.createUser(t, "Pat Peer", model.Learner)
	svc := env.chatService(nil)

	_, err := svc.CreateOrGetIndividualChat(ctx, leaActor, lea.ID)
	assert.True(t, util.IsKind(err, util.KindValidation))

	_, err = svc.CreateOrGetIndividualChat(ctx, leaActor, 9999)
	assert.True(t, util.IsKind(err, util.KindNotFound))

	conv, err := svc.CreateOrGetIndividualChat(ctx, leaActor, pat.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConversationIndividual, conv.Type)

	reverse, err := svc.CreateOrGetIndividualChat(ctx, patActor, lea.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, reverse.ID)

	rows, err := svc.ListConversations(ctx, leaActor)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pat.ID, rows[0].OtherUserID)
	assert.Equal(t, "Pat Peer", rows[0].OtherUserName)
}

func TestSendMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	lea, leaActor := env.createUser(t, "Lea Learner", model.Learner)
	pat, patActor := env.createUser(t, "Pat Peer", model.Learner)
	_, outsider := env.createUser(t, "Sam Stranger", model.Learner)
	notifier := &chanNotifier{events: make(chan NewMessageEvent, 1)}
	svc := env.chatService(notifier)

	conv, err := svc.CreateOrGetIndividualChat(ctx, leaActor, pat.ID)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, leaActor, conv.ID, SendMessageReq{Content: "   "})
	assert.True(t, util.IsKind(err, util.KindValidation))

	_, err = svc.SendMessage(ctx, outsider, conv.ID, SendMessageReq{Content: "hi"})
	assert.ErrorIs(t, err, util.ErrNotParticipant)

	_, err = svc.SendMessage(ctx, leaActor, 9999, SendMessageReq{Content: "hi"})
	assert.True(t, util.IsKind(err, util.KindNotFound))

	msg, err := svc.SendMessage(ctx, leaActor, conv.ID, SendMessageReq{Content: " hello "})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, "Lea Learner", msg.SenderName)

	select {
	case ev := <-notifier.events:
		assert.Equal(t, conv.ID, ev.ConversationID)
		assert.Equal(t, []uint{pat.ID}, ev.RecipientIDs)
		assert.Equal(t, msg.ID, ev.Message.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	img := "https://cdn.example.com/cat.png"
	_, err = svc.SendMessage(ctx, patActor, conv.ID, SendMessageReq{ImageURL: &img})
	require.NoError(t, err)
	<-notifier.events

	msgs, err := svc.ListMessages(ctx, patActor, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, lea.ID, msgs[0].SenderID)
	require.NotNil(t, msgs[1].ImageURL)
	assert.Equal(t, img, *msgs[1].ImageURL)

	_, err = svc.ListMessages(ctx, outsider, conv.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	stored, err := env.Chats.FindByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastMessageAt)
}
