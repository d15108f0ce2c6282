package service

import (
	"context"
	"encoding/json"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitAssignment_ResubmissionResetsGrade(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	learner, learnerActor := env.createUser(t, "Lea Learner", model.Learner)
	course := env.createCourse(t, owner, "Go 101", 0)
	sec := env.createSection(t, owner, course.ID, "One")
	lesson := env.createLesson(t, owner, sec.ID, "Homework", model.LessonDevoir).Lesson
	env.enroll(t, learner.ID, course.ID)

	first, err := env.SubmissionSvc.SubmitAssignment(ctx, learnerActor, lesson.ID, SubmitAssignmentReq{Content: json.RawMessage(`{"text":"v1"}`)})
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionSubmitted, first.Status)
	assert.Equal(t, course.ID, first.CourseID)

	graded, err := env.SubmissionSvc.GradeSubmission(ctx, owner, first.ID, GradeReq{Grade: ptr(15.456), Feedback: json.RawMessage(`{"note":"good"}`)})
	require.NoError(t, err)
	assert.Equal(t, model.SubmissionGraded, graded.Status)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 15.46, *graded.Grade)
	assert.NotNil(t, graded.GradedDate)

	second, err := env.SubmissionSvc.SubmitAssignment(ctx, learnerActor, lesson.ID, SubmitAssignmentReq{Content: json.RawMessage(`{"text":"v2"}`)})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.SubmissionSubmitted, second.Status)
	assert.Nil(t, second.Grade)
	assert.Nil(t, second.GradedDate)
	assert.Empty(t, second.InstructorFeedback)
	assert.JSONEq(t, `{"text":"v2"}`, string(second.Content))

	var count int64
	require.NoError(t, env.DB.Model(&model.Submission{}).Where("lesson_id = ? AND student_id = ?", lesson.ID, learner.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// 提交同时标记课时完成
	details, err := env.ContentSvc.GetLessonDetails(ctx, learnerActor, lesson.ID)
	require.NoError(t, err)
	assert.True(t, details.IsCompleted)
	require.NotNil(t, details.Submission)
	assert.Equal(t, first.ID, details.Submission.ID)
}

func TestSubmitAssignment_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	learner, learnerActor := env.createUser(t, "Lea Learner", model.Learner)
	_, stranger := env.createUser(t, "Sam Stranger", model.Learner)
	course := env.createCourse(t, owner, "Go 101", 0)
	sec := env.createSection(t, owner, course.ID, "One")
	text := env.createLesson(t, owner, sec.ID, "Reading", model.LessonText).Lesson
	exam := env.createLesson(t, owner, sec.ID, "Exam", model.LessonEvaluation).Lesson
	env.enroll(t, learner.ID, course.ID)
	content := SubmitAssignmentReq{Content: json.RawMessage(`{"text":"answer"}`)}

	_, err := env.SubmissionSvc.SubmitAssignment(ctx, learnerActor, text.ID, content)
	assert.True(t, util.IsKind(err, util.KindValidation))

	_, err = env.SubmissionSvc.SubmitAssignment(ctx, learnerActor, 9999, content)
	assert.True(t, util.IsKind(err, util.KindNotFound))

	_, err = env.SubmissionSvc.SubmitAssignment(ctx, learnerActor, exam.ID, SubmitAssignmentReq{})
	assert.True(t, util.IsKind(err, util.KindValidation))

	_, err = env.SubmissionSvc.SubmitAssignment(ctx, stranger, exam.ID, content)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	sub, err := env.SubmissionSvc.SubmitAssignment(ctx, learnerActor, exam.ID, content)
	require.NoError(t, err)

	_, err = env.SubmissionSvc.GradeSubmission(ctx, owner, sub.ID, GradeReq{Grade: ptr(-1.0)})
	assert.True(t, util.IsKind(err, util.KindValidation))

	_, err = env.SubmissionSvc.GradeSubmission(ctx, owner, 9999, GradeReq{Grade: ptr(10.0)})
	assert.True(t, util.IsKind(err, util.KindNotFound))

	_, err = env.SubmissionSvc.GradeSubmission(ctx, learnerActor, sub.ID, GradeReq{Grade: ptr(20.0)})
	assert.True(t, util.IsKind(err, util.KindForbidden))

	// 成绩可为空，仅写评语
	graded, err := env.SubmissionSvc.GradeSubmission(ctx, owner, sub.ID, GradeReq{Feedback: json.RawMessage(`"see comments"`)})
	require.NoError(t, err)
	assert.Nil(t, graded.Grade)
	assert.Equal(t, model.SubmissionGraded, graded.Status)
}

func TestSubmissionListingAndVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	_, otherTeacher := env.createUser(t, "Bob Teacher", model.Instructor)
	learner, learnerActor := env.createUser(t, "Lea Learner", model.Learner)
	_, peer := env.createUser(t, "Pat Peer", model.Learner)
	course := env.createCourse(t, owner, "Go 101", 0)
	sec := env.createSection(t, owner, course.ID, "One")
	lesson := env.createLesson(t, owner, sec.ID, "Homework", model.LessonDevoir).Lesson
	env.enroll(t, learner.ID, course.ID)

	sub, err := env.SubmissionSvc.SubmitAssignment(ctx, learnerActor, lesson.ID, SubmitAssignmentReq{Content: json.RawMessage(`{"text":"v1"}`)})
	require.NoError(t, err)

	mine, err := env.SubmissionSvc.GetMySubmissions(ctx, learnerActor)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Homework", mine[0].LessonTitle)
	assert.Equal(t, "Go 101", mine[0].CourseTitle)

	forOwner, err := env.SubmissionSvc.GetInstructorSubmissions(ctx, owner)
	require.NoError(t, err)
	require.Len(t, forOwner, 1)
	assert.Equal(t, "Lea Learner", forOwner[0].StudentName)

	forOther, err := env.SubmissionSvc.GetInstructorSubmissions(ctx, otherTeacher)
	require.NoError(t, err)
	assert.Empty(t, forOther)

	_, err = env.SubmissionSvc.GetSubmissionDetails(ctx, learnerActor, sub.ID)
	assert.NoError(t, err)
	_, err = env.SubmissionSvc.GetSubmissionDetails(ctx, owner, sub.ID)
	assert.NoError(t, err)
	_, err = env.SubmissionSvc.GetSubmissionDetails(ctx, peer, sub.ID)
	assert.True(t, util.IsKind(err, util.KindForbidden))
}
