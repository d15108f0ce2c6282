package service

import (
	"context"
	"encoding/json"
	"modula_lms_backend/internal/model"
	"modula_lms_backend/internal/repository"
	"modula_lms_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndEditCourse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	_, other := env.createUser(t, "Bob Teacher", model.Instructor)

	_, err := env.CourseSvc.CreateCourse(ctx, owner, CourseReq{Title: ptr("  ")})
	assert.True(t, util.IsKind(err, util.KindValidation))
	_, err = env.CourseSvc.CreateCourse(ctx, owner, CourseReq{Title: ptr("Go"), Price: ptr(-1.0)})
	assert.True(t, util.IsKind(err, util.KindValidation))

	course, err := env.CourseSvc.CreateCourse(ctx, owner, CourseReq{Title: ptr(" Go 101 "), Price: ptr(49.999)})
	require.NoError(t, err)
	assert.Equal(t, "Go 101", course.Title)
	assert.Equal(t, "Ada Teacher", course.Author)
	assert.Equal(t, 50.0, course.Price)

	// 未提供的字段保持原值
	edited, err := env.CourseSvc.EditCourse(ctx, owner, course.ID, CourseReq{Description: ptr("basics")})
	require.NoError(t, err)
	assert.Equal(t, "Go 101", edited.Title)
	assert.Equal(t, "basics", edited.Description)

	_, err = env.CourseSvc.EditCourse(ctx, other, course.ID, CourseReq{Title: ptr("Mine")})
	assert.True(t, util.IsKind(err, util.KindForbidden))
	_, err = env.CourseSvc.EditCourse(ctx, owner, 9999, CourseReq{Title: ptr("x")})
	assert.True(t, util.IsKind(err, util.KindNotFound))

	details, err := env.CourseSvc.GetCourseDetails(ctx, course.ID)
	require.NoError(t, err)
	require.NotNil(t, details.Instructor)
	assert.Equal(t, owner.UserID, details.Instructor.ID)
}

func TestDeleteCourse_RemovesTree(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	learner, learnerActor := env.createUser(t, "Lea Learner", model.Learner)
	course := env.createCourse(t, owner, "Go 101", 0)
	sec := env.createSection(t, owner, course.ID, "One")
	env.createLesson(t, owner, sec.ID, "Quiz", model.LessonQuiz)
	hw := env.createLesson(t, owner, sec.ID, "Homework", model.LessonDevoir).Lesson
	env.enroll(t, learner.ID, course.ID)
	_, err := env.SubmissionSvc.SubmitAssignment(ctx, learnerActor, hw.ID, SubmitAssignmentReq{Content: json.RawMessage(`{"text":"v1"}`)})
	require.NoError(t, err)

	_, stranger := env.createUser(t, "Bob Teacher", model.Instructor)
	assert.True(t, util.IsKind(env.CourseSvc.DeleteCourse(ctx, stranger, course.ID), util.KindForbidden))

	require.NoError(t, env.CourseSvc.DeleteCourse(ctx, owner, course.ID))
	assert.True(t, util.IsKind(env.CourseSvc.DeleteCourse(ctx, owner, course.ID), util.KindNotFound))

	for _, m := range []interface{}{&model.Section{}, &model.Lesson{}, &model.Quiz{}, &model.Submission{}, &model.Enrollment{}, &model.UserLessonCompletion{}} {
		var count int64
		require.NoError(t, env.DB.Model(m).Count(&count).Error)
		assert.Zero(t, count, "%T", m)
	}
}

func TestGetMyCourses(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, owner := env.createUser(t, "Ada Teacher", model.Instructor)
	learner, learnerActor := env.createUser(t, "Lea Learner", model.Learner)
	course := env.createCourse(t, owner, "Go 101", 0)
	env.createCourse(t, owner, "Rust 101", 0)
	sec := env.createSection(t, owner, course.ID, "One")
	text := env.createLesson(t, owner, sec.ID, "Intro", model.LessonText).Lesson
	hw := env.createLesson(t, owner, sec.ID, "Homework", model.LessonDevoir).Lesson
	env.createLesson(t, owner, sec.ID, "Exam", model.LessonEvaluation)
	env.createLesson(t, owner, sec.ID, "Another homework", model.LessonDevoir)
	env.enroll(t, learner.ID, course.ID)

	owned, err := env.CourseSvc.GetMyCourses(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, owned.([]model.Course), 2)

	_, err = env.ContentSvc.MarkLessonCompleted(ctx, learnerActor, text.ID)
	require.NoError(t, err)
	_, err = env.SubmissionSvc.SubmitAssignment(ctx, learnerActor, hw.ID, SubmitAssignmentReq{Content: json.RawMessage(`{"text":"done"}`)})
	require.NoError(t, err)

	res, err := env.CourseSvc.GetMyCourses(ctx, learnerActor)
	require.NoError(t, err)
	rows := res.([]repository.LearnerCourseRow)
	require.Len(t, rows, 1)
	assert.Equal(t, course.ID, rows[0].ID)
	assert.Equal(t, int64(4), rows[0].TotalLessons)
	assert.Equal(t, int64(2), rows[0].CompletedLessons)
	assert.Equal(t, int64(1), rows[0].PendingAssignments)
	assert.Equal(t, int64(1), rows[0].PendingEvaluations)

	_, err = env.CourseSvc.GetMyCourses(ctx, Actor{UserID: learner.ID, Role: "guest"})
	assert.True(t, util.IsKind(err, util.KindValidation))
}
