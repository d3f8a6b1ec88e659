package services

import (
	"errors"
	"testing"
	"time"

	"quizdeck/models"

	"gorm.io/gorm"
)

func joinGuest(t *testing.T, f *fixture, name string) (*PlayService, *JoinResult) {
	t.Helper()
	play := NewPlayService(f.db)
	result, err := play.Join(f.session.ID, Identity{}, name)
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	return play, result
}

func TestJoinIssuesGuestToken(t *testing.T) {
	f := newFixture(t)
	play, result := joinGuest(t, f, "Alice")

	if result.GuestID == "" {
		t.Fatal("expected a guest token to be issued")
	}
	if result.AttemptID == 0 || result.ParticipantID == 0 {
		t.Fatalf("expected attempt and participant, got %+v", result)
	}
	if result.Resumed {
		t.Fatal("first join should not be a resume")
	}

	// Same token again resumes the in-progress attempt.
	again, err := play.Join(f.session.ID, Identity{GuestID: result.GuestID}, "Alice")
	if err != nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	if !again.Resumed {
		t.Fatal("rejoin should resume")
	}
	if again.AttemptID != result.AttemptID || again.ParticipantID != result.ParticipantID {
		t.Fatalf("rejoin created new rows: %+v vs %+v", again, result)
	}
}

func TestJoinGuestRequiresName(t *testing.T) {
	f := newFixture(t)
	play := NewPlayService(f.db)

	if _, err := play.Join(f.session.ID, Identity{}, "   "); !errors.Is(err, models.ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
}

func TestJoinAsUser(t *testing.T) {
	f := newFixture(t)
	player := createTestUser(t, f.db, "player@example.com")
	play := NewPlayService(f.db)

	// Account holders can join without a display name.
	result, err := play.Join(f.session.ID, Identity{UserID: &player.ID}, "")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if result.GuestID != "" {
		t.Fatal("user join should not issue a guest token")
	}

	again, err := play.Join(f.session.ID, Identity{UserID: &player.ID}, "")
	if err != nil {
		t.Fatalf("rejoin failed: %v", err)
	}
	if !again.Resumed || again.ParticipantID != result.ParticipantID {
		t.Fatalf("expected resume for same user, got %+v", again)
	}
}

func TestJoinResumesWinnerAfterLostInsertRace(t *testing.T) {
	f := newFixture(t)
	play := NewPlayService(f.db)

	guestID := "raced-guest"
	var winner models.GameAttempt

	// A competing join with the same token commits its participant and
	// attempt just before ours writes, so our insert loses on the
	// (session, guest) unique index and must resume the winner's attempt.
	raced := false
	err := f.db.Callback().Create().Before("gorm:create").Register("competing_join", func(tx *gorm.DB) {
		if raced {
			return
		}
		if _, ok := tx.Statement.Dest.(*models.Participant); !ok {
			return
		}
		raced = true

		competitor := models.Participant{
			QuizSessionID: f.session.ID,
			GuestID:       &guestID,
			Name:          "Alice",
		}
		if err := f.db.Create(&competitor).Error; err != nil {
			t.Errorf("competing participant insert: %v", err)
			return
		}
		winner = models.GameAttempt{
			QuizSessionID: f.session.ID,
			ParticipantID: competitor.ID,
			AttemptNumber: 1,
			Status:        models.AttemptStatusInProgress,
			StartedAt:     time.Now(),
		}
		if err := f.db.Create(&winner).Error; err != nil {
			t.Errorf("competing attempt insert: %v", err)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	result, err := play.Join(f.session.ID, Identity{GuestID: guestID}, "Alice")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if !raced {
		t.Fatal("competing join never ran")
	}
	if !result.Resumed {
		t.Fatal("losing join should resume, not open a second attempt")
	}
	if result.AttemptID != winner.ID {
		t.Fatalf("resumed attempt %d, want winner's %d", result.AttemptID, winner.ID)
	}

	var open int64
	err = f.db.Model(&models.GameAttempt{}).
		Where("participant_id = ? AND status = ?", result.ParticipantID, models.AttemptStatusInProgress).
		Count(&open).Error
	if err != nil {
		t.Fatalf("count attempts: %v", err)
	}
	if open != 1 {
		t.Fatalf("got %d in-progress attempts, want 1", open)
	}
}

func TestJoinRequiresActiveSession(t *testing.T) {
	f := newFixture(t)
	sessions := NewSessionService(f.db)
	if _, err := sessions.ToggleStatus(f.session.ID, f.host.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	play := NewPlayService(f.db)
	if _, err := play.Join(f.session.ID, Identity{}, "Alice"); !errors.Is(err, models.ErrSessionNotActive) {
		t.Fatalf("expected ErrSessionNotActive, got %v", err)
	}
}

func TestJoinExpiredSession(t *testing.T) {
	f := newFixture(t)
	past := time.Now().Add(-time.Hour)
	if err := f.db.Model(f.session).Update("expires_at", past).Error; err != nil {
		t.Fatalf("age session: %v", err)
	}

	play := NewPlayService(f.db)
	if _, err := play.Join(f.session.ID, Identity{}, "Alice"); !errors.Is(err, models.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	// The expiry check also persists the flip.
	var session models.QuizSession
	if err := f.db.First(&session, f.session.ID).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if session.Status != models.SessionStatusExpired {
		t.Fatalf("expected expired status, got %s", session.Status)
	}
}

func TestSubmitAnswerScoring(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")
	id := Identity{GuestID: joined.GuestID}

	q1 := &f.questions[0]
	result, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &SubmitAnswerRequest{
		QuestionID:       q1.ID,
		SelectedOptionID: uintPtr(correctOption(t, q1).ID),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !result.Correct || result.PointsAwarded != q1.Points {
		t.Fatalf("expected %d points for correct answer, got %+v", q1.Points, result)
	}
	if result.Completed {
		t.Fatal("attempt should not be complete after one answer")
	}
	if result.NextQuestionIndex != 1 {
		t.Fatalf("expected next index 1, got %d", result.NextQuestionIndex)
	}

	q2 := &f.questions[1]
	result, err = play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &SubmitAnswerRequest{
		QuestionID:       q2.ID,
		SelectedOptionID: uintPtr(wrongOption(t, q2).ID),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.Correct || result.PointsAwarded != 0 {
		t.Fatalf("wrong answer should award nothing, got %+v", result)
	}
}

func TestSubmitAnswerOnlyOnce(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")
	id := Identity{GuestID: joined.GuestID}

	q1 := &f.questions[0]
	req := &SubmitAnswerRequest{QuestionID: q1.ID, SelectedOptionID: uintPtr(correctOption(t, q1).ID)}
	if _, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, req); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// Second answer for the same question is rejected, even with a
	// different option.
	req = &SubmitAnswerRequest{QuestionID: q1.ID, SelectedOptionID: uintPtr(wrongOption(t, q1).ID)}
	if _, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, req); !errors.Is(err, models.ErrAlreadyAnswered) {
		t.Fatalf("expected ErrAlreadyAnswered, got %v", err)
	}
}

func TestSubmitAnswerSelectionValidation(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")
	id := Identity{GuestID: joined.GuestID}

	single := &f.questions[0]
	multi := &f.questions[2]

	cases := []struct {
		name string
		req  SubmitAnswerRequest
	}{
		{"single with id list", SubmitAnswerRequest{QuestionID: single.ID, SelectedOptionID: uintPtr(single.Options[0].ID), SelectedOptionIDs: []uint{single.Options[1].ID}}},
		{"single without selection", SubmitAnswerRequest{QuestionID: single.ID}},
		{"single with foreign option", SubmitAnswerRequest{QuestionID: single.ID, SelectedOptionID: uintPtr(multi.Options[0].ID)}},
		{"multi with single id", SubmitAnswerRequest{QuestionID: multi.ID, SelectedOptionID: uintPtr(multi.Options[0].ID)}},
		{"multi with foreign option", SubmitAnswerRequest{QuestionID: multi.ID, SelectedOptionIDs: []uint{single.Options[0].ID}}},
		{"unknown question", SubmitAnswerRequest{QuestionID: 99999, SelectedOptionID: uintPtr(single.Options[0].ID)}},
	}
	for _, tc := range cases {
		req := tc.req
		if _, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &req); !errors.Is(err, models.ErrInvalidSelection) {
			t.Fatalf("%s: expected ErrInvalidSelection, got %v", tc.name, err)
		}
	}
}

func TestMultiSelectExactMatch(t *testing.T) {
	f := newFixture(t)
	multi := &f.questions[2]
	correct := correctOptionIDs(multi)
	if len(correct) != 2 {
		t.Fatalf("fixture expects 2 correct options, got %d", len(correct))
	}
	wrong := wrongOption(t, multi).ID

	cases := []struct {
		name     string
		selected []uint
		want     bool
	}{
		{"exact set", correct, true},
		{"exact set reordered", []uint{correct[1], correct[0]}, true},
		{"duplicates collapse", []uint{correct[0], correct[0], correct[1]}, true},
		{"subset", correct[:1], false},
		{"superset", append([]uint{wrong}, correct...), false},
		{"wrong only", []uint{wrong}, false},
		{"empty set", nil, false},
	}
	for _, tc := range cases {
		// Fresh participant per case: one answer per question.
		play, joined := joinGuest(t, f, "Player "+tc.name)
		result, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, Identity{GuestID: joined.GuestID}, &SubmitAnswerRequest{
			QuestionID:        multi.ID,
			SelectedOptionIDs: tc.selected,
		})
		if err != nil {
			t.Fatalf("%s: submit failed: %v", tc.name, err)
		}
		if result.Correct != tc.want {
			t.Fatalf("%s: expected correct=%v, got %+v", tc.name, tc.want, result)
		}
	}
}

func TestAttemptCompletesAfterLastAnswer(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")
	id := Identity{GuestID: joined.GuestID}

	var last *SubmitAnswerResult
	for i := range f.questions {
		q := &f.questions[i]
		req := &SubmitAnswerRequest{QuestionID: q.ID}
		if models.IsMultiSelect(q.Type) {
			req.SelectedOptionIDs = correctOptionIDs(q)
		} else {
			req.SelectedOptionID = uintPtr(correctOption(t, q).ID)
		}
		result, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, req)
		if err != nil {
			t.Fatalf("submit q%d failed: %v", i, err)
		}
		last = result
	}

	if !last.Completed {
		t.Fatal("expected attempt to complete after last answer")
	}
	if last.RedirectTo == "" {
		t.Fatal("expected redirect to results")
	}

	var attempt models.GameAttempt
	if err := f.db.First(&attempt, joined.AttemptID).Error; err != nil {
		t.Fatalf("reload attempt: %v", err)
	}
	wantScore := 0
	for _, q := range f.questions {
		wantScore += q.Points
	}
	if attempt.Status != models.AttemptStatusCompleted || attempt.Score != wantScore {
		t.Fatalf("expected completed attempt with score %d, got status=%s score=%d", wantScore, attempt.Status, attempt.Score)
	}
	if attempt.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}

	// A completed attempt takes no more answers.
	if _, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &SubmitAnswerRequest{
		QuestionID:       f.questions[0].ID,
		SelectedOptionID: uintPtr(f.questions[0].Options[0].ID),
	}); !errors.Is(err, models.ErrAttemptCompleted) {
		t.Fatalf("expected ErrAttemptCompleted, got %v", err)
	}
}

func TestNextQuestionIndexWrapsAround(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")
	id := Identity{GuestID: joined.GuestID}

	// Answer the middle question first: the hint moves forward.
	q2 := &f.questions[1]
	result, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &SubmitAnswerRequest{
		QuestionID:       q2.ID,
		SelectedOptionID: uintPtr(correctOption(t, q2).ID),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.NextQuestionIndex != 2 {
		t.Fatalf("expected next index 2, got %d", result.NextQuestionIndex)
	}

	// Answer the last question: the hint wraps to the first.
	q3 := &f.questions[2]
	result, err = play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &SubmitAnswerRequest{
		QuestionID:        q3.ID,
		SelectedOptionIDs: correctOptionIDs(q3),
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.NextQuestionIndex != 0 {
		t.Fatalf("expected wrap to index 0, got %d", result.NextQuestionIndex)
	}
}

func TestCompleteAttemptWithUnansweredQuestions(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")
	id := Identity{GuestID: joined.GuestID}

	q1 := &f.questions[0]
	if _, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &SubmitAnswerRequest{
		QuestionID:       q1.ID,
		SelectedOptionID: uintPtr(correctOption(t, q1).ID),
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	result, err := play.CompleteAttempt(f.session.ID, joined.AttemptID, id)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if result.Score != q1.Points {
		t.Fatalf("expected score %d, got %d", q1.Points, result.Score)
	}

	if _, err := play.CompleteAttempt(f.session.ID, joined.AttemptID, id); !errors.Is(err, models.ErrAttemptCompleted) {
		t.Fatalf("expected ErrAttemptCompleted on double complete, got %v", err)
	}
}

func TestReattemptNumbering(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")
	id := Identity{GuestID: joined.GuestID}

	// Blocked while the first attempt is still running.
	if _, err := play.Reattempt(f.session.ID, id); !errors.Is(err, models.ErrAttemptInProgress) {
		t.Fatalf("expected ErrAttemptInProgress, got %v", err)
	}

	if _, err := play.CompleteAttempt(f.session.ID, joined.AttemptID, id); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	second, err := play.Reattempt(f.session.ID, id)
	if err != nil {
		t.Fatalf("reattempt failed: %v", err)
	}
	if second.AttemptNumber != 2 {
		t.Fatalf("expected attempt number 2, got %d", second.AttemptNumber)
	}

	if _, err := play.CompleteAttempt(f.session.ID, second.ID, id); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	third, err := play.Reattempt(f.session.ID, id)
	if err != nil {
		t.Fatalf("reattempt failed: %v", err)
	}
	if third.AttemptNumber != 3 {
		t.Fatalf("expected attempt number 3, got %d", third.AttemptNumber)
	}
}

func TestReattemptRequiresJoin(t *testing.T) {
	f := newFixture(t)
	play := NewPlayService(f.db)

	if _, err := play.Reattempt(f.session.ID, Identity{GuestID: "nobody"}); !errors.Is(err, models.ErrMustJoinFirst) {
		t.Fatalf("expected ErrMustJoinFirst, got %v", err)
	}
}

func TestAttemptOwnership(t *testing.T) {
	f := newFixture(t)
	play, alice := joinGuest(t, f, "Alice")
	_, bob := joinGuest(t, f, "Bob")

	// Bob cannot read or answer Alice's attempt.
	if _, err := play.GetAttemptState(f.session.ID, alice.AttemptID, Identity{GuestID: bob.GuestID}); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	q1 := &f.questions[0]
	if _, err := play.SubmitAnswer(f.session.ID, alice.AttemptID, Identity{GuestID: bob.GuestID}, &SubmitAnswerRequest{
		QuestionID:       q1.ID,
		SelectedOptionID: uintPtr(q1.Options[0].ID),
	}); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := play.GetAttemptState(f.session.ID, alice.AttemptID, Identity{}); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for anonymous, got %v", err)
	}
}

func TestGetAttemptState(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")
	id := Identity{GuestID: joined.GuestID}

	state, err := play.GetAttemptState(f.session.ID, joined.AttemptID, id)
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if state.TotalQuestions != 3 || state.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected initial state: %+v", state)
	}
	for _, q := range state.Questions {
		if q.Answered {
			t.Fatalf("question %d marked answered on a fresh attempt", q.ID)
		}
	}

	q1 := &f.questions[0]
	if _, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &SubmitAnswerRequest{
		QuestionID:       q1.ID,
		SelectedOptionID: uintPtr(correctOption(t, q1).ID),
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	state, err = play.GetAttemptState(f.session.ID, joined.AttemptID, id)
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if !state.Questions[0].Answered || state.CurrentQuestionIndex != 1 {
		t.Fatalf("expected progress past question 0: %+v", state)
	}

	if _, err := play.CompleteAttempt(f.session.ID, joined.AttemptID, id); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	state, err = play.GetAttemptState(f.session.ID, joined.AttemptID, id)
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	if state.RedirectTo == "" {
		t.Fatal("completed attempt should redirect to results")
	}
}

func TestGetResults(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")
	id := Identity{GuestID: joined.GuestID}

	// Correct, wrong, skipped.
	q1, q2 := &f.questions[0], &f.questions[1]
	if _, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &SubmitAnswerRequest{
		QuestionID:       q1.ID,
		SelectedOptionID: uintPtr(correctOption(t, q1).ID),
		TimeTakenMs:      4000,
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := play.SubmitAnswer(f.session.ID, joined.AttemptID, id, &SubmitAnswerRequest{
		QuestionID:       q2.ID,
		SelectedOptionID: uintPtr(wrongOption(t, q2).ID),
		TimeTakenMs:      2500,
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := play.CompleteAttempt(f.session.ID, joined.AttemptID, id); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	results, err := play.GetResults(f.session.ID, joined.AttemptID, id)
	if err != nil {
		t.Fatalf("results failed: %v", err)
	}

	s := results.Summary
	if s.TotalQuestions != 3 || s.AnsweredQuestions != 2 || s.CorrectAnswers != 1 || s.IncorrectAnswers != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Score != q1.Points {
		t.Fatalf("expected score %d, got %d", q1.Points, s.Score)
	}
	if s.TotalPossiblePoints != 400 || s.Percentage != 25 {
		t.Fatalf("expected 100/400 = 25%%, got %+v", s)
	}
	if s.TotalTimeTakenMs != 6500 {
		t.Fatalf("expected 6500ms total, got %d", s.TotalTimeTakenMs)
	}

	if !results.Questions[0].Correct || results.Questions[1].Correct {
		t.Fatalf("unexpected per-question correctness: %+v", results.Questions)
	}
	if results.Questions[2].Answered {
		t.Fatal("skipped question reported as answered")
	}
	if got := results.Questions[0].SelectedOptions; len(got) != 1 || got[0] != correctOption(t, q1).ID {
		t.Fatalf("unexpected selected options: %v", got)
	}
	if len(results.Questions[2].CorrectOptions) != 2 {
		t.Fatalf("expected 2 correct options on the multi select, got %v", results.Questions[2].CorrectOptions)
	}
}

func TestPlayOptionsHideCorrectFlags(t *testing.T) {
	f := newFixture(t)
	play, joined := joinGuest(t, f, "Alice")

	state, err := play.GetAttemptState(f.session.ID, joined.AttemptID, Identity{GuestID: joined.GuestID})
	if err != nil {
		t.Fatalf("state failed: %v", err)
	}
	// PlayOption carries no Correct field; make sure the option payload
	// still lines up with the snapshot.
	if len(state.Questions[0].Options) != 2 {
		t.Fatalf("expected 2 options, got %d", len(state.Questions[0].Options))
	}
	if state.Questions[0].Options[0].Content == "" {
		t.Fatal("option content missing")
	}
}
