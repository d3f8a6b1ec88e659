package models

import "errors"

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrForbidden is returned when the caller does not own the target resource.
	ErrForbidden = errors.New("access denied")
	// ErrEmailTaken is returned when registering with an email already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrQuizNotPublished is returned when starting a session for an unpublished quiz.
	ErrQuizNotPublished = errors.New("quiz must be published to start a session")
	// ErrQuizEmpty is returned when starting a session for a quiz with no questions.
	ErrQuizEmpty = errors.New("quiz has no questions")
	// ErrInvalidTransition is returned for illegal quiz status transitions.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrCodeExhausted is returned when session code generation runs out of
	// retries. Retryable by the caller.
	ErrCodeExhausted = errors.New("could not allocate a unique session code")

	// ErrSessionNotActive is returned when joining or playing a session that
	// is not accepting participants.
	ErrSessionNotActive = errors.New("session is not active")
	// ErrSessionExpired is returned when the session's expiry has passed.
	ErrSessionExpired = errors.New("session has expired")

	// ErrNameRequired is returned when a guest joins without a display name.
	ErrNameRequired = errors.New("name is required for guest players")
	// ErrNameTooLong is returned when a display name exceeds 100 characters.
	ErrNameTooLong = errors.New("name must be 100 characters or less")
	// ErrMustJoinFirst is returned when re-attempting without a participant record.
	ErrMustJoinFirst = errors.New("you must join the session first")
	// ErrAttemptInProgress is returned when re-attempting while an attempt is
	// still in progress; the caller should resume it instead.
	ErrAttemptInProgress = errors.New("finish your current attempt first")

	// ErrAttemptCompleted is returned when submitting to a finished attempt.
	ErrAttemptCompleted = errors.New("cannot submit for a completed attempt")
	// ErrAlreadyAnswered is returned on a second submission for the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrInvalidSelection is returned when the selection does not match the
	// question's type or references options outside the question.
	ErrInvalidSelection = errors.New("invalid option selection")
)
