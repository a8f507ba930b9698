package app

import "errors"

// ErrNotOwner rejects access by a subject that does not own the session.
var ErrNotOwner = errors.New("session belongs to another subject")

// ErrEmptyTopic rejects question generation without a topic.
var ErrEmptyTopic = errors.New("topic must not be empty")

// ErrEmptyFeedback rejects feedback submission without content.
var ErrEmptyFeedback = errors.New("feedback must not be empty")
