package domain

import (
	"errors"
	"fmt"
)

// Unknown job or resource id.
type NotFoundError struct {
	s string
}

func (e NotFoundError) Error() string {
	return e.s
}

func NewNotFoundError(msg string, args ...interface{}) error {
	return NotFoundError{s: fmt.Sprintf(msg, args...)}
}

// A state change the job state machine does not allow. The job is left unchanged.
type IllegalTransitionError struct {
	From JobState
	To   JobState
	s    string
}

func (e IllegalTransitionError) Error() string {
	return e.s
}

func NewIllegalTransitionError(jobID string, from, to JobState) error {
	return IllegalTransitionError{
		From: from,
		To:   to,
		s:    fmt.Sprintf("job %s cannot go from %s to %s", jobID, from, to),
	}
}

// Resource already locked by another job. A scheduling signal rather than a failure.
type BusyError struct {
	s string
}

func (e BusyError) Error() string {
	return e.s
}

func NewBusyError(msg string, args ...interface{}) error {
	return BusyError{s: fmt.Sprintf(msg, args...)}
}

// Ownership conflict on a resource.
type AlreadyOwnedError struct {
	s string
}

func (e AlreadyOwnedError) Error() string {
	return e.s
}

func NewAlreadyOwnedError(msg string, args ...interface{}) error {
	return AlreadyOwnedError{s: fmt.Sprintf(msg, args...)}
}

// An upstream job ended in Failed, so the dependent job can never run.
type DependencyFailedError struct {
	Upstream string
	s        string
}

func (e DependencyFailedError) Error() string {
	return e.s
}

func NewDependencyFailedError(upstream string, msg string, args ...interface{}) error {
	return DependencyFailedError{Upstream: upstream, s: fmt.Sprintf(msg, args...)}
}

// The operation is not allowed in the job's current state.
type InvalidStateError struct {
	s string
}

func (e InvalidStateError) Error() string {
	return e.s
}

func NewInvalidStateError(msg string, args ...interface{}) error {
	return InvalidStateError{s: fmt.Sprintf(msg, args...)}
}

// Malformed submission.
type InvalidRequestError struct {
	s string
}

func (e InvalidRequestError) Error() string {
	return e.s
}

func NewInvalidRequestError(msg string, args ...interface{}) error {
	return InvalidRequestError{s: fmt.Sprintf(msg, args...)}
}

func IsNotFound(err error) bool {
	var e NotFoundError
	return errors.As(err, &e)
}

func IsIllegalTransition(err error) bool {
	var e IllegalTransitionError
	return errors.As(err, &e)
}

func IsBusy(err error) bool {
	var e BusyError
	return errors.As(err, &e)
}

func IsAlreadyOwned(err error) bool {
	var e AlreadyOwnedError
	return errors.As(err, &e)
}

func IsDependencyFailed(err error) bool {
	var e DependencyFailedError
	return errors.As(err, &e)
}

func IsInvalidState(err error) bool {
	var e InvalidStateError
	return errors.As(err, &e)
}

func IsInvalidRequest(err error) bool {
	var e InvalidRequestError
	return errors.As(err, &e)
}
