package errors

import sterrors "errors"

var (
	ErrEngineRequired     = sterrors.New("actionflow: engine is required")
	ErrMatcherRequired    = sterrors.New("actionflow: logic definition requires a matcher")
	ErrNameRequired       = sterrors.New("actionflow: logic definition requires a name")
	ErrDuplicateName      = sterrors.New("actionflow: logic definition name already registered")
	ErrConflictingLimits  = sterrors.New("actionflow: at most one limit mode may be set")
	ErrNonPositiveWindow  = sterrors.New("actionflow: limit window must be positive")
	ErrDecisionSettled    = sterrors.New("actionflow: allow/reject already invoked for this execution")
	ErrAlreadyForwarded   = sterrors.New("actionflow: next already invoked for this execution")
	ErrActionTypeRequired = sterrors.New("actionflow: action type is required")
	ErrConfigRequired     = sterrors.New("actionflow: config is required")
	ErrLoggerRequired     = sterrors.New("actionflow: logger is required")
	ErrTopicRequired      = sterrors.New("actionflow: actions topic is required")
	ErrHandlersRequired   = sterrors.New("actionflow: logic definition names unknown handlers")
)
