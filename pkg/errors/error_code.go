package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidValueFormat   ErrorCode = 102
	ErrCodeMissingParameter     ErrorCode = 103

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound  ErrorCode = 200
	ErrCodeWriterFailed  ErrorCode = 201
	ErrCodeSessionFailed ErrorCode = 202

	// Smart order errors (300-399)
	ErrCodeAlreadyInitialized ErrorCode = 300
	ErrCodeNotInitialized     ErrorCode = 301

	// Target errors (400-499)
	ErrCodeTargetTerminal    ErrorCode = 400
	ErrCodeInvalidTransition ErrorCode = 401

	// Trading errors (500-599)
	ErrCodeOrderWouldExecuteImmediately ErrorCode = 500
	ErrCodeExchangeRejected             ErrorCode = 501
	ErrCodeCancelFailed                 ErrorCode = 502
	ErrCodeOrderBelowMinimum            ErrorCode = 503

	// Order handler errors (600-699)
	ErrCodeHandlerState        ErrorCode = 600
	ErrCodeSubscriptionFailed  ErrorCode = 601
	ErrCodeNoTrades            ErrorCode = 602
	ErrCodeExchangeNotAttached ErrorCode = 603
	ErrCodeCallbackFailed      ErrorCode = 604
)
