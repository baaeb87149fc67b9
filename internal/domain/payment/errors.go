package payment

import "errors"

var (
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrNotPayable        = errors.New("appointment is not awaiting payment")
	ErrAlreadyPaid       = errors.New("appointment is already paid")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrStaleWebhook      = errors.New("webhook timestamp outside tolerance")
	ErrDuplicateEvent    = errors.New("webhook event already processed")
	ErrProcessorDisabled = errors.New("payment processor is not configured")
	ErrProcessorFailure  = errors.New("payment processor request failed")
	ErrRefundNotPossible = errors.New("payment cannot be refunded")
)
