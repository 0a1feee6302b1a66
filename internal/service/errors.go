package service

import "errors"

var (
	ErrSelfTransfer      = errors.New("source and destination card are the same")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrCardNotActive     = errors.New("card is not active")
	ErrAlreadySubscribed = errors.New("card already has an active subscription")
)
