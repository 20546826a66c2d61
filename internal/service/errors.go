package service

import "errors"

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("service: not found")
	// ErrOwnerMismatch indicates a subscription request for somebody
	// else's key.
	ErrOwnerMismatch = errors.New("service: owner mismatch")
	// ErrLinkExpired indicates a legacy-format link used for a key created
	// after the cutover.
	ErrLinkExpired = errors.New("service: legacy link expired")
	// ErrNoServersAvailable indicates every candidate server failed its
	// availability probe.
	ErrNoServersAvailable = errors.New("service: no servers available")
	// ErrNoUpstreams indicates no subscription URL could be resolved for a
	// key's server reference.
	ErrNoUpstreams = errors.New("service: no upstream subscription URLs")
	// ErrProvisionFailed indicates a credential could not be created on the
	// target panel.
	ErrProvisionFailed = errors.New("service: provisioning failed")
	// ErrCouponNotFound indicates an unknown or exhausted coupon code.
	ErrCouponNotFound = errors.New("service: coupon not found")
	// ErrCouponAlreadyUsed indicates the user already activated the code.
	ErrCouponAlreadyUsed = errors.New("service: coupon already used")
)
