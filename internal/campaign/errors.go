package campaign

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyRunning is returned when a run is requested while another run
// holds the single-flight flag.
var ErrAlreadyRunning = errors.New("campaign: run already in progress")

// AcquisitionError reports that one offer source failed entirely. It is
// non-fatal: the run continues with the remaining sources' results.
type AcquisitionError struct {
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition from %s failed: %v", e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// ConnectionError reports that the delivery channel could not be brought up.
// Fatal to the current run.
type ConnectionError struct {
	Channel string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Channel, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ReadinessTimeout reports that the channel did not become ready within the
// allowed window. Fatal to the current run.
type ReadinessTimeout struct {
	Channel string
	Timeout time.Duration
}

func (e *ReadinessTimeout) Error() string {
	return fmt.Sprintf("%s not ready after %s", e.Channel, e.Timeout)
}

// DestinationNotFound reports that the configured destination could not be
// resolved on the channel. Fatal to the current run.
type DestinationNotFound struct {
	Name string
	Err  error
}

func (e *DestinationNotFound) Error() string {
	return fmt.Sprintf("destination %q not found: %v", e.Name, e.Err)
}

func (e *DestinationNotFound) Unwrap() error { return e.Err }

// DeliveryError reports that a single offer could not be delivered. The run
// records a failure outcome and proceeds to the next offer.
type DeliveryError struct {
	OfferTitle string
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %q: %v", e.OfferTitle, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// PersistenceError reports that a history record could not be written. Loss of
// an audit record never aborts a delivery; the runner logs it and continues.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist delivery attempt: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
