package pkg

import (
	"errors"

	"github.com/bassosimone/errclass"
)

// Error class labels for the driver model sentinels.
const (
	EResourceExhausted  = "ERESEXHAUSTED"
	EDeviceNotReady     = "EDEVNOTREADY"
	ECancelled          = "ECANCELLED"
	EContractViolation  = "ECONTRACT"
	ENoDevice           = "ENODEV"
	EInvalidState       = "EINVALSTATE"
	EDeviceBusy         = "EBUSY"
	EBufferOverflow     = "EOVERFLOW"
	EInvalidBufferState = "EBUFSTATE"
	ENoMatch            = "ENOMATCH"
	EDoubleFree         = "EDOUBLEFREE"
	ELeak               = "ELEAK"
)

var classes = []struct {
	err   error
	label string
}{
	{ErrContractViolation, EContractViolation},
	{ErrResourceExhausted, EResourceExhausted},
	{ErrDeviceNotReady, EDeviceNotReady},
	{ErrCancelled, ECancelled},
	{ErrNoDevice, ENoDevice},
	{ErrInvalidState, EInvalidState},
	{ErrDeviceBusy, EDeviceBusy},
	{ErrBufferOverflow, EBufferOverflow},
	{ErrInvalidBufferState, EInvalidBufferState},
	{ErrNoMatch, ENoMatch},
	{ErrDoubleFree, EDoubleFree},
	{ErrLeak, ELeak},
}

// ClassifyError maps err to a short label for structured logs.
//
// Driver model sentinels get their own labels; anything else (context
// errors, system call failures from the mmap allocator) is classified
// by [errclass.New]. A nil error yields the empty string.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.label
		}
	}
	return errclass.New(err)
}
