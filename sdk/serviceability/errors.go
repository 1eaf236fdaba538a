package serviceability

import "fmt"

// Code is a stable, numbered error discriminant. Callers match on Code via
// errors.As rather than string comparison. The reconciler does not branch
// on Code: it logs every failed action alike and retries it next poll.
type Code uint32

const (
	CodeInvalidStatus Code = iota + 1
	CodeNotAllowed
	CodeInvalidOwner
	CodeInvalidPDA
	CodeInvalidAccountType
	CodeInvalidSeeds
	CodeAccountAlreadyInitialized
	CodeAccountDoesNotExist
	CodeAllocatorExhausted
	CodeAllocatorConflict
	CodeInvalidPaymentStatus
	CodeAdministratorAlreadyExists
	CodeTargetsNotEmpty
	CodeParentDeviceAlreadyExists
	CodeParentDeviceNotFound
	CodeMaxParentDevicesReached
	CodeInvalidArgument
	// CodeInvalidAccountOwner replaces what the original Rust program
	// expressed as an assert_eq! panic on owner identity. Open Question 2
	// in SPEC_FULL.md §11 resolves that panic into this ordinary error.
	CodeInvalidAccountOwner
)

var codeNames = map[Code]string{
	CodeInvalidStatus:              "invalid_status",
	CodeNotAllowed:                 "not_allowed",
	CodeInvalidOwner:               "invalid_owner",
	CodeInvalidPDA:                 "invalid_pda",
	CodeInvalidAccountType:         "invalid_account_type",
	CodeInvalidSeeds:               "invalid_seeds",
	CodeAccountAlreadyInitialized:  "account_already_initialized",
	CodeAccountDoesNotExist:        "account_does_not_exist",
	CodeAllocatorExhausted:         "allocator_exhausted",
	CodeAllocatorConflict:          "allocator_conflict",
	CodeInvalidPaymentStatus:       "invalid_payment_status",
	CodeAdministratorAlreadyExists: "administrator_already_exists",
	CodeTargetsNotEmpty:            "targets_not_empty",
	CodeParentDeviceAlreadyExists:  "parent_device_already_exists",
	CodeParentDeviceNotFound:       "parent_device_not_found",
	CodeMaxParentDevicesReached:    "max_parent_devices_reached",
	CodeInvalidArgument:            "invalid_argument",
	CodeInvalidAccountOwner:        "invalid_account_owner",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code(%d)", uint32(c))
}

// Error is the typed error every instruction handler and reconciler
// decision path returns. It carries a stable Code plus a human-readable
// Msg, and never panics in place of returning one.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Msg) }

// Is allows errors.Is(err, serviceability.Err(CodeX)) comparisons.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	return ok && te.Code == e.Code
}

// Err constructs an *Error with the given code and formatted message.
func Err(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}
