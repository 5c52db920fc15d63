package buskit

import (
	"errors"
	"fmt"
)

// Result is the numeric outcome of a bus operation. Zero is success,
// negative values are hard failures and positive values are warnings
// carrying otherwise usable data (a short read reports its true byte
// count alongside WarnBusUnderRead). The bus and serial subsystems keep
// disjoint numeric ranges so a bare code still identifies its origin.
//
// Result implements error; operations return their code directly or
// wrapped with call context, and ResultOf recovers it either way.
type Result int32

const (
	OK              Result = 0
	ErrFail         Result = -1
	ErrInvalidParam Result = -2
)

// Subsystem bases. Codes are base+offset, negated for failures.
const (
	baseBus    Result = 0x1000
	baseSerial Result = 0x2000
)

// Bus subsystem codes.
const (
	ErrBusNotInit      Result = -(baseBus + 1)
	ErrBusTimeout      Result = -(baseBus + 2)
	ErrBusNoResponse   Result = -(baseBus + 3)
	ErrBusDataTooLong  Result = -(baseBus + 4)
	ErrBusNullSettings Result = -(baseBus + 5)
	ErrBusNullBuffer   Result = -(baseBus + 6)
	WarnBusUnderRead   Result = baseBus + 7
	WarnBusNotEnabled  Result = baseBus + 8
	WarnBusBadData     Result = baseBus + 9
)

// Serial subsystem codes.
const (
	ErrSerialNotInit      Result = -(baseSerial + 1)
	ErrSerialTimeout      Result = -(baseSerial + 2)
	ErrSerialNoResponse   Result = -(baseSerial + 3)
	ErrSerialDataTooLong  Result = -(baseSerial + 4)
	ErrSerialNullSettings Result = -(baseSerial + 5)
	ErrSerialNullBuffer   Result = -(baseSerial + 6)
	WarnSerialUnderRead   Result = baseSerial + 7
	WarnSerialNotEnabled  Result = baseSerial + 8
	WarnSerialBadData     Result = baseSerial + 9
)

var resultText = map[Result]string{
	OK:              "ok",
	ErrFail:         "general failure",
	ErrInvalidParam: "invalid parameter",

	ErrBusNotInit:      "bus not initialized",
	ErrBusTimeout:      "bus timeout",
	ErrBusNoResponse:   "bus no response",
	ErrBusDataTooLong:  "bus data too long",
	ErrBusNullSettings: "bus null settings",
	ErrBusNullBuffer:   "bus null buffer",
	WarnBusUnderRead:   "bus under-read",
	WarnBusNotEnabled:  "bus not enabled",
	WarnBusBadData:     "bus bad data",

	ErrSerialNotInit:      "serial not initialized",
	ErrSerialTimeout:      "serial timeout",
	ErrSerialNoResponse:   "serial no response",
	ErrSerialDataTooLong:  "serial data too long",
	ErrSerialNullSettings: "serial null settings",
	ErrSerialNullBuffer:   "serial null buffer",
	WarnSerialUnderRead:   "serial under-read",
	WarnSerialNotEnabled:  "serial not enabled",
	WarnSerialBadData:     "serial bad data",
}

func (r Result) Error() string {
	if text, ok := resultText[r]; ok {
		return text
	}
	return fmt.Sprintf("result code %d", int32(r))
}

// Failed reports whether r is a hard failure.
func (r Result) Failed() bool { return r < 0 }

// Warning reports whether r is a soft condition with usable data.
func (r Result) Warning() bool { return r > 0 }

// ResultOf extracts the Result carried anywhere in err's chain. A nil
// error is OK; a chain without a Result classifies as ErrFail.
func ResultOf(err error) Result {
	if err == nil {
		return OK
	}
	var r Result
	if errors.As(err, &r) {
		return r
	}
	return ErrFail
}
