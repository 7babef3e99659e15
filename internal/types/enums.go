package types

// State represents the scheduler's machine state. The controller owns a
// single State value and advances it one transition per loop iteration.
type State string

const (
	StateInit             State = "init"
	StateReadSensors      State = "read_sensors"
	StateEvaluateWatering State = "evaluate_watering"
	StateWatering         State = "watering"
	StateDisplayData      State = "display_data"
	StateSendData         State = "send_data"
	StateAsyncSending     State = "async_sending"
	StateError            State = "error"
)

// Known reports whether s is one of the defined machine states. The
// controller resets an unknown state to the sensing cycle.
func (s State) Known() bool {
	switch s {
	case StateInit, StateReadSensors, StateEvaluateWatering, StateWatering,
		StateDisplayData, StateSendData, StateAsyncSending, StateError:
		return true
	}
	return false
}

// FaultCode identifies the failing subsystem. At most one fault is active
// at a time; a newly reported code replaces the previous one.
type FaultCode string

const (
	FaultNone   FaultCode = "none"
	FaultDht    FaultCode = "dht"
	FaultSoil   FaultCode = "soil"
	FaultRain   FaultCode = "rain"
	FaultAir    FaultCode = "air"
	FaultLdr    FaultCode = "ldr"
	FaultPump   FaultCode = "pump"
	FaultWifi   FaultCode = "wifi"
	FaultServer FaultCode = "server"
	FaultTime   FaultCode = "time"
)

// IsSensor reports whether the code belongs to the sensor class. Sensor
// faults are non-fatal and recover by re-attempting the next sensing cycle.
func (c FaultCode) IsSensor() bool {
	switch c {
	case FaultDht, FaultSoil, FaultRain, FaultAir, FaultLdr:
		return true
	}
	return false
}

// IsConnectivity reports whether the code belongs to the connectivity class.
// Connectivity faults are counted; a run of consecutive occurrences
// escalates the machine to the Error state.
func (c FaultCode) IsConnectivity() bool {
	return c == FaultWifi || c == FaultServer
}

// SendOutcome is the result of polling an in-flight telemetry upload.
type SendOutcome string

const (
	SendPending  SendOutcome = "pending"
	SendSuccess  SendOutcome = "success"
	SendFailed   SendOutcome = "failed"
	SendTimedOut SendOutcome = "timed_out"
)

// Level is the coarse display band for a raw sensor value.
type Level string

const (
	LevelLow    Level = "LOW"
	LevelMedium Level = "MEDIUM"
	LevelHigh   Level = "HIGH"
)
