package provision

import (
	"errors"
	"strconv"
)

// Step identifies the provisioning action that failed. The number is what the
// display shows in binary.
type Step int

const (
	StepAPMode      Step = 1 // AT+CWMODE=2
	StepAPConfig    Step = 2 // AT+CWSAP
	StepAPAddr      Step = 3 // AT+CIPAP?
	StepMux         Step = 4 // AT+CIPMUX=1
	StepServer      Step = 5 // AT+CIPSERVER=1,<port>
	StepStore       Step = 6 // credential flash
	StepStationMode Step = 7 // AT+CWMODE=1
	StepStationAddr Step = 8 // AT+CIPSTA?
)

var stepKinds = [...]string{
	StepAPMode:      "ap-mode",
	StepAPConfig:    "ap-config",
	StepAPAddr:      "ap-addr",
	StepMux:         "mux",
	StepServer:      "server",
	StepStore:       "store",
	StepStationMode: "station-mode",
	StepStationAddr: "station-addr",
}

// Code returns the step number.
func (s Step) Code() int {
	return int(s)
}

// Kind returns a short name of the step.
func (s Step) Kind() string {
	if s > 0 && int(s) < len(stepKinds) {
		return stepKinds[s]
	}
	return "step" + strconv.Itoa(int(s))
}

// StepError is returned by Configure.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return "provision step " + strconv.Itoa(int(e.Step)) + " (" + e.Step.Kind() + "): " + e.Err.Error()
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Code returns the step number of the StepError in err's chain, 0 for nil and
// -1 for other errors.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var se *StepError
	if errors.As(err, &se) {
		return se.Step.Code()
	}
	return -1
}

// State is a phase of the provisioning state machine.
type State uint8

const (
	Reset State = iota
	APBringup
	AwaitingCredentials
	ClientAssociation
	Done
)

var stateNames = [...]string{
	Reset:               "reset",
	APBringup:           "ap-bringup",
	AwaitingCredentials: "awaiting-credentials",
	ClientAssociation:   "client-association",
	Done:                "done",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}
