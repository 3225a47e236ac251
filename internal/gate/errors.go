package gate

// Failures carry the backend's message unchanged so the UI can show it.

type SessionLookupError struct {
	Message string
	Err     error
}

func (e *SessionLookupError) Error() string { return e.Message }
func (e *SessionLookupError) Unwrap() error { return e.Err }

type RoleLookupError struct {
	Message string
	Err     error
}

func (e *RoleLookupError) Error() string { return e.Message }
func (e *RoleLookupError) Unwrap() error { return e.Err }

type OTPSendError struct {
	Message string
	Err     error
}

func (e *OTPSendError) Error() string { return e.Message }
func (e *OTPSendError) Unwrap() error { return e.Err }

type OTPVerifyError struct {
	Message string
	Err     error
}

func (e *OTPVerifyError) Error() string { return e.Message }
func (e *OTPVerifyError) Unwrap() error { return e.Err }
